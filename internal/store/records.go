package store

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction statuses.
const (
	StatusFinalized = "finalized"
	StatusRejected  = "rejected"
)

// BlockRecord is one mined block.
type BlockRecord struct {
	Number    uint64
	Hash      common.Hash
	Timestamp int64 // unix seconds
}

// TxRecord is one submitted action. Rejected actions have Block == nil.
type TxRecord struct {
	Hash   common.Hash
	Seq    int64
	Block  *uint64
	Sender common.Address
	Target common.Address
	Op     string
	Value  *big.Int
	Args   []byte // canonical JSON
	Status string
	Reason string
}

// EventRecord is one event emitted by a finalized action.
type EventRecord struct {
	TxHash  common.Hash
	Index   int
	Address common.Address
	Name    string
	Args    []byte // canonical JSON
}

// CodeRecord describes a deployed native contract.
type CodeRecord struct {
	Address  common.Address
	Kind     string
	Deployer common.Address
	Block    uint64
}
