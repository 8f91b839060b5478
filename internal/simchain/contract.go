package simchain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/store"
)

// Handler executes one operation of a contract.
// args are already checked against the operation table.
type Handler func(env *Env, args []any) ([]any, error)

// Contract is native code hosted by a Chain. Contract values hold no state
// of their own; everything lives in storage reached through Env.
type Contract interface {
	// Kind names the contract type, e.g. "token" or "router".
	Kind() string

	// Handlers is the contract's dispatch table.
	Handlers() map[ledger.Operation]Handler
}

// Initializer is implemented by contracts with constructor logic.
type Initializer interface {
	Init(env *Env, args []any) error
}

// execution is shared by every frame of one top-level action.
type execution struct {
	chain    *Chain
	state    *store.Tx
	block    ledger.Head
	origin   common.Address
	readOnly bool
	events   []ledger.Event
	created  map[common.Address]Contract
	depth    int
}

// Env is the view a handler has of the ledger during one call frame.
type Env struct {
	ctx    context.Context
	exec   *execution
	self   common.Address
	caller common.Address
	value  *big.Int
}

// maxCallDepth bounds nested contract calls.
const maxCallDepth = 64

// Context returns the context of the submitting caller.
func (e *Env) Context() context.Context { return e.ctx }

// Self returns the address of the executing contract.
func (e *Env) Self() common.Address { return e.self }

// Caller returns the immediate caller (msg.sender).
func (e *Env) Caller() common.Address { return e.caller }

// Origin returns the account that submitted the action.
func (e *Env) Origin() common.Address { return e.exec.origin }

// Value returns the native value attached to this call frame.
func (e *Env) Value() *big.Int { return new(big.Int).Set(e.value) }

// Now returns the timestamp of the block being built.
func (e *Env) Now() time.Time { return e.exec.block.Time }

// BlockNumber returns the number of the block being built.
func (e *Env) BlockNumber() uint64 { return e.exec.block.Number }

// Get reads a raw storage slot of the executing contract.
func (e *Env) Get(key string) ([]byte, bool, error) {
	return e.exec.state.Storage(e.ctx, e.self, key)
}

// Put writes a raw storage slot of the executing contract.
func (e *Env) Put(key string, value []byte) error {
	if e.exec.readOnly {
		return fmt.Errorf("state modification in read-only call (%s)", key)
	}
	return e.exec.state.SetStorage(e.ctx, e.self, key, value)
}

// Delete clears a storage slot of the executing contract.
func (e *Env) Delete(key string) error {
	if e.exec.readOnly {
		return fmt.Errorf("state modification in read-only call (%s)", key)
	}
	return e.exec.state.DeleteStorage(e.ctx, e.self, key)
}

// Keys lists the executing contract's storage keys with prefix.
func (e *Env) Keys(prefix string) ([]string, error) {
	return e.exec.state.StorageKeys(e.ctx, e.self, prefix)
}

// GetBig reads a quantity slot; missing slots read as zero.
func (e *Env) GetBig(key string) (*big.Int, error) {
	raw, ok, err := e.Get(key)
	if err != nil || !ok {
		return new(big.Int), err
	}
	v, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("slot %s: corrupt quantity %q", key, raw)
	}
	return v, nil
}

// PutBig writes a quantity slot. Zero clears the slot.
func (e *Env) PutBig(key string, v *big.Int) error {
	if v.Sign() == 0 {
		return e.Delete(key)
	}
	return e.Put(key, []byte(v.String()))
}

// GetUint reads a counter slot; missing slots read as zero.
func (e *Env) GetUint(key string) (uint64, error) {
	raw, ok, err := e.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("slot %s: %w", key, err)
	}
	return v, nil
}

// PutUint writes a counter slot.
func (e *Env) PutUint(key string, v uint64) error {
	return e.Put(key, []byte(strconv.FormatUint(v, 10)))
}

// GetAddress reads an address slot; missing slots read as the zero address.
func (e *Env) GetAddress(key string) (common.Address, error) {
	raw, ok, err := e.Get(key)
	if err != nil || !ok {
		return common.Address{}, err
	}
	return common.HexToAddress(string(raw)), nil
}

// PutAddress writes an address slot.
func (e *Env) PutAddress(key string, a common.Address) error {
	return e.Put(key, []byte(a.Hex()))
}

// GetString reads a string slot.
func (e *Env) GetString(key string) (string, error) {
	raw, _, err := e.Get(key)
	return string(raw), err
}

// PutString writes a string slot.
func (e *Env) PutString(key, s string) error {
	return e.Put(key, []byte(s))
}

// GetBool reads a flag slot.
func (e *Env) GetBool(key string) (bool, error) {
	_, ok, err := e.Get(key)
	return ok, err
}

// PutBool sets or clears a flag slot.
func (e *Env) PutBool(key string, v bool) error {
	if !v {
		return e.Delete(key)
	}
	return e.Put(key, []byte{1})
}

// GetJSON decodes a structured slot into v. Returns false if the slot is empty.
func (e *Env) GetJSON(key string, v any) (bool, error) {
	raw, ok, err := e.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("slot %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v into a structured slot.
func (e *Env) PutJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("slot %s: %w", key, err)
	}
	return e.Put(key, raw)
}

// BalanceOf returns the native balance of addr.
func (e *Env) BalanceOf(addr common.Address) (*big.Int, error) {
	return e.exec.state.Balance(e.ctx, addr)
}

// SendValue moves native value from the executing contract to to.
func (e *Env) SendValue(to common.Address, amount *big.Int) error {
	if e.exec.readOnly {
		return fmt.Errorf("value transfer in read-only call")
	}
	return e.exec.transferValue(e.ctx, e.self, to, amount)
}

// Emit records an event from the executing contract.
// Argument values must be canonically encodable (addresses, *big.Int,
// strings, integers, bools).
func (e *Env) Emit(name string, args map[string]any) {
	e.exec.events = append(e.exec.events, ledger.Event{Address: e.self, Name: name, Args: args})
}

// Call invokes op on another contract with the executing contract as caller.
func (e *Env) Call(to common.Address, op ledger.Operation, args ...any) ([]any, error) {
	return e.CallWithValue(to, nil, op, args...)
}

// CallWithValue is Call with attached native value.
func (e *Env) CallWithValue(to common.Address, value *big.Int, op ledger.Operation, args ...any) ([]any, error) {
	if value == nil {
		value = new(big.Int)
	}
	if err := ledger.CheckArgs(op, args); err != nil {
		return nil, fmt.Errorf("nested call: %w", err)
	}
	return e.exec.invoke(e.ctx, e.self, to, value, op, args)
}

// Create deploys c from the executing contract at the next CREATE address.
func (e *Env) Create(c Contract, args ...any) (common.Address, error) {
	if e.exec.readOnly {
		return common.Address{}, fmt.Errorf("contract creation in read-only call")
	}
	nonce, err := e.exec.state.IncrementNonce(e.ctx, e.self)
	if err != nil {
		return common.Address{}, err
	}
	addr := crypto.CreateAddress(e.self, nonce)
	if err := e.exec.deploy(e.ctx, e.self, addr, c, args); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}
