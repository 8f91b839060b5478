package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

const (
	// MaxOwners is the multisig's owner capacity.
	MaxOwners = 5
	// Quorum is the approval count that executes a transaction.
	Quorum = 3

	keyMultisigOwners  = "multisig:owners"
	keyMultisigTxCount = "multisig:txcount"
)

func multisigTxKey(id uint64) string {
	return fmt.Sprintf("multisig:tx:%d", id)
}

func multisigApprovalKey(id uint64, owner common.Address) string {
	return fmt.Sprintf("multisig:approved:%d:%s", id, owner.Hex())
}

// MultisigTransaction is a proposed payment from the wallet.
type MultisigTransaction struct {
	ID        uint64
	To        common.Address
	Value     *big.Int
	Approvals uint64
	Executed  bool
}

// CanonicalValue implements canon.Valuer.
func (t MultisigTransaction) CanonicalValue() any {
	return map[string]any{
		"id":        t.ID,
		"to":        t.To,
		"value":     t.Value,
		"approvals": t.Approvals,
		"executed":  t.Executed,
	}
}

type multisigTxRecord struct {
	To        common.Address `json:"to"`
	Value     string         `json:"value"`
	Approvals uint64         `json:"approvals"`
	Executed  bool           `json:"executed"`
}

// Multisig is a shared wallet: the deployer is the first owner, up to
// MaxOwners accounts join with makeOwner, and any owner-created payment
// executes once Quorum owners approved it. Transaction ids start at 1.
type Multisig struct {
	handlers map[ledger.Operation]simchain.Handler
}

// NewMultisig returns a multisig wallet contract.
func NewMultisig() *Multisig {
	m := &Multisig{}
	m.handlers = map[ledger.Operation]simchain.Handler{
		ledger.OpMakeOwner:          m.makeOwner,
		ledger.OpDepositEther:       m.depositEther,
		ledger.OpCreateATransaction: m.createTransaction,
		ledger.OpApproveTransaction: m.approveTransaction,
		ledger.OpGetOneTransaction:  m.getOneTransaction,
		ledger.OpGetOwners:          m.getOwners,
	}
	return m
}

// Kind implements simchain.Contract.
func (m *Multisig) Kind() string { return "multisig" }

// Handlers implements simchain.Contract.
func (m *Multisig) Handlers() map[ledger.Operation]simchain.Handler { return m.handlers }

// Init implements simchain.Initializer.
func (m *Multisig) Init(env *simchain.Env, _ []any) error {
	return env.PutJSON(keyMultisigOwners, []common.Address{env.Caller()})
}

func (m *Multisig) owners(env *simchain.Env) ([]common.Address, error) {
	var owners []common.Address
	_, err := env.GetJSON(keyMultisigOwners, &owners)
	return owners, err
}

func (m *Multisig) isOwner(env *simchain.Env, addr common.Address) (bool, error) {
	owners, err := m.owners(env)
	if err != nil {
		return false, err
	}
	for _, o := range owners {
		if o == addr {
			return true, nil
		}
	}
	return false, nil
}

func (m *Multisig) requireOwner(env *simchain.Env, reason string) error {
	ok, err := m.isOwner(env, env.Caller())
	if err != nil {
		return err
	}
	return simchain.Require(ok, reason)
}

func (m *Multisig) makeOwner(env *simchain.Env, _ []any) ([]any, error) {
	owners, err := m.owners(env)
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(len(owners) < MaxOwners, "Owners are filled, no room for more"); err != nil {
		return nil, err
	}
	for _, o := range owners {
		if o == env.Caller() {
			return nil, simchain.Reverted("Already an owner")
		}
	}
	if err := env.PutJSON(keyMultisigOwners, append(owners, env.Caller())); err != nil {
		return nil, err
	}
	env.Emit("OwnerAdded", map[string]any{"owner": env.Caller()})
	return nil, nil
}

func (m *Multisig) depositEther(env *simchain.Env, _ []any) ([]any, error) {
	if err := m.requireOwner(env, "Only owner can deposit"); err != nil {
		return nil, err
	}
	env.Emit("Deposit", map[string]any{"from": env.Caller(), "value": env.Value()})
	return nil, nil
}

func (m *Multisig) load(env *simchain.Env, id uint64) (multisigTxRecord, error) {
	var rec multisigTxRecord
	ok, err := env.GetJSON(multisigTxKey(id), &rec)
	if err != nil {
		return rec, err
	}
	if !ok {
		return rec, simchain.Reverted("Invalid Transaction Id")
	}
	return rec, nil
}

func (m *Multisig) createTransaction(env *simchain.Env, args []any) ([]any, error) {
	if err := m.requireOwner(env, "Only owner can create a transaction"); err != nil {
		return nil, err
	}
	to, value := args[0].(common.Address), args[1].(*big.Int)
	count, err := env.GetUint(keyMultisigTxCount)
	if err != nil {
		return nil, err
	}
	id := count + 1
	if err := env.PutUint(keyMultisigTxCount, id); err != nil {
		return nil, err
	}
	rec := multisigTxRecord{To: to, Value: value.String(), Approvals: 1}
	if err := env.PutJSON(multisigTxKey(id), rec); err != nil {
		return nil, err
	}
	if err := env.PutBool(multisigApprovalKey(id, env.Caller()), true); err != nil {
		return nil, err
	}
	env.Emit("TransactionCreated", map[string]any{"id": id, "to": to, "value": new(big.Int).Set(value)})
	return []any{new(big.Int).SetUint64(id)}, nil
}

func (m *Multisig) approveTransaction(env *simchain.Env, args []any) ([]any, error) {
	if err := m.requireOwner(env, "Only owner can approve"); err != nil {
		return nil, err
	}
	id, err := txID(args[0].(*big.Int))
	if err != nil {
		return nil, err
	}
	rec, err := m.load(env, id)
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(!rec.Executed, "Transaction already executed"); err != nil {
		return nil, err
	}
	approved, err := env.GetBool(multisigApprovalKey(id, env.Caller()))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(!approved, "You have already approved this transaction"); err != nil {
		return nil, err
	}
	if err := env.PutBool(multisigApprovalKey(id, env.Caller()), true); err != nil {
		return nil, err
	}
	rec.Approvals++
	env.Emit("TransactionApproved", map[string]any{"id": id, "owner": env.Caller(), "approvals": rec.Approvals})

	if rec.Approvals >= Quorum {
		value, ok := new(big.Int).SetString(rec.Value, 10)
		if !ok {
			return nil, fmt.Errorf("transaction %d: corrupt value %q", id, rec.Value)
		}
		bal, err := env.BalanceOf(env.Self())
		if err != nil {
			return nil, err
		}
		if err := simchain.Require(bal.Cmp(value) >= 0, "Insufficient contract balance"); err != nil {
			return nil, err
		}
		if err := env.SendValue(rec.To, value); err != nil {
			return nil, err
		}
		rec.Executed = true
		env.Emit("TransactionExecuted", map[string]any{"id": id, "to": rec.To, "value": value})
	}
	return nil, env.PutJSON(multisigTxKey(id), rec)
}

func (m *Multisig) getOneTransaction(env *simchain.Env, args []any) ([]any, error) {
	id, err := txID(args[0].(*big.Int))
	if err != nil {
		return nil, err
	}
	rec, err := m.load(env, id)
	if err != nil {
		return nil, err
	}
	value, ok := new(big.Int).SetString(rec.Value, 10)
	if !ok {
		return nil, fmt.Errorf("transaction %d: corrupt value %q", id, rec.Value)
	}
	return []any{MultisigTransaction{
		ID:        id,
		To:        rec.To,
		Value:     value,
		Approvals: rec.Approvals,
		Executed:  rec.Executed,
	}}, nil
}

func (m *Multisig) getOwners(env *simchain.Env, _ []any) ([]any, error) {
	owners, err := m.owners(env)
	return []any{owners}, err
}

// txID narrows a transaction id argument; id 0 never exists.
func txID(v *big.Int) (uint64, error) {
	if !v.IsUint64() || v.Sign() == 0 {
		return 0, simchain.Reverted("Invalid Transaction Id")
	}
	return v.Uint64(), nil
}
