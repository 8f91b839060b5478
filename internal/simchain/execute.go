package simchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/forkbench/internal/canon"
	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/store"
)

// Submit applies req from the given sender and mines one block if it is
// accepted. A revert anywhere in the call tree rolls back every write and
// returns a ledger rejection.
func (c *Chain) Submit(ctx context.Context, from common.Address, req ledger.ActionRequest) (*ledger.Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid action request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if !c.canSend(from) {
		return nil, ledger.NewImpersonationError(
			fmt.Sprintf("sender %s is not a signer", from.Hex()),
			fmt.Errorf("unknown account; impersonate it first"),
		)
	}

	args := req.CallArgs()
	value := req.NativeValue()
	return c.apply(ctx, from, req.Target, req.Op.String(), args, value, func(exec *execution) ([]any, error) {
		return exec.invoke(ctx, from, req.Target, value, req.Op, args)
	}, req.Op)
}

// Call executes a read operation against committed state.
func (c *Chain) Call(ctx context.Context, target common.Address, op ledger.Operation, args ...any) ([]any, error) {
	spec, ok := op.Spec()
	if !ok {
		return nil, fmt.Errorf("unknown operation %d", int(op))
	}
	if spec.Write {
		return nil, fmt.Errorf("%s is a write operation; submit it instead", spec.Method)
	}
	if err := ledger.CheckArgs(op, args); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	head, err := tx.Head(ctx)
	if err != nil {
		return nil, err
	}
	exec := &execution{
		chain:    c,
		state:    tx,
		block:    headFromRecord(head),
		readOnly: true,
	}
	out, err := exec.invoke(ctx, common.Address{}, target, new(big.Int), op, args)
	if err != nil {
		if reason, ok := IsRevert(err); ok {
			return nil, ledger.NewRejected(op, reason)
		}
		return nil, fmt.Errorf("call %s: %w", op, err)
	}
	return out, nil
}

// Deploy creates contract c from deployer at the next CREATE address and
// mines a block for it. Constructor reverts are returned as rejections.
func (c *Chain) Deploy(ctx context.Context, deployer common.Address, contract Contract, args ...any) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return common.Address{}, err
	}
	if !c.canSend(deployer) {
		return common.Address{}, fmt.Errorf("deployer %s is not a signer", deployer.Hex())
	}

	var addr common.Address
	_, err := c.apply(ctx, deployer, common.Address{}, "deploy:"+contract.Kind(), args, new(big.Int), func(exec *execution) ([]any, error) {
		nonce, err := exec.state.Nonce(ctx, deployer)
		if err != nil {
			return nil, err
		}
		// apply has already consumed this action's nonce.
		addr = crypto.CreateAddress(deployer, nonce-1)
		return nil, exec.deploy(ctx, deployer, addr, contract, args)
	}, ledger.OpUnknown)
	if err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// DeployAt creates contract c at a fixed address. Fork mode only; used to
// recreate well-known deployments.
func (c *Chain) DeployAt(ctx context.Context, addr, deployer common.Address, contract Contract, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.forkMode {
		return fmt.Errorf("deploying at a fixed address requires fork mode")
	}
	if !c.canSend(deployer) {
		return fmt.Errorf("deployer %s is not a signer", deployer.Hex())
	}

	_, err := c.apply(ctx, deployer, addr, "deploy:"+contract.Kind(), args, new(big.Int), func(exec *execution) ([]any, error) {
		return nil, exec.deploy(ctx, deployer, addr, contract, args)
	}, ledger.OpUnknown)
	return err
}

// apply runs fn as one action in its own store transaction and mines a
// block on success. Caller holds c.mu.
func (c *Chain) apply(
	ctx context.Context,
	from, target common.Address,
	label string,
	args []any,
	value *big.Int,
	fn func(*execution) ([]any, error),
	op ledger.Operation,
) (*ledger.Receipt, error) {
	seq := c.seq.Next()

	argsJSON, err := canon.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", label, err)
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	parent, err := tx.Head(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := tx.IncrementNonce(ctx, from)
	if err != nil {
		return nil, err
	}

	blockTime := c.clock.Next()
	txHash := canon.HashWithDomain(canon.DomainTransaction, canon.MustMarshal(map[string]any{
		"seq":   seq,
		"from":  from,
		"nonce": nonce,
		"to":    target,
		"op":    label,
		"args":  string(argsJSON),
		"value": value,
	}))

	exec := &execution{
		chain:   c,
		state:   tx,
		block:   ledger.Head{Number: parent.Number + 1, Time: blockTime},
		origin:  from,
		created: make(map[common.Address]Contract),
	}

	c.logger.Debug("action submitted", "op", label, "from", from.Hex(), "seq", seq)

	returns, err := fn(exec)
	if err != nil {
		if reason, ok := IsRevert(err); ok {
			return nil, c.reject(ctx, tx, store.TxRecord{
				Hash:   txHash,
				Seq:    seq,
				Sender: from,
				Target: target,
				Op:     label,
				Value:  value,
				Args:   argsJSON,
				Reason: reason,
			}, op, reason)
		}
		return nil, fmt.Errorf("execute %s: %w", label, err)
	}

	blockHash := canon.HashWithDomain(canon.DomainBlock, canon.MustMarshal(map[string]any{
		"number":    parent.Number + 1,
		"parent":    parent.Hash,
		"timestamp": blockTime.Unix(),
		"tx":        txHash,
	}))
	blockNumber := parent.Number + 1

	if err := tx.WriteBlock(ctx, store.BlockRecord{Number: blockNumber, Hash: blockHash, Timestamp: blockTime.Unix()}); err != nil {
		return nil, err
	}
	if err := tx.WriteTransaction(ctx, store.TxRecord{
		Hash:   txHash,
		Seq:    seq,
		Block:  &blockNumber,
		Sender: from,
		Target: target,
		Op:     label,
		Value:  value,
		Args:   argsJSON,
		Status: store.StatusFinalized,
	}); err != nil {
		return nil, err
	}
	for i, ev := range exec.events {
		payload, err := canon.Marshal(eventArgs(ev))
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", ev.Name, err)
		}
		if err := tx.WriteEvent(ctx, store.EventRecord{
			TxHash:  txHash,
			Index:   i,
			Address: ev.Address,
			Name:    ev.Name,
			Args:    payload,
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for addr, contract := range exec.created {
		c.code[addr] = contract
	}
	c.clock.Commit(blockTime)

	c.logger.Debug("action finalized", "op", label, "block", blockNumber, "tx", txHash.Hex(), "events", len(exec.events))

	return &ledger.Receipt{
		TxHash:    txHash,
		Block:     blockNumber,
		Timestamp: blockTime,
		From:      from,
		Target:    target,
		Op:        op,
		Value:     new(big.Int).Set(value),
		Events:    exec.events,
		Returns:   returns,
	}, nil
}

// reject rolls back the action and records it as rejected.
func (c *Chain) reject(ctx context.Context, tx *store.Tx, rec store.TxRecord, op ledger.Operation, reason string) error {
	if err := tx.Rollback(); err != nil {
		return err
	}
	if err := c.store.WriteRejected(ctx, rec); err != nil {
		return err
	}
	c.logger.Debug("action rejected", "op", rec.Op, "reason", reason, "seq", rec.Seq)
	return ledger.NewRejected(op, reason)
}

func eventArgs(ev ledger.Event) map[string]any {
	if ev.Args == nil {
		return map[string]any{}
	}
	return ev.Args
}

// invoke runs one call frame.
func (x *execution) invoke(ctx context.Context, caller, to common.Address, value *big.Int, op ledger.Operation, args []any) ([]any, error) {
	if x.depth >= maxCallDepth {
		return nil, Reverted("call depth exceeded")
	}
	x.depth++
	defer func() { x.depth-- }()

	contract, err := x.lookup(ctx, to)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, Reverted(fmt.Sprintf("function call to a non-contract account %s", to.Hex()))
	}
	handler, ok := contract.Handlers()[op]
	if !ok {
		return nil, Reverted(fmt.Sprintf("%s does not implement %s", contract.Kind(), op))
	}

	spec, _ := op.Spec()
	if value.Sign() > 0 {
		if !spec.Payable {
			return nil, Reverted(fmt.Sprintf("%s is not payable", op))
		}
		if err := x.transferValue(ctx, caller, to, value); err != nil {
			return nil, err
		}
	}

	env := &Env{ctx: ctx, exec: x, self: to, caller: caller, value: value}
	return handler(env, args)
}

// lookup finds the contract at addr, including ones created earlier in
// the same action.
func (x *execution) lookup(ctx context.Context, addr common.Address) (Contract, error) {
	if c, ok := x.created[addr]; ok {
		return c, nil
	}
	if c, ok := x.chain.code[addr]; ok {
		return c, nil
	}
	return nil, nil
}

func (x *execution) deploy(ctx context.Context, deployer, addr common.Address, c Contract, args []any) error {
	if existing, err := x.lookup(ctx, addr); err != nil {
		return err
	} else if existing != nil {
		return Reverted(fmt.Sprintf("contract already deployed at %s", addr.Hex()))
	}
	if err := x.state.WriteCode(ctx, store.CodeRecord{
		Address:  addr,
		Kind:     c.Kind(),
		Deployer: deployer,
		Block:    x.block.Number,
	}); err != nil {
		return err
	}
	x.created[addr] = c

	if init, ok := c.(Initializer); ok {
		env := &Env{ctx: ctx, exec: x, self: addr, caller: deployer, value: new(big.Int)}
		if err := init.Init(env, args); err != nil {
			return err
		}
	} else if len(args) > 0 {
		return fmt.Errorf("%s takes no constructor arguments, got %d", c.Kind(), len(args))
	}
	x.chain.logger.Debug("contract deployed", "kind", c.Kind(), "address", addr.Hex())
	return nil
}

func (x *execution) transferValue(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative value transfer")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := x.state.Balance(ctx, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return Reverted("insufficient funds for transfer")
	}
	if from == to {
		return nil
	}
	toBal, err := x.state.Balance(ctx, to)
	if err != nil {
		return err
	}
	if err := x.state.SetBalance(ctx, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return x.state.SetBalance(ctx, to, new(big.Int).Add(toBal, amount))
}

// errNoCode is returned by CodeAt for addresses without a contract.
var errNoCode = errors.New("no contract at address")

// CodeAt returns the kind of contract deployed at addr.
func (c *Chain) CodeAt(ctx context.Context, addr common.Address) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok, err := c.store.View().Code(ctx, addr)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", addr.Hex(), errNoCode)
	}
	return rec.Kind, nil
}

// Transactions returns the chain's action history in submission order.
func (c *Chain) Transactions(ctx context.Context) ([]store.TxRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.View().Transactions(ctx)
}

// Now returns the timestamp of the latest block.
func (c *Chain) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Current()
}
