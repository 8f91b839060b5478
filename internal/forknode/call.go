package forknode

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/forkbench/internal/ledger"
)

// method resolves op to its ABI method.
func (n *Node) method(op ledger.Operation) (abi.Method, error) {
	spec, ok := op.Spec()
	if !ok {
		return abi.Method{}, fmt.Errorf("unknown operation %d", int(op))
	}
	m, ok := n.abi.Methods[spec.Method]
	if !ok {
		return abi.Method{}, fmt.Errorf("%s is not available on a forked node", spec.Method)
	}
	return m, nil
}

func (n *Node) pack(op ledger.Operation, args []any) (abi.Method, []byte, error) {
	m, err := n.method(op)
	if err != nil {
		return m, nil, err
	}
	input, err := m.Inputs.Pack(args...)
	if err != nil {
		return m, nil, fmt.Errorf("pack %s: %w", m.Name, err)
	}
	return m, append(append([]byte{}, m.ID...), input...), nil
}

// Call executes a read operation with eth_call at the latest block.
func (n *Node) Call(ctx context.Context, target common.Address, op ledger.Operation, args ...any) ([]any, error) {
	if op.IsWrite() {
		return nil, fmt.Errorf("%s is a write operation; submit it instead", op)
	}
	if err := ledger.CheckArgs(op, args); err != nil {
		return nil, err
	}
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	m, data, err := n.pack(op, args)
	if err != nil {
		return nil, err
	}

	out, err := n.eth.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, ledger.NewRejected(op, reason)
		}
		return nil, fmt.Errorf("eth_call %s: %w", m.Name, err)
	}
	vals, err := m.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", m.Name, err)
	}
	return normalize(vals), nil
}

// normalize converts ABI-decoded values to the types simchain returns.
func normalize(vals []any) []any {
	for i, v := range vals {
		if x, ok := v.(uint32); ok {
			vals[i] = uint64(x)
		}
	}
	return vals
}

type txArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *hexutil.Big   `json:"value,omitempty"`
}

type rpcLog struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	Status          hexutil.Uint64 `json:"status"`
	Logs            []rpcLog       `json:"logs"`
}

// Submit sends req from the given (unlocked or impersonated) sender and
// waits for its receipt. A revert, either at send time or in the mined
// receipt, is returned as a ledger rejection.
func (n *Node) Submit(ctx context.Context, from common.Address, req ledger.ActionRequest) (*ledger.Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid action request: %w", err)
	}
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	_, data, err := n.pack(req.Op, req.CallArgs())
	if err != nil {
		return nil, err
	}
	args := txArgs{From: from, To: req.Target, Data: data}
	if v := req.NativeValue(); v.Sign() > 0 {
		args.Value = (*hexutil.Big)(v)
	}

	var hash common.Hash
	if err := n.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		if reason, ok := revertReason(err); ok {
			n.logger.Debug("action rejected at send", "op", req.Op, "reason", reason)
			return nil, ledger.NewRejected(req.Op, reason)
		}
		return nil, fmt.Errorf("eth_sendTransaction %s: %w", req.Op, err)
	}
	n.logger.Debug("transaction sent", "op", req.Op, "hash", hash.Hex())

	rec, err := n.waitReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if rec.Status == 0 {
		reason := n.replayReason(ctx, args, uint64(rec.BlockNumber))
		return nil, ledger.NewRejected(req.Op, reason)
	}

	head, err := n.header(ctx, hexutil.EncodeUint64(uint64(rec.BlockNumber)))
	if err != nil {
		return nil, err
	}
	return &ledger.Receipt{
		TxHash:    hash,
		Block:     uint64(rec.BlockNumber),
		Timestamp: head.Time,
		From:      from,
		Target:    req.Target,
		Op:        req.Op,
		Value:     new(big.Int).Set(req.NativeValue()),
		Events:    n.decodeLogs(rec.Logs),
	}, nil
}

var errReceiptPending = errors.New("receipt pending")

// waitReceipt polls eth_getTransactionReceipt until the receipt exists.
func (n *Node) waitReceipt(ctx context.Context, hash common.Hash) (*rpcReceipt, error) {
	var rec *rpcReceipt
	poll := func() error {
		var r *rpcReceipt
		if err := n.rpc.CallContext(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
			return backoff.Permanent(err)
		}
		if r == nil {
			return errReceiptPending
		}
		rec = r
		return nil
	}
	bo := backoff.WithContext(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(n.pollInterval),
			backoff.WithMaxInterval(time.Second),
			backoff.WithMaxElapsedTime(n.receiptTimeout),
		), ctx,
	)
	if err := backoff.Retry(poll, bo); err != nil {
		if errors.Is(err, errReceiptPending) {
			return nil, fmt.Errorf("no receipt for %s after %s", hash.Hex(), n.receiptTimeout)
		}
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}
	return rec, nil
}

// replayReason re-executes a reverted transaction with eth_call on the
// parent block to recover its revert reason.
func (n *Node) replayReason(ctx context.Context, args txArgs, block uint64) string {
	msg := ethereum.CallMsg{From: args.From, To: &args.To, Data: args.Data}
	if args.Value != nil {
		msg.Value = args.Value.ToInt()
	}
	var at *big.Int
	if block > 0 {
		at = new(big.Int).SetUint64(block - 1)
	}
	_, err := n.eth.CallContract(ctx, msg, at)
	if reason, ok := revertReason(err); ok {
		return reason
	}
	return "transaction reverted"
}

func (n *Node) decodeLogs(logs []rpcLog) []ledger.Event {
	events := make([]ledger.Event, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) == 0 {
			continue
		}
		ev, err := n.abi.EventByID(l.Topics[0])
		if err != nil {
			n.logger.Debug("skipping unknown event", "address", l.Address.Hex(), "topic", l.Topics[0].Hex())
			continue
		}
		fields := make(map[string]any)
		var indexed abi.Arguments
		for _, in := range ev.Inputs {
			if in.Indexed {
				indexed = append(indexed, in)
			}
		}
		if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
			n.logger.Debug("bad event topics", "event", ev.Name, "error", err)
			continue
		}
		if err := ev.Inputs.UnpackIntoMap(fields, l.Data); err != nil {
			n.logger.Debug("bad event data", "event", ev.Name, "error", err)
			continue
		}
		events = append(events, ledger.Event{Address: l.Address, Name: ev.Name, Args: fields})
	}
	return events
}
