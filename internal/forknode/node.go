package forknode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/roach88/forkbench/internal/ledger"
)

// Flavor selects the node's vendor-specific RPC namespace.
type Flavor string

const (
	Hardhat Flavor = "hardhat"
	Anvil   Flavor = "anvil"
)

// ParseFlavor validates a flavor name. The empty string means Hardhat.
func ParseFlavor(s string) (Flavor, error) {
	switch Flavor(s) {
	case "", Hardhat:
		return Hardhat, nil
	case Anvil:
		return Anvil, nil
	default:
		return "", fmt.Errorf("unknown node flavor %q (want hardhat or anvil)", s)
	}
}

// DefaultReceiptTimeout bounds how long Submit waits for a receipt.
const DefaultReceiptTimeout = 30 * time.Second

// Node is a ledger.Backend backed by a forked JSON-RPC node.
type Node struct {
	mu sync.Mutex

	rpc    *rpc.Client
	eth    *ethclient.Client
	abi    abi.ABI
	flavor Flavor
	logger *slog.Logger

	receiptTimeout time.Duration
	pollInterval   time.Duration

	snapshot string
	closed   bool
}

type options struct {
	flavor         Flavor
	logger         *slog.Logger
	receiptTimeout time.Duration
	pollInterval   time.Duration
}

// Option configures a Node.
type Option func(*options)

// WithFlavor selects hardhat_* or anvil_* RPC methods.
func WithFlavor(f Flavor) Option {
	return func(o *options) { o.flavor = f }
}

// WithLogger sets the node's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithReceiptTimeout bounds receipt polling.
func WithReceiptTimeout(d time.Duration) Option {
	return func(o *options) { o.receiptTimeout = d }
}

// WithPollInterval sets the initial receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// Dial connects to the node at url and opens an isolated view of it.
func Dial(ctx context.Context, url string, opts ...Option) (*Node, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	n, err := New(ctx, c, opts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	return n, nil
}

// New wraps an RPC client and takes the snapshot Close reverts to.
func New(ctx context.Context, c *rpc.Client, opts ...Option) (*Node, error) {
	o := options{
		flavor:         Hardhat,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		receiptTimeout: DefaultReceiptTimeout,
		pollInterval:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}

	parsed, err := loadABI()
	if err != nil {
		return nil, fmt.Errorf("load contract interfaces: %w", err)
	}

	n := &Node{
		rpc:            c,
		eth:            ethclient.NewClient(c),
		abi:            parsed,
		flavor:         o.flavor,
		logger:         o.logger,
		receiptTimeout: o.receiptTimeout,
		pollInterval:   o.pollInterval,
	}

	var id hexutil.Big
	if err := c.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return nil, fmt.Errorf("evm_snapshot: %w", err)
	}
	n.snapshot = id.String()
	n.logger.Debug("fork snapshot taken", "id", n.snapshot, "flavor", n.flavor)
	return n, nil
}

// Flavor returns the node's RPC flavor.
func (n *Node) Flavor() Flavor {
	return n.flavor
}

type rpcHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Hash      common.Hash    `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// Head returns the latest block.
func (n *Node) Head(ctx context.Context) (ledger.Head, error) {
	if err := n.checkOpen(); err != nil {
		return ledger.Head{}, err
	}
	return n.header(ctx, "latest")
}

func (n *Node) header(ctx context.Context, tag string) (ledger.Head, error) {
	var h *rpcHeader
	if err := n.rpc.CallContext(ctx, &h, "eth_getBlockByNumber", tag, false); err != nil {
		return ledger.Head{}, fmt.Errorf("eth_getBlockByNumber %s: %w", tag, err)
	}
	if h == nil {
		return ledger.Head{}, fmt.Errorf("block %s not found", tag)
	}
	return ledger.Head{
		Number: uint64(h.Number),
		Hash:   h.Hash,
		Time:   time.Unix(int64(h.Timestamp), 0).UTC(),
	}, nil
}

// NativeBalance returns the native balance of addr at the latest block.
func (n *Node) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	bal, err := n.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

// SetBalance overwrites the native balance of addr.
func (n *Node) SetBalance(ctx context.Context, addr common.Address, balance *big.Int) error {
	if err := n.checkOpen(); err != nil {
		return err
	}
	method := string(n.flavor) + "_setBalance"
	if err := n.rpc.CallContext(ctx, nil, method, addr, (*hexutil.Big)(balance)); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// Impersonate unlocks addr on the node.
func (n *Node) Impersonate(ctx context.Context, addr common.Address) error {
	if err := n.checkOpen(); err != nil {
		return err
	}
	method := string(n.flavor) + "_impersonateAccount"
	if err := n.rpc.CallContext(ctx, nil, method, addr); err != nil {
		return ledger.NewImpersonationError(fmt.Sprintf("cannot impersonate %s", addr.Hex()), err)
	}
	n.logger.Debug("account impersonated", "address", addr.Hex(), "method", method)
	return nil
}

// AdvanceTime moves the next block's timestamp forward by d.
func (n *Node) AdvanceTime(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("cannot move time backwards (%s)", d)
	}
	if err := n.checkOpen(); err != nil {
		return err
	}
	var ignored any
	if err := n.rpc.CallContext(ctx, &ignored, "evm_increaseTime", int64(d/time.Second)); err != nil {
		return fmt.Errorf("evm_increaseTime: %w", err)
	}
	return nil
}

// Close reverts the fork to the snapshot taken by New and closes the
// connection. Calling Close twice is a no-op.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	defer n.rpc.Close()

	var ok bool
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.rpc.CallContext(ctx, &ok, "evm_revert", n.snapshot); err != nil {
		return fmt.Errorf("evm_revert %s: %w", n.snapshot, err)
	}
	if !ok {
		return fmt.Errorf("evm_revert %s: snapshot not found", n.snapshot)
	}
	n.logger.Debug("fork reverted", "id", n.snapshot)
	return nil
}

func (n *Node) checkOpen() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("node connection is closed")
	}
	return nil
}

var _ ledger.Backend = (*Node)(nil)
