package simchain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/canon"
	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/store"
	"github.com/roach88/forkbench/internal/units"
)

// DefaultGenesisTime is the timestamp of block 0.
var DefaultGenesisTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultSignerBalance funds every development signer at genesis.
var DefaultSignerBalance = units.Scale(10_000, 18)

// Chain is a simulated ledger instance.
//
// All methods are safe for concurrent use; actions are applied one at a time.
type Chain struct {
	mu sync.Mutex

	store  *store.Store
	seq    Sequence
	clock  *BlockClock
	logger *slog.Logger

	forkMode     bool
	signers      []common.Address
	signerSet    map[common.Address]bool
	impersonated map[common.Address]bool
	code         map[common.Address]Contract
	closed       bool
}

type options struct {
	path          string
	genesisTime   time.Time
	signerCount   int
	signerBalance *big.Int
	forkMode      bool
	logger        *slog.Logger
}

// Option configures a Chain.
type Option func(*options)

// WithStorePath keeps chain state in a SQLite file instead of memory.
func WithStorePath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithGenesisTime sets the timestamp of block 0.
func WithGenesisTime(t time.Time) Option {
	return func(o *options) { o.genesisTime = t }
}

// WithSigners sets how many development signers are funded at genesis.
func WithSigners(n int) Option {
	return func(o *options) { o.signerCount = n }
}

// WithSignerBalance sets the genesis balance of each signer.
func WithSignerBalance(b *big.Int) Option {
	return func(o *options) { o.signerBalance = new(big.Int).Set(b) }
}

// WithForkMode enables impersonation and fixed-address deployments.
func WithForkMode() Option {
	return func(o *options) { o.forkMode = true }
}

// WithLogger sets the chain's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a chain with a genesis block and funded signers.
func New(ctx context.Context, opts ...Option) (*Chain, error) {
	o := options{
		path:          ":memory:",
		genesisTime:   DefaultGenesisTime,
		signerCount:   MaxSigners,
		signerBalance: DefaultSignerBalance,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.signerCount < 1 || o.signerCount > MaxSigners {
		return nil, fmt.Errorf("signer count %d out of range [1,%d]", o.signerCount, MaxSigners)
	}

	st, err := store.Open(o.path)
	if err != nil {
		return nil, fmt.Errorf("open chain store: %w", err)
	}

	c := &Chain{
		store:        st,
		clock:        NewBlockClock(o.genesisTime),
		logger:       o.logger,
		forkMode:     o.forkMode,
		signerSet:    make(map[common.Address]bool),
		impersonated: make(map[common.Address]bool),
		code:         make(map[common.Address]Contract),
	}

	if err := c.genesis(ctx, o.signerCount, o.signerBalance); err != nil {
		st.Close()
		return nil, err
	}
	return c, nil
}

func (c *Chain) genesis(ctx context.Context, signerCount int, balance *big.Int) error {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := 0; i < signerCount; i++ {
		addr, err := SignerAddress(i)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, addr, balance); err != nil {
			return err
		}
		c.signers = append(c.signers, addr)
		c.signerSet[addr] = true
	}

	genesisTime := c.clock.Current()
	hash, err := canon.Hash(canon.DomainBlock, map[string]any{
		"number":    0,
		"timestamp": genesisTime.Unix(),
		"signers":   c.signers,
	})
	if err != nil {
		return err
	}
	if err := tx.WriteBlock(ctx, store.BlockRecord{Number: 0, Hash: hash, Timestamp: genesisTime.Unix()}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}

	c.logger.Debug("genesis created", "signers", signerCount, "time", genesisTime)
	return nil
}

// Signers returns the development signer addresses in index order.
func (c *Chain) Signers() []common.Address {
	out := make([]common.Address, len(c.signers))
	copy(out, c.signers)
	return out
}

// ForkMode reports whether impersonation is available.
func (c *Chain) ForkMode() bool {
	return c.forkMode
}

// Store exposes the chain's state store for inspection.
func (c *Chain) Store() *store.Store {
	return c.store
}

// Head returns the latest block.
func (c *Chain) Head(ctx context.Context) (ledger.Head, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return ledger.Head{}, err
	}
	rec, err := c.store.View().Head(ctx)
	if err != nil {
		return ledger.Head{}, err
	}
	return headFromRecord(rec), nil
}

// NativeBalance returns the native balance of addr.
func (c *Chain) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.store.View().Balance(ctx, addr)
}

// SetBalance overwrites the native balance of addr without mining a block.
// Only available in fork mode, mirroring hardhat_setBalance.
func (c *Chain) SetBalance(ctx context.Context, addr common.Address, balance *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.forkMode {
		return fmt.Errorf("set balance requires fork mode")
	}
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SetBalance(ctx, addr, balance); err != nil {
		return err
	}
	return tx.Commit()
}

// Impersonate lets Submit accept actions from addr.
func (c *Chain) Impersonate(ctx context.Context, addr common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	if !c.forkMode {
		return ledger.NewImpersonationError(
			fmt.Sprintf("cannot impersonate %s", addr.Hex()),
			fmt.Errorf("impersonation requires a forked ledger"),
		)
	}
	c.impersonated[addr] = true
	c.logger.Debug("account impersonated", "address", addr.Hex())
	return nil
}

// StopImpersonating revokes a previous Impersonate.
func (c *Chain) StopImpersonating(addr common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.impersonated, addr)
}

// AdvanceTime moves the next block's timestamp forward by d.
func (c *Chain) AdvanceTime(_ context.Context, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("cannot move time backwards (%s)", d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock.Advance(d)
	return nil
}

// Close releases the chain's store. Further calls fail.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

func (c *Chain) checkOpen() error {
	if c.closed {
		return fmt.Errorf("chain is closed")
	}
	return nil
}

func (c *Chain) canSend(from common.Address) bool {
	return c.signerSet[from] || c.impersonated[from]
}

func headFromRecord(rec store.BlockRecord) ledger.Head {
	return ledger.Head{
		Number: rec.Number,
		Hash:   rec.Hash,
		Time:   time.Unix(rec.Timestamp, 0).UTC(),
	}
}

var _ ledger.Backend = (*Chain)(nil)
