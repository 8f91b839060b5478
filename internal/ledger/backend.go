package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Backend is the boundary to an external ledger instance.
//
// Reads never mutate state. Submit blocks until the action is finalized or
// rejected and never retries; rejections are returned as *Error with code
// ErrCodeRejected.
type Backend interface {
	// Head returns the latest block.
	Head(ctx context.Context) (Head, error)

	// NativeBalance returns the native asset balance of addr.
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)

	// Call executes a read operation against target.
	Call(ctx context.Context, target common.Address, op Operation, args ...any) ([]any, error)

	// Impersonate allows Submit to send actions from addr without its key.
	// Only simulated or forked ledgers support it.
	Impersonate(ctx context.Context, addr common.Address) error

	// Submit sends req from the given sender and waits for the outcome.
	Submit(ctx context.Context, from common.Address, req ActionRequest) (*Receipt, error)

	// AdvanceTime moves the timestamp of the next block forward by d.
	AdvanceTime(ctx context.Context, d time.Duration) error

	// Close releases the ledger instance. Forked backends revert to the
	// state they had when the fixture was provisioned.
	Close() error
}
