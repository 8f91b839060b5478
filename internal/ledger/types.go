package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/roach88/forkbench/internal/units"
)

// DefaultDeadlineGrace is the window added to the ledger's current time
// when computing an action deadline.
const DefaultDeadlineGrace = 600 * time.Second

// Identity is a party able to hold balances and submit actions.
type Identity struct {
	Label   string
	Address common.Address
}

// String returns "label (0x...)" or just the address when unlabelled.
func (i Identity) String() string {
	if i.Label == "" {
		return i.Address.Hex()
	}
	return fmt.Sprintf("%s (%s)", i.Label, i.Address.Hex())
}

// Asset is a fungible value type with a fixed decimal precision.
// The native asset has no contract address.
type Asset struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
	Native   bool
}

// Ether is the ledger's native asset.
var Ether = Asset{Symbol: "ETH", Decimals: 18, Native: true}

// Token returns a contract-backed asset.
func Token(symbol string, addr common.Address, decimals uint8) Asset {
	return Asset{Symbol: symbol, Address: addr, Decimals: decimals}
}

// Units returns n whole units of the asset as a raw quantity.
func (a Asset) Units(n int64) *big.Int {
	return units.Scale(n, a.Decimals)
}

// Parse converts a human-readable amount into a raw quantity of the asset.
func (a Asset) Parse(s string) (*big.Int, error) {
	q, err := units.Parse(s, a.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%s amount: %w", a.Symbol, err)
	}
	return q, nil
}

// Format renders a raw quantity of the asset for display.
func (a Asset) Format(q *big.Int) string {
	return units.Format(q, a.Decimals)
}

func (a Asset) String() string {
	if a.Native {
		return a.Symbol
	}
	return fmt.Sprintf("%s (%s)", a.Symbol, a.Address.Hex())
}

// Head describes the latest block of a ledger.
type Head struct {
	Number uint64
	Hash   common.Hash
	Time   time.Time
}

// Snapshot is an immutable point-in-time read of one identity's holding of
// one asset. It is only comparable with snapshots from the same fixture.
type Snapshot struct {
	Fixture  uuid.UUID
	Identity Identity
	Asset    Asset
	Quantity *big.Int
	Block    uint64
	ReadAt   time.Time
}

// Comparable reports whether two snapshots describe the same holding in the
// same fixture.
func (s Snapshot) Comparable(other Snapshot) error {
	if s.Fixture != other.Fixture {
		return fmt.Errorf("snapshots come from different fixtures (%s vs %s)", s.Fixture, other.Fixture)
	}
	if s.Identity.Address != other.Identity.Address {
		return fmt.Errorf("snapshots are for different identities (%s vs %s)", s.Identity, other.Identity)
	}
	if s.Asset.Native != other.Asset.Native || s.Asset.Address != other.Asset.Address {
		return fmt.Errorf("snapshots are for different assets (%s vs %s)", s.Asset.Symbol, other.Asset.Symbol)
	}
	return nil
}

// Delta returns after - s as a signed quantity.
func (s Snapshot) Delta(after Snapshot) (*big.Int, error) {
	if err := s.Comparable(after); err != nil {
		return nil, err
	}
	return new(big.Int).Sub(after.Quantity, s.Quantity), nil
}

// String renders the snapshot with the asset's precision.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s %s of %s @%d", s.Asset.Format(s.Quantity), s.Asset.Symbol, s.Identity, s.Block)
}

// Authority can submit actions as an identity within one fixture.
type Authority struct {
	Identity     Identity
	Impersonated bool
	Fixture      uuid.UUID
}

// ActionRequest describes a state change to submit once.
type ActionRequest struct {
	Target   common.Address
	Op       Operation
	Args     []any
	Value    *big.Int  // attached native value, nil for none
	Deadline time.Time // zero for none
}

// Validate checks the request against the operation table.
func (r ActionRequest) Validate() error {
	spec, ok := r.Op.Spec()
	if !ok {
		return fmt.Errorf("unknown operation %d", int(r.Op))
	}
	if !spec.Write {
		return fmt.Errorf("%s is a read operation and cannot be submitted", spec.Method)
	}
	if spec.Internal {
		return fmt.Errorf("%s is internal to contracts and cannot be submitted", spec.Method)
	}
	if r.Value != nil && r.Value.Sign() != 0 && !spec.Payable {
		return fmt.Errorf("%s does not accept native value", spec.Method)
	}
	if r.Value != nil && r.Value.Sign() < 0 {
		return fmt.Errorf("%s: negative native value", spec.Method)
	}
	if spec.Deadline && r.Deadline.IsZero() {
		return fmt.Errorf("%s requires a deadline", spec.Method)
	}
	if !spec.Deadline && !r.Deadline.IsZero() {
		return fmt.Errorf("%s does not take a deadline", spec.Method)
	}
	return CheckArgs(r.Op, r.Args)
}

// CallArgs returns the argument list as the ledger sees it, with the
// deadline appended as a unix timestamp for operations that take one.
func (r ActionRequest) CallArgs() []any {
	spec, _ := r.Op.Spec()
	if !spec.Deadline {
		return r.Args
	}
	out := make([]any, 0, len(r.Args)+1)
	out = append(out, r.Args...)
	return append(out, big.NewInt(r.Deadline.Unix()))
}

// NativeValue returns the attached value, never nil.
func (r ActionRequest) NativeValue() *big.Int {
	if r.Value == nil {
		return new(big.Int)
	}
	return r.Value
}

// ActionState is the lifecycle of a single action request.
type ActionState string

const (
	ActionCreated   ActionState = "created"
	ActionSubmitted ActionState = "submitted"
	ActionFinalized ActionState = "finalized"
	ActionRejected  ActionState = "rejected"
)

// Event is an event-log record emitted by a finalized action.
type Event struct {
	Address common.Address
	Name    string
	Args    map[string]any
}

// Receipt is returned for finalized actions.
type Receipt struct {
	TxHash    common.Hash
	Block     uint64
	Timestamp time.Time
	From      common.Address
	Target    common.Address
	Op        Operation
	Value     *big.Int
	Events    []Event
	Returns   []any
}

// EventsNamed returns the receipt's events with the given name, in order.
func (r *Receipt) EventsNamed(name string) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
