package scripts

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/units"
)

// Report is what a script observed.
type Report struct {
	Script   string           `json:"script"`
	Actor    string           `json:"actor"`
	Lines    []Line           `json:"balances"`
	Receipts []ReceiptSummary `json:"receipts"`
	Notes    []string         `json:"notes,omitempty"`
}

// Line is one holding read before and after the router call.
type Line struct {
	Of     string
	Asset  ledger.Asset
	Before *big.Int
	After  *big.Int
}

// Delta returns After - Before.
func (l Line) Delta() *big.Int {
	return new(big.Int).Sub(l.After, l.Before)
}

// MarshalJSON renders quantities in whole units of the asset.
func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"of":     l.Of,
		"asset":  l.Asset.Symbol,
		"before": l.Asset.Format(l.Before),
		"after":  l.Asset.Format(l.After),
		"delta":  units.FormatSigned(l.Delta(), l.Asset.Decimals),
	})
}

// ReceiptSummary is the part of a receipt worth printing.
type ReceiptSummary struct {
	Op     string   `json:"op"`
	Block  uint64   `json:"block"`
	TxHash string   `json:"tx"`
	Events []string `json:"events,omitempty"`
}

func summarize(rec *ledger.Receipt) ReceiptSummary {
	s := ReceiptSummary{Op: rec.Op.String(), Block: rec.Block, TxHash: rec.TxHash.Hex()}
	for _, e := range rec.Events {
		s.Events = append(s.Events, e.Name)
	}
	return s
}

// Line returns the line for of's holding of symbol.
func (r *Report) Line(of, symbol string) (Line, bool) {
	for _, l := range r.Lines {
		if l.Of == of && strings.EqualFold(l.Asset.Symbol, symbol) {
			return l, true
		}
	}
	return Line{}, false
}

const (
	rule        = "========================================================="
	beforeTitle = "=================Before========================================"
	afterTitle  = "=================After========================================"
)

// WriteText prints the report in the layout of the interactive scripts.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s as %s\n", r.Script, r.Actor)

	b.WriteString(beforeTitle + "\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s balance of %s: %s\n", l.Asset.Symbol, l.Of, l.Asset.Format(l.Before))
	}
	b.WriteString(afterTitle + "\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s balance of %s: %s\n", l.Asset.Symbol, l.Of, l.Asset.Format(l.After))
	}
	b.WriteString(rule + "\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s change for %s: %s\n", l.Asset.Symbol, l.Of, units.FormatSigned(l.Delta(), l.Asset.Decimals))
	}

	for _, rec := range r.Receipts {
		fmt.Fprintf(&b, "%s finalized in block %d (%s)", rec.Op, rec.Block, rec.TxHash)
		if len(rec.Events) > 0 {
			fmt.Fprintf(&b, ": %s", strings.Join(rec.Events, ", "))
		}
		b.WriteByte('\n')
	}
	for _, n := range r.Notes {
		b.WriteString(n + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
