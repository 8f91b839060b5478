package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is an open ledger transaction. All reads and writes made during one
// action go through the same Tx; Rollback discards them all.
type Tx struct {
	View
	tx *sql.Tx
}

// Commit makes the transaction's writes visible.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction's writes. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// SetStorage writes a contract storage slot.
func (t *Tx) SetStorage(ctx context.Context, addr common.Address, key string, value []byte) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO storage (address, key, value) VALUES (?, ?, ?)
		ON CONFLICT(address, key) DO UPDATE SET value = excluded.value
	`, addr.Hex(), key, value)
	if err != nil {
		return fmt.Errorf("write storage %s[%s]: %w", addr.Hex(), key, err)
	}
	return nil
}

// DeleteStorage clears a contract storage slot.
func (t *Tx) DeleteStorage(ctx context.Context, addr common.Address, key string) error {
	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM storage WHERE address = ? AND key = ?
	`, addr.Hex(), key)
	if err != nil {
		return fmt.Errorf("delete storage %s[%s]: %w", addr.Hex(), key, err)
	}
	return nil
}

// SetBalance sets the native balance of addr.
func (t *Tx) SetBalance(ctx context.Context, addr common.Address, balance *big.Int) error {
	if balance.Sign() < 0 {
		return fmt.Errorf("set balance %s: negative balance %s", addr.Hex(), balance)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (address, balance) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET balance = excluded.balance
	`, addr.Hex(), balance.String())
	if err != nil {
		return fmt.Errorf("set balance %s: %w", addr.Hex(), err)
	}
	return nil
}

// IncrementNonce bumps the nonce of addr and returns the value before the bump.
func (t *Tx) IncrementNonce(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := t.Nonce(ctx, addr)
	if err != nil {
		return 0, err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO accounts (address, nonce) VALUES (?, 1)
		ON CONFLICT(address) DO UPDATE SET nonce = nonce + 1
	`, addr.Hex())
	if err != nil {
		return 0, fmt.Errorf("increment nonce %s: %w", addr.Hex(), err)
	}
	return nonce, nil
}

// WriteCode records a contract deployment. Deploying twice to the same
// address is an error.
func (t *Tx) WriteCode(ctx context.Context, rec CodeRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO code (address, kind, deployer, block) VALUES (?, ?, ?, ?)
	`, rec.Address.Hex(), rec.Kind, rec.Deployer.Hex(), rec.Block)
	if err != nil {
		return fmt.Errorf("write code %s: %w", rec.Address.Hex(), err)
	}
	return nil
}

// WriteBlock appends a block.
func (t *Tx) WriteBlock(ctx context.Context, rec BlockRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO blocks (number, hash, timestamp) VALUES (?, ?, ?)
	`, rec.Number, rec.Hash.Hex(), rec.Timestamp)
	if err != nil {
		return fmt.Errorf("write block %d: %w", rec.Number, err)
	}
	return nil
}

// WriteTransaction records a submitted action.
func (t *Tx) WriteTransaction(ctx context.Context, rec TxRecord) error {
	return writeTransaction(ctx, t.tx, rec)
}

// WriteEvent records one event of a finalized action.
func (t *Tx) WriteEvent(ctx context.Context, rec EventRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO events (tx_hash, log_index, address, name, args) VALUES (?, ?, ?, ?, ?)
	`, rec.TxHash.Hex(), rec.Index, rec.Address.Hex(), rec.Name, string(rec.Args))
	if err != nil {
		return fmt.Errorf("write event %s#%d: %w", rec.TxHash.Hex(), rec.Index, err)
	}
	return nil
}

// WriteRejected records a rejected action outside of any action transaction.
// Call it after the action's Tx has been rolled back.
func (s *Store) WriteRejected(ctx context.Context, rec TxRecord) error {
	rec.Status = StatusRejected
	rec.Block = nil
	return writeTransaction(ctx, s.db, rec)
}

func writeTransaction(ctx context.Context, q queryer, rec TxRecord) error {
	var block any
	if rec.Block != nil {
		block = *rec.Block
	}
	value := "0"
	if rec.Value != nil {
		value = rec.Value.String()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (hash, seq, block, sender, target, op, value, args, status, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Hash.Hex(),
		rec.Seq,
		block,
		rec.Sender.Hex(),
		rec.Target.Hex(),
		rec.Op,
		value,
		string(rec.Args),
		rec.Status,
		rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("write transaction %s: %w", rec.Hash.Hex(), err)
	}
	return nil
}
