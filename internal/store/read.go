package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// View reads ledger state through either the database or an open Tx.
type View struct {
	q queryer
}

// Storage returns the value stored under key for the contract at addr.
// The second result is false when the slot is empty.
func (v *View) Storage(ctx context.Context, addr common.Address, key string) ([]byte, bool, error) {
	var value []byte
	err := v.q.QueryRowContext(ctx, `
		SELECT value FROM storage WHERE address = ? AND key = ?
	`, addr.Hex(), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read storage %s[%s]: %w", addr.Hex(), key, err)
	}
	return value, true, nil
}

// StorageKeys returns the keys stored for addr with the given prefix,
// in binary order.
func (v *View) StorageKeys(ctx context.Context, addr common.Address, prefix string) ([]string, error) {
	rows, err := v.q.QueryContext(ctx, `
		SELECT key FROM storage
		WHERE address = ? AND substr(key, 1, ?) = ?
		ORDER BY key COLLATE BINARY ASC
	`, addr.Hex(), len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("query storage keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan storage key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storage keys: %w", err)
	}
	return keys, nil
}

// Balance returns the native balance of addr. Unknown accounts hold zero.
func (v *View) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var raw string
	err := v.q.QueryRowContext(ctx, `
		SELECT balance FROM accounts WHERE address = ?
	`, addr.Hex()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read balance %s: %w", addr.Hex(), err)
	}
	return parseQuantity(raw)
}

// Nonce returns the number of actions addr has submitted.
func (v *View) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce uint64
	err := v.q.QueryRowContext(ctx, `
		SELECT nonce FROM accounts WHERE address = ?
	`, addr.Hex()).Scan(&nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read nonce %s: %w", addr.Hex(), err)
	}
	return nonce, nil
}

// Code returns the contract deployed at addr, if any.
func (v *View) Code(ctx context.Context, addr common.Address) (CodeRecord, bool, error) {
	var rec CodeRecord
	var deployer string
	err := v.q.QueryRowContext(ctx, `
		SELECT kind, deployer, block FROM code WHERE address = ?
	`, addr.Hex()).Scan(&rec.Kind, &deployer, &rec.Block)
	if errors.Is(err, sql.ErrNoRows) {
		return CodeRecord{}, false, nil
	}
	if err != nil {
		return CodeRecord{}, false, fmt.Errorf("read code %s: %w", addr.Hex(), err)
	}
	rec.Address = addr
	rec.Deployer = common.HexToAddress(deployer)
	return rec, true, nil
}

// Head returns the latest block.
func (v *View) Head(ctx context.Context) (BlockRecord, error) {
	var rec BlockRecord
	var hash string
	err := v.q.QueryRowContext(ctx, `
		SELECT number, hash, timestamp FROM blocks ORDER BY number DESC LIMIT 1
	`).Scan(&rec.Number, &hash, &rec.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return BlockRecord{}, fmt.Errorf("no blocks: ledger has no genesis")
	}
	if err != nil {
		return BlockRecord{}, fmt.Errorf("read head: %w", err)
	}
	rec.Hash = common.HexToHash(hash)
	return rec, nil
}

// Transactions returns all recorded transactions ordered by seq.
func (v *View) Transactions(ctx context.Context) ([]TxRecord, error) {
	rows, err := v.q.QueryContext(ctx, `
		SELECT hash, seq, block, sender, target, op, value, args, status, reason
		FROM transactions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []TxRecord{}
	for rows.Next() {
		rec, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// Transaction returns one transaction by hash.
func (v *View) Transaction(ctx context.Context, hash common.Hash) (TxRecord, bool, error) {
	rows, err := v.q.QueryContext(ctx, `
		SELECT hash, seq, block, sender, target, op, value, args, status, reason
		FROM transactions
		WHERE hash = ?
	`, hash.Hex())
	if err != nil {
		return TxRecord{}, false, fmt.Errorf("query transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return TxRecord{}, false, rows.Err()
	}
	rec, err := scanTx(rows)
	if err != nil {
		return TxRecord{}, false, err
	}
	return rec, true, nil
}

// Events returns the events of one transaction ordered by log index.
func (v *View) Events(ctx context.Context, txHash common.Hash) ([]EventRecord, error) {
	rows, err := v.q.QueryContext(ctx, `
		SELECT tx_hash, log_index, address, name, args
		FROM events
		WHERE tx_hash = ?
		ORDER BY log_index ASC
	`, txHash.Hex())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var rec EventRecord
		var hash, addr string
		var args string
		if err := rows.Scan(&hash, &rec.Index, &addr, &rec.Name, &args); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.TxHash = common.HexToHash(hash)
		rec.Address = common.HexToAddress(addr)
		rec.Args = []byte(args)
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanTx(rows *sql.Rows) (TxRecord, error) {
	var rec TxRecord
	var hash, sender, target, value, args string
	var block sql.NullInt64
	if err := rows.Scan(&hash, &rec.Seq, &block, &sender, &target, &rec.Op, &value, &args, &rec.Status, &rec.Reason); err != nil {
		return TxRecord{}, fmt.Errorf("scan transaction: %w", err)
	}
	rec.Hash = common.HexToHash(hash)
	rec.Sender = common.HexToAddress(sender)
	rec.Target = common.HexToAddress(target)
	rec.Args = []byte(args)
	if block.Valid {
		n := uint64(block.Int64)
		rec.Block = &n
	}
	q, err := parseQuantity(value)
	if err != nil {
		return TxRecord{}, err
	}
	rec.Value = q
	return rec, nil
}

func parseQuantity(raw string) (*big.Int, error) {
	q, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt quantity %q", raw)
	}
	return q, nil
}
