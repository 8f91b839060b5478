package store

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	addrB = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	token = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_FilePragmas(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MemoryStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	s1 := createTestStore(t)
	s2 := createTestStore(t)

	tx, err := s1.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetBalance(ctx, addrA, big.NewInt(42)))
	require.NoError(t, tx.Commit())

	b1, err := s1.View().Balance(ctx, addrA)
	require.NoError(t, err)
	b2, err := s2.View().Balance(ctx, addrA)
	require.NoError(t, err)

	assert.Equal(t, int64(42), b1.Int64())
	assert.Equal(t, int64(0), b2.Int64())
}

func TestClose_Nil(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}

func TestStorage_ReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, ok, err := s.View().Storage(ctx, token, "bal:a")
	require.NoError(t, err)
	assert.False(t, ok, "empty slot should be reported missing")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetStorage(ctx, token, "bal:a", []byte("100")))
	require.NoError(t, tx.SetStorage(ctx, token, "bal:a", []byte("150")))
	require.NoError(t, tx.SetStorage(ctx, token, "bal:b", []byte("1")))
	require.NoError(t, tx.SetStorage(ctx, token, "allow:a:b", []byte("5")))

	// Reads inside the Tx see uncommitted writes.
	v, ok, err := tx.Storage(ctx, token, "bal:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "150", string(v))
	require.NoError(t, tx.Commit())

	keys, err := s.View().StorageKeys(ctx, token, "bal:")
	require.NoError(t, err)
	assert.Equal(t, []string{"bal:a", "bal:b"}, keys)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteStorage(ctx, token, "bal:b"))
	require.NoError(t, tx.Commit())

	_, ok, err = s.View().Storage(ctx, token, "bal:b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetBalance(ctx, addrA, big.NewInt(1000)))
	require.NoError(t, tx.Commit())

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetBalance(ctx, addrA, big.NewInt(1)))
	require.NoError(t, tx.SetStorage(ctx, token, "x", []byte("y")))
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")

	bal, err := s.View().Balance(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal.Int64())

	_, ok, err := s.View().Storage(ctx, token, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBalance_LargeQuantities(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetBalance(ctx, addrA, huge))
	assert.Error(t, tx.SetBalance(ctx, addrB, big.NewInt(-1)))
	require.NoError(t, tx.Commit())

	got, err := s.View().Balance(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, 0, huge.Cmp(got))
}

func TestNonce_Increment(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for want := uint64(0); want < 3; want++ {
		got, err := tx.IncrementNonce(ctx, addrA)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.NoError(t, tx.SetBalance(ctx, addrA, big.NewInt(9)))
	require.NoError(t, tx.Commit())

	nonce, err := s.View().Nonce(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), nonce, "SetBalance must not reset the nonce")
}

func TestCode_WriteOnce(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	rec := CodeRecord{Address: token, Kind: "token", Deployer: addrA, Block: 0}
	require.NoError(t, tx.WriteCode(ctx, rec))
	assert.Error(t, tx.WriteCode(ctx, rec), "second deployment to the same address must fail")

	got, ok, err := tx.Code(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestHistory_TransactionsAndEvents(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.WriteBlock(ctx, BlockRecord{Number: 0, Hash: common.HexToHash("0x01"), Timestamp: 1_700_000_000}))
	require.NoError(t, tx.WriteBlock(ctx, BlockRecord{Number: 1, Hash: common.HexToHash("0x02"), Timestamp: 1_700_000_001}))

	block := uint64(1)
	finalized := TxRecord{
		Hash: common.HexToHash("0xaa"), Seq: 1, Block: &block,
		Sender: addrA, Target: token, Op: "transfer",
		Value: big.NewInt(0), Args: []byte(`["0x70997970C51812dc3A010C7d01b50e0d17dc79C8","100"]`),
		Status: StatusFinalized,
	}
	require.NoError(t, tx.WriteTransaction(ctx, finalized))
	require.NoError(t, tx.WriteEvent(ctx, EventRecord{TxHash: finalized.Hash, Index: 1, Address: token, Name: "Approval", Args: []byte(`{}`)}))
	require.NoError(t, tx.WriteEvent(ctx, EventRecord{TxHash: finalized.Hash, Index: 0, Address: token, Name: "Transfer", Args: []byte(`{"value":"100"}`)}))
	require.NoError(t, tx.Commit())

	require.NoError(t, s.WriteRejected(ctx, TxRecord{
		Hash: common.HexToHash("0xbb"), Seq: 2, Sender: addrB, Target: token,
		Op: "transfer", Args: []byte(`[]`), Reason: "ERC20: transfer amount exceeds balance",
	}))

	head, err := s.View().Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head.Number)
	assert.Equal(t, int64(1_700_000_001), head.Timestamp)

	txs, err := s.View().Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, StatusFinalized, txs[0].Status)
	require.NotNil(t, txs[0].Block)
	assert.Equal(t, uint64(1), *txs[0].Block)
	assert.Equal(t, StatusRejected, txs[1].Status)
	assert.Nil(t, txs[1].Block)
	assert.Equal(t, "ERC20: transfer amount exceeds balance", txs[1].Reason)
	assert.Equal(t, int64(0), txs[1].Value.Int64())

	events, err := s.View().Events(ctx, finalized.Hash)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Transfer", events[0].Name, "events are ordered by log index")
	assert.Equal(t, `{"value":"100"}`, string(events[0].Args))

	one, ok, err := s.View().Transaction(ctx, finalized.Hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "transfer", one.Op)

	_, ok, err = s.View().Transaction(ctx, common.HexToHash("0xcc"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHead_NoGenesis(t *testing.T) {
	s := createTestStore(t)
	_, err := s.View().Head(context.Background())
	assert.ErrorContains(t, err, "no genesis")
}
