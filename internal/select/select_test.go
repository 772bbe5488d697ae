package noteselect

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/zcash-shielded-wallet/internal/walletdb"
	"github.com/Klingon-tech/zcash-shielded-wallet/internal/witness"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/wallet"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

func newTestDB(t *testing.T) *walletdb.DB {
	t.Helper()
	dir, err := os.MkdirTemp("", "noteselect-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := walletdb.Open(context.Background(), &walletdb.Config{DataDir: dir, FileName: "wallet.db"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func fill32(b byte) [32]byte {
	var out [32]byte
	out[31] = b
	return out
}

// receiveNote advances the chain by one block containing a single note
// of the given value at the given height, nullified by nf.
func receiveNote(t *testing.T, db *walletdb.DB, height uint32, value uint64, nf [32]byte) {
	t.Helper()
	tree := witness.New(nil)
	leaf := fill32(byte(height))
	w := witness.NewWitness(tree, leaf)
	_, err := tree.Append(leaf)
	require.NoError(t, err)

	txID := fill32(byte(height))
	block := wallet.PrunedBlock{
		Height:      height,
		SaplingTree: tree.Serialize(),
		Txs: []wallet.WalletTx{
			{
				TxID:  txID,
				Index: 0,
				Outputs: []wallet.ShieldedOutput{
					{Kind: wallet.NoteKindDecrypted, Index: 0, Account: 0, Note: wallet.ReceivedNote{
						OutputIndex: 0, Account: 0, Value: value, Nullifier: nf,
					}},
				},
			},
		},
	}
	witnesses := map[walletdb.NoteKey][]byte{{TxID: txID, OutputIndex: 0}: w.Serialize()}
	require.NoError(t, db.AdvanceByBlock(context.Background(), block, witnesses))
}

func TestGetSpendableNotesOrdersByValueThenID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.InitAccounts(ctx, []string{"extfvk-0"}, func(k string) string { return "addr-0" })
	require.NoError(t, err)

	receiveNote(t, db, 1, 3, fill32(0x01))
	receiveNote(t, db, 2, 10, fill32(0x02))
	receiveNote(t, db, 3, 10, fill32(0x03))

	notes, err := GetSpendableNotesAt(ctx, db, 0, 3)
	require.NoError(t, err)
	require.Len(t, notes, 3)

	sel, err := SelectSpendableNotesAt(ctx, db, 0, 15, 3)
	require.NoError(t, err)
	// Greedy (value desc, id asc): the two value-10 notes cover 15.
	require.Len(t, sel, 2)
	require.Equal(t, uint64(10), sel[0].Value)
	require.Equal(t, uint64(10), sel[1].Value)
	require.Less(t, sel[0].NoteID, sel[1].NoteID)
}

func TestSelectSpendableNotesInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.InitAccounts(ctx, []string{"extfvk-0"}, func(k string) string { return "addr-0" })
	require.NoError(t, err)

	receiveNote(t, db, 1, 3, fill32(0x01))

	_, err = SelectSpendableNotesAt(ctx, db, 0, 100, 1)
	var insufficient *werr.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, uint64(3), insufficient.Have)
	require.Equal(t, uint64(100), insufficient.Need)
}

func TestGetSpendableNotesExcludesSpentAndUnconfirmed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.InitAccounts(ctx, []string{"extfvk-0"}, func(k string) string { return "addr-0" })
	require.NoError(t, err)

	receiveNote(t, db, 1, 5, fill32(0x01))

	// A note mined after the anchor height isn't spendable yet.
	notes, err := GetSpendableNotesAt(ctx, db, 0, 0)
	require.NoError(t, err)
	require.Empty(t, notes)

	notes, err = GetSpendableNotesAt(ctx, db, 0, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	// Spend it.
	spendBlock := wallet.PrunedBlock{
		Height:      2,
		SaplingTree: witness.New(nil).Serialize(),
		Txs: []wallet.WalletTx{
			{TxID: fill32(2), Index: 0, Spends: []wallet.SpendInfo{{Nullifier: fill32(0x01)}}},
		},
	}
	require.NoError(t, db.AdvanceByBlock(ctx, spendBlock, nil))

	notes, err = GetSpendableNotesAt(ctx, db, 0, 2)
	require.NoError(t, err)
	require.Empty(t, notes)
}

func TestGetSpendableNotesExcludesWitnessOutsideReorgWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.InitAccounts(ctx, []string{"extfvk-0"}, func(k string) string { return "addr-0" })
	require.NoError(t, err)

	receiveNote(t, db, 1, 5, fill32(0x01))

	// A witness only ever exists at height 1. An anchor more than
	// ReorgDepth blocks above it puts that witness outside the
	// (anchor-ReorgDepth, anchor] window, so nothing is confirmable.
	notes, err := GetSpendableNotes(ctx, db, 0, 1+walletdb.ReorgDepth+1, walletdb.ReorgDepth)
	require.NoError(t, err)
	require.Empty(t, notes)
}
