// Package noteselect implements spendable-note selection: which unspent
// received notes a spend can draw on as of a given anchor height, and a
// deterministic greedy choice of notes covering a target value.
package noteselect

import (
	"context"
	"database/sql"
	"sort"

	"github.com/Klingon-tech/zcash-shielded-wallet/internal/walletdb"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// querier is the read-only slice of *walletdb.DB this package needs,
// kept narrow so selection logic can be unit tested against a bare
// *sql.Conn without depending on walletdb's write-path machinery.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SpendableNote is one note eligible to fund a spend at a given anchor
// height: its value, row id (for deterministic ordering), and the
// witness height it was last confirmed against.
type SpendableNote struct {
	NoteID    int64
	Value     uint64
	WitnessAt uint32
}

// GetSpendableNotes returns every note belonging to account that is
// spendable at anchorHeight: mined at or before anchorHeight, not
// marked spent, and carrying a witness at a height in
// (anchorHeight-ReorgDepth, anchorHeight].
func GetSpendableNotes(ctx context.Context, q querier, account uint32, anchorHeight uint32, reorgDepth uint32) ([]SpendableNote, error) {
	floor := int64(0)
	if anchorHeight > reorgDepth {
		floor = int64(anchorHeight - reorgDepth)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT received_notes.id_note, received_notes.value, MAX(sapling_witnesses.block)
		FROM received_notes
		JOIN transactions ON transactions.id_tx = received_notes.tx
		JOIN sapling_witnesses ON sapling_witnesses.note = received_notes.id_note
		WHERE received_notes.account = ?
		  AND received_notes.spent IS NULL
		  AND transactions.block IS NOT NULL
		  AND transactions.block <= ?
		  AND sapling_witnesses.block <= ?
		  AND sapling_witnesses.block > ?
		GROUP BY received_notes.id_note
	`, account, anchorHeight, anchorHeight, floor)
	if err != nil {
		return nil, werr.Wrap(err)
	}
	defer rows.Close()

	var out []SpendableNote
	for rows.Next() {
		var n SpendableNote
		if err := rows.Scan(&n.NoteID, &n.Value, &n.WitnessAt); err != nil {
			return nil, werr.Wrap(err)
		}
		out = append(out, n)
	}
	return out, werr.Wrap(rows.Err())
}

// SelectSpendableNotes greedily accumulates the spendable set, ordered
// by (value descending, note id ascending) for reproducible choices,
// until the running total reaches targetValue. Fails with
// InsufficientBalanceError if the full spendable set can't reach it.
func SelectSpendableNotes(ctx context.Context, q querier, account uint32, targetValue uint64, anchorHeight uint32, reorgDepth uint32) ([]SpendableNote, error) {
	candidates, err := GetSpendableNotes(ctx, q, account, anchorHeight, reorgDepth)
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Value != candidates[j].Value {
			return candidates[i].Value > candidates[j].Value
		}
		return candidates[i].NoteID < candidates[j].NoteID
	})

	var chosen []SpendableNote
	var total uint64
	for _, n := range candidates {
		if total >= targetValue {
			break
		}
		chosen = append(chosen, n)
		total += n.Value
	}

	if total < targetValue {
		return nil, &werr.InsufficientBalanceError{Have: total, Need: targetValue}
	}
	return chosen, nil
}

// GetSpendableNotesAt is the public contract's get_spendable_notes,
// using the store's own reorg-window depth.
func GetSpendableNotesAt(ctx context.Context, db *walletdb.DB, account uint32, anchorHeight uint32) ([]SpendableNote, error) {
	return GetSpendableNotes(ctx, db, account, anchorHeight, walletdb.ReorgDepth)
}

// SelectSpendableNotesAt is the public contract's
// select_spendable_notes, using the store's own reorg-window depth.
func SelectSpendableNotesAt(ctx context.Context, db *walletdb.DB, account uint32, targetValue uint64, anchorHeight uint32) ([]SpendableNote, error) {
	return SelectSpendableNotes(ctx, db, account, targetValue, anchorHeight, walletdb.ReorgDepth)
}
