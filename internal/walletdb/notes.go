package walletdb

import (
	"context"
	"database/sql"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/helpers"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/wallet"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// noMemoSentinel is the 512-byte value (0xF6 followed by 511 zero bytes)
// the wallet's memo encoding uses to mean "no memo". The migration that
// creates the transaction views canonicalizes this pattern to SQL NULL
// for rows that already exist; putReceivedNote canonicalizes it here too
// so a freshly scanned no-memo output is never stored as the raw
// sentinel in the first place.
var noMemoSentinel = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xF6
	return b
}()

// putReceivedNote upserts a received note keyed on (tx, output_index).
// The source this is ported from falls through to an UPDATE on the
// not-found branch, which silently does nothing for a brand new note;
// INSERT ... ON CONFLICT DO UPDATE is used here instead so the miss
// branch actually inserts.
func putReceivedNote(ctx context.Context, ex execer, idTx int64, note wallet.ReceivedNote) error {
	memo := note.Memo
	if helpers.BytesEqual(memo, noMemoSentinel) {
		memo = nil
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO received_notes
			(tx, output_index, account, diversifier, value, rcm, nf, is_change, memo, spent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx, output_index) DO UPDATE SET
			account     = excluded.account,
			diversifier = excluded.diversifier,
			value       = excluded.value,
			rcm         = excluded.rcm,
			nf          = excluded.nf,
			is_change   = excluded.is_change,
			memo        = IFNULL(excluded.memo, received_notes.memo),
			spent       = IFNULL(excluded.spent, received_notes.spent)
	`, idTx, note.OutputIndex, note.Account, note.Diversifier[:], note.Value,
		note.Rcm[:], note.Nullifier[:], boolToInt(note.IsChange), nullableBytes(memo), nullableSpent(note.SpentIn))
	return werr.Wrap(err)
}

// markSpent records that nf's owning note was spent by spendingTx. It
// is a no-op (not an error) if no received note carries that nullifier
// yet — the spend may be observed before its note reaches this wallet
// in pathological reorderings, though the scanner itself never presents
// them out of order.
func markSpent(ctx context.Context, ex execer, nf [32]byte, spendingTx int64) (matched bool, err error) {
	res, err := ex.ExecContext(ctx, "UPDATE received_notes SET spent = ? WHERE nf = ?", spendingTx, nf[:])
	if err != nil {
		return false, werr.Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, werr.Wrap(err)
	}
	return n > 0, nil
}

// GetMemo returns the memo bytes for a received note, or nil if it has
// none.
func (d *DB) GetMemo(ctx context.Context, noteID int64) ([]byte, error) {
	var memo []byte
	err := d.conn.QueryRowContext(ctx, "SELECT memo FROM received_notes WHERE id_note = ?", noteID).Scan(&memo)
	if err == sql.ErrNoRows {
		return nil, werr.ErrInvalidNoteID
	}
	if err != nil {
		return nil, werr.Wrap(err)
	}
	return memo, nil
}

// GetBalanceAt returns the sum of unspent received-note values for
// account whose parent transaction is mined at or before anchorHeight.
func (d *DB) GetBalanceAt(ctx context.Context, account uint32, anchorHeight uint32) (uint64, error) {
	var total sql.NullInt64
	err := d.conn.QueryRowContext(ctx, `
		SELECT SUM(received_notes.value)
		FROM received_notes
		JOIN transactions ON transactions.id_tx = received_notes.tx
		WHERE received_notes.account = ?
		  AND received_notes.spent IS NULL
		  AND transactions.block IS NOT NULL
		  AND transactions.block <= ?
	`, account, anchorHeight).Scan(&total)
	if err != nil {
		return 0, werr.Wrap(err)
	}
	if !total.Valid {
		return 0, nil
	}
	return uint64(total.Int64), nil
}

// GetNullifiers returns every received note's nullifier, for scanner
// spend matching.
func (d *DB) GetNullifiers(ctx context.Context) ([][32]byte, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT nf FROM received_notes")
	if err != nil {
		return nil, werr.Wrap(err)
	}
	defer rows.Close()

	var out [][32]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, werr.Wrap(err)
		}
		var nf [32]byte
		copy(nf[:], raw)
		out = append(out, nf)
	}
	return out, werr.Wrap(rows.Err())
}

// GetUnspentNullifiers returns the nullifier-to-note-id mapping for every
// received note not yet marked spent, the set the scanner matches
// incoming compact spends against.
func (d *DB) GetUnspentNullifiers(ctx context.Context) (map[[32]byte]int64, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT nf, id_note FROM received_notes WHERE spent IS NULL")
	if err != nil {
		return nil, werr.Wrap(err)
	}
	defer rows.Close()

	out := make(map[[32]byte]int64)
	for rows.Next() {
		var raw []byte
		var id int64
		if err := rows.Scan(&raw, &id); err != nil {
			return nil, werr.Wrap(err)
		}
		var nf [32]byte
		copy(nf[:], raw)
		out[nf] = id
	}
	return out, werr.Wrap(rows.Err())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableSpent(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
