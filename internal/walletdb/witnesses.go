package walletdb

import (
	"context"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/logging"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/wallet"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// ReorgDepth bounds how far back a witness (and, by extension, a
// rewind without Force) is allowed to reach: 100 blocks, per spec.
const ReorgDepth = 100

// putWitness persists a witness snapshot at the given height. noteID
// must reference a received note; sent-note references are rejected
// with ErrInvalidNoteID.
func putWitness(ctx context.Context, ex execer, noteID int64, height uint32, data []byte) error {
	var exists int
	err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM received_notes WHERE id_note = ?", noteID).Scan(&exists)
	if err != nil {
		return werr.Wrap(err)
	}
	if exists == 0 {
		return werr.ErrInvalidNoteID
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO sapling_witnesses (note, block, witness)
		VALUES (?, ?, ?)
		ON CONFLICT(note, block) DO UPDATE SET witness = excluded.witness
	`, noteID, height, data)
	return werr.Wrap(err)
}

// pruneWitnesses deletes every witness snapshot older than
// max(0, tipHeight - ReorgDepth).
func pruneWitnesses(ctx context.Context, ex execer, log *logging.Logger, tipHeight uint32) error {
	floor := uint32(0)
	if tipHeight > ReorgDepth {
		floor = tipHeight - ReorgDepth
	}
	res, err := ex.ExecContext(ctx, "DELETE FROM sapling_witnesses WHERE block < ?", floor)
	if err != nil {
		return werr.Wrap(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Debug("pruned stale witnesses", "floor_height", floor, "count", n)
	}
	return nil
}

// GetWitnesses returns every witness snapshot recorded at height.
func (d *DB) GetWitnesses(ctx context.Context, height uint32) ([]wallet.Witness, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT id_witness, note, block, witness FROM sapling_witnesses WHERE block = ?", height)
	if err != nil {
		return nil, werr.Wrap(err)
	}
	defer rows.Close()

	var out []wallet.Witness
	for rows.Next() {
		var w wallet.Witness
		if err := rows.Scan(&w.ID, &w.Note, &w.Height, &w.Data); err != nil {
			return nil, werr.Wrap(err)
		}
		out = append(out, w)
	}
	return out, werr.Wrap(rows.Err())
}
