package walletdb

import (
	"context"
	"database/sql"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// RewindOptions configures RewindToHeight.
type RewindOptions struct {
	// Force allows a rewind deeper than ReorgDepth blocks below the
	// current tip. Without it, such a rewind fails with
	// ErrRewindTooDeep rather than silently discarding that much
	// history.
	Force bool
}

// RewindToHeight implements the reorg controller: every block above h
// is destroyed, transaction rows above h are reduced back to metadata
// (so they can be re-observed), and notes whose spend pointed into the
// discarded range become selectable again. Returns ErrRewindTooDeep if
// h is below the lowest stored height, or if h is more than ReorgDepth
// blocks below the current tip and opts.Force is not set.
func (d *DB) RewindToHeight(ctx context.Context, h uint32, opts RewindOptions) error {
	err := d.withWriteTx(ctx, func(ctx context.Context, ex execer) error {
		var minN, maxN sql.NullInt64
		if err := ex.QueryRowContext(ctx, "SELECT MIN(height), MAX(height) FROM blocks").Scan(&minN, &maxN); err != nil {
			return werr.Wrap(err)
		}
		if !minN.Valid {
			// No blocks at all: any rewind request is vacuously too deep.
			return werr.ErrRewindTooDeep
		}
		minHeight, maxHeight := uint32(minN.Int64), uint32(maxN.Int64)

		if h < minHeight {
			return werr.ErrRewindTooDeep
		}
		if !opts.Force && maxHeight-h > ReorgDepth {
			return werr.ErrRewindTooDeep
		}

		if _, err := ex.ExecContext(ctx, "DELETE FROM sapling_witnesses WHERE block > ?", h); err != nil {
			return werr.Wrap(err)
		}

		// Notes whose spend pointed at a transaction being un-mined are
		// released before that transaction's own row is cleared, while
		// its (now-stale) block pointer can still identify it.
		if _, err := ex.ExecContext(ctx, `
			UPDATE received_notes SET spent = NULL
			WHERE spent IN (SELECT id_tx FROM transactions WHERE block > ?)
		`, h); err != nil {
			return werr.Wrap(err)
		}

		if _, err := ex.ExecContext(ctx, `
			UPDATE transactions SET block = NULL, tx_index = NULL, expiry_height = NULL
			WHERE block > ?
		`, h); err != nil {
			return werr.Wrap(err)
		}

		if _, err := ex.ExecContext(ctx, "DELETE FROM blocks WHERE height > ?", h); err != nil {
			return werr.Wrap(err)
		}

		d.log.Warn("rewinding chain state", "to_height", h, "from_height", maxHeight, "force", opts.Force)
		return nil
	})
	if err != nil {
		return err
	}

	d.log.Info("rewind complete", "height", h)
	return nil
}
