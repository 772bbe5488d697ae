package walletdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// InitBlocks inserts a one-time checkpoint block. It fails with
// ErrTableNotEmpty if the blocks table already has rows.
func (d *DB) InitBlocks(ctx context.Context, height uint32, hash [32]byte, t int64, saplingTree []byte) error {
	return d.withWriteTx(ctx, func(ctx context.Context, ex execer) error {
		var count int
		if err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocks").Scan(&count); err != nil {
			return werr.Wrap(err)
		}
		if count > 0 {
			return werr.ErrTableNotEmpty
		}
		_, err := ex.ExecContext(ctx,
			"INSERT INTO blocks (height, hash, time, sapling_tree) VALUES (?, ?, ?, ?)",
			height, hash[:], t, saplingTree)
		return werr.Wrap(err)
	})
}

// BlockHeightExtrema returns the lowest and highest stored block
// heights. ok is false when no blocks exist.
func (d *DB) BlockHeightExtrema(ctx context.Context) (min, max uint32, ok bool, err error) {
	var minN, maxN sql.NullInt64
	qErr := d.conn.QueryRowContext(ctx, "SELECT MIN(height), MAX(height) FROM blocks").Scan(&minN, &maxN)
	if qErr != nil {
		return 0, 0, false, werr.Wrap(qErr)
	}
	if !minN.Valid {
		return 0, 0, false, nil
	}
	return uint32(minN.Int64), uint32(maxN.Int64), true, nil
}

// GetBlockHash returns the stored hash for height.
func (d *DB) GetBlockHash(ctx context.Context, height uint32) ([32]byte, bool, error) {
	var raw []byte
	err := d.conn.QueryRowContext(ctx, "SELECT hash FROM blocks WHERE height = ?", height).Scan(&raw)
	if err == sql.ErrNoRows {
		return [32]byte{}, false, nil
	}
	if err != nil {
		return [32]byte{}, false, werr.Wrap(err)
	}
	var hash [32]byte
	if len(raw) != 32 {
		return [32]byte{}, false, &werr.CorruptedDataError{Msg: fmt.Sprintf("block %d hash length %d", height, len(raw))}
	}
	copy(hash[:], raw)
	return hash, true, nil
}

// GetMaxHeightHash returns the tip height and hash.
func (d *DB) GetMaxHeightHash(ctx context.Context) (height uint32, hash [32]byte, ok bool, err error) {
	_, max, has, err := d.BlockHeightExtrema(ctx)
	if err != nil || !has {
		return 0, [32]byte{}, false, err
	}
	h, found, err := d.GetBlockHash(ctx, max)
	if err != nil || !found {
		return 0, [32]byte{}, false, err
	}
	return max, h, true, nil
}

// GetCommitmentTree returns the serialized commitment tree stored at
// the given block height.
func (d *DB) GetCommitmentTree(ctx context.Context, height uint32) ([]byte, bool, error) {
	var tree []byte
	err := d.conn.QueryRowContext(ctx, "SELECT sapling_tree FROM blocks WHERE height = ?", height).Scan(&tree)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, werr.Wrap(err)
	}
	return tree, true, nil
}
