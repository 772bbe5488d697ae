package walletdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/wallet"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// putTxMeta upserts a transaction row keyed on txid, preserving any
// already-stored column the caller passes as nil (SET col = IFNULL(?,
// col)) so a metadata-only row created earlier by the scanner is never
// clobbered back to unknown by a later partial write. Returns the row's
// id_tx.
func putTxMeta(ctx context.Context, ex execer, txid [32]byte, minedHeight, txIndex, expiryHeight *uint32) (int64, error) {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO transactions (txid, block, tx_index, expiry_height)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(txid) DO UPDATE SET
			block         = IFNULL(excluded.block, transactions.block),
			tx_index      = IFNULL(excluded.tx_index, transactions.tx_index),
			expiry_height = IFNULL(excluded.expiry_height, transactions.expiry_height)
	`, txid[:], nullableU32(minedHeight), nullableU32(txIndex), nullableU32(expiryHeight))
	if err != nil {
		return 0, werr.Wrap(err)
	}

	var id int64
	if err := ex.QueryRowContext(ctx, "SELECT id_tx FROM transactions WHERE txid = ?", txid[:]).Scan(&id); err != nil {
		return 0, werr.Wrap(err)
	}
	return id, nil
}

// putTxData upserts a transaction's raw bytes, fee, and creation
// timestamp, again preserving already-stored non-nil columns. created
// is bound as an ISO-8601 string or NULL — the source this was ported
// from truncates this parameter binding; this implementation binds the
// full value.
func putTxData(ctx context.Context, ex execer, txid [32]byte, raw []byte, fee *int64, created *time.Time) (int64, error) {
	var createdStr sql.NullString
	if created != nil {
		createdStr = sql.NullString{String: created.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO transactions (txid, raw, fee, created)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(txid) DO UPDATE SET
			raw     = IFNULL(excluded.raw, transactions.raw),
			fee     = IFNULL(excluded.fee, transactions.fee),
			created = IFNULL(excluded.created, transactions.created)
	`, txid[:], nullableBytes(raw), nullableI64(fee), createdStr)
	if err != nil {
		return 0, werr.Wrap(err)
	}

	var id int64
	if err := ex.QueryRowContext(ctx, "SELECT id_tx FROM transactions WHERE txid = ?", txid[:]).Scan(&id); err != nil {
		return 0, werr.Wrap(err)
	}
	return id, nil
}

// GetTxHeight returns the mined height of txid, if known.
func (d *DB) GetTxHeight(ctx context.Context, txid [32]byte) (*uint32, error) {
	var height sql.NullInt64
	err := d.conn.QueryRowContext(ctx, "SELECT block FROM transactions WHERE txid = ?", txid[:]).Scan(&height)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, werr.Wrap(err)
	}
	if !height.Valid {
		return nil, nil
	}
	h := uint32(height.Int64)
	return &h, nil
}

// StoreSentTx records a transaction this wallet originated, along with
// the outputs it sent. Safe to call before the transaction is mined:
// block/tx_index are left unset and filled in later by advance_by_block
// once the transaction is observed on chain.
func (d *DB) StoreSentTx(ctx context.Context, tx wallet.Transaction, sent []wallet.SentNote) error {
	return d.withWriteTx(ctx, func(ctx context.Context, ex execer) error {
		idTx, err := putTxData(ctx, ex, tx.TxID, tx.Raw, tx.Fee, tx.Created)
		if err != nil {
			return err
		}
		for _, note := range sent {
			if _, err := ex.ExecContext(ctx, `
				INSERT INTO sent_notes (tx, output_index, from_account, address, value, memo)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(tx, output_index) DO UPDATE SET
					from_account = excluded.from_account,
					address      = excluded.address,
					value        = excluded.value,
					memo         = IFNULL(excluded.memo, sent_notes.memo)
			`, idTx, note.OutputIndex, note.FromAccount, note.ToAddress, note.Value, nullableBytes(note.Memo)); err != nil {
				return werr.Wrap(err)
			}
		}
		return nil
	})
}

// StoreReceivedTx records a transaction along with received notes
// already known to belong to this wallet (used for out-of-band imports;
// the normal ingestion path is advance_by_block).
func (d *DB) StoreReceivedTx(ctx context.Context, tx wallet.Transaction, received []wallet.ReceivedNote) error {
	return d.withWriteTx(ctx, func(ctx context.Context, ex execer) error {
		idTx, err := putTxData(ctx, ex, tx.TxID, tx.Raw, tx.Fee, tx.Created)
		if err != nil {
			return err
		}
		for _, note := range received {
			if err := putReceivedNote(ctx, ex, idTx, note); err != nil {
				return err
			}
		}
		return nil
	})
}

func nullableU32(v *uint32) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableI64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
