package walletdb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/helpers"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/wallet"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/werr"
)

// NoteKey identifies a received note by the natural key it is upserted
// on, before any database row id has been assigned. AdvanceByBlock's
// witness argument is keyed this way (rather than by id_note) precisely
// so callers building a fresh IncrementalWitness for a note discovered
// in the same block they're persisting never need a row id they don't
// have yet.
type NoteKey struct {
	TxID        [32]byte
	OutputIndex uint32
}

// AdvanceByBlock implements the witness-tracker protocol's persistence
// half: it persists block, transaction, spend, and note rows for a
// single compact block and the serialized witness snapshot for every
// note — continuing or newly discovered this block — that needs one at
// this height. Tree extension and witness construction themselves
// happen upstream, in the scanner/witness-tracker pass that produced
// block and witnesses; this method's only job is to make that work
// durable in one all-or-nothing transaction.
func (d *DB) AdvanceByBlock(ctx context.Context, block wallet.PrunedBlock, witnesses map[NoteKey][]byte) error {
	err := d.withWriteTx(ctx, func(ctx context.Context, ex execer) error {
		if _, err := ex.ExecContext(ctx,
			"INSERT INTO blocks (height, hash, time, sapling_tree) VALUES (?, ?, ?, ?)",
			block.Height, block.Hash[:], block.Time, block.SaplingTree); err != nil {
			return werr.Wrap(err)
		}

		for _, tx := range block.Txs {
			txIndex := tx.Index
			idTx, err := putTxMeta(ctx, ex, tx.TxID, &block.Height, &txIndex, nil)
			if err != nil {
				return err
			}

			for _, spend := range tx.Spends {
				if err := applySpend(ctx, ex, spend.Nullifier, idTx); err != nil {
					return err
				}
			}

			for _, out := range tx.Outputs {
				if err := putReceivedNote(ctx, ex, idTx, out.Note); err != nil {
					return err
				}
			}
		}

		for key, data := range witnesses {
			idNote, found, err := resolveNoteID(ctx, ex, key.TxID, key.OutputIndex)
			if err != nil {
				return err
			}
			if !found {
				return werr.ErrInvalidNoteID
			}
			if err := putWitness(ctx, ex, idNote, block.Height, data); err != nil {
				return err
			}
		}

		if err := pruneWitnesses(ctx, ex, d.log, block.Height); err != nil {
			return err
		}

		return sweepExpiredTransactions(ctx, ex, block.Height)
	})
	if err != nil {
		return err
	}

	var received uint64
	for _, tx := range block.Txs {
		for _, out := range tx.Outputs {
			received += out.Note.Value
		}
	}
	d.log.Info("advanced chain state", "height", block.Height, "txs", len(block.Txs),
		"witnesses", len(witnesses), "received_zec", helpers.ZatoshiToZEC(received))
	return nil
}

// applySpend marks the note owning nullifier as spent by idTx, failing
// with ErrDoubleSpend if it is already spent by a different transaction.
func applySpend(ctx context.Context, ex execer, nullifier [32]byte, idTx int64) error {
	var current sql.NullInt64
	err := ex.QueryRowContext(ctx, "SELECT spent FROM received_notes WHERE nf = ?", nullifier[:]).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		// A spend of a note this wallet doesn't (yet) know about is not
		// an error: the scanner only forwards spends it matched against
		// a stored nullifier, but a race between concurrent callers
		// feeding blocks out of order could still reach here.
		return nil
	}
	if err != nil {
		return werr.Wrap(err)
	}
	if current.Valid && current.Int64 != idTx {
		return werr.ErrDoubleSpend
	}
	_, err = markSpent(ctx, ex, nullifier, idTx)
	return err
}

// resolveNoteID looks up a received note's row id by its natural key.
func resolveNoteID(ctx context.Context, ex execer, txid [32]byte, outputIndex uint32) (int64, bool, error) {
	var idNote int64
	err := ex.QueryRowContext(ctx, `
		SELECT received_notes.id_note
		FROM received_notes
		JOIN transactions ON transactions.id_tx = received_notes.tx
		WHERE transactions.txid = ? AND received_notes.output_index = ?
	`, txid[:], outputIndex).Scan(&idNote)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, werr.Wrap(err)
	}
	return idNote, true, nil
}

// sweepExpiredTransactions releases notes whose spend pointed to a
// transaction that never got mined and has now expired, so they become
// selectable again.
func sweepExpiredTransactions(ctx context.Context, ex execer, tipHeight uint32) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE received_notes SET spent = NULL
		WHERE spent IN (
			SELECT id_tx FROM transactions
			WHERE block IS NULL AND expiry_height IS NOT NULL AND expiry_height < ?
		)
	`, tipHeight)
	return werr.Wrap(err)
}
