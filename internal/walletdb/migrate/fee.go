package migrate

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ParseTransparentComponents decodes the transparent input/output
// section this package's fee backfill reads. Real Zcash transaction
// parsing (consensus branch IDs, shielded bundles, signatures) is out of
// scope; the wallet only ever needs the transparent value flow to
// compute a fee, so raw here is this package's own minimal encoding of
// that flow rather than the real wire format:
//
//	uint32 numInputs
//	numInputs * (32-byte prevout txid, uint32 prevout index)
//	uint32 numOutputs
//	numOutputs * (uint64 value)
func ParseTransparentComponents(raw []byte) (inputs []transparentInput, outputValues []int64, err error) {
	if len(raw) < 4 {
		return nil, nil, fmt.Errorf("raw transaction too short")
	}
	numIn := binary.BigEndian.Uint32(raw[:4])
	off := 4
	for i := uint32(0); i < numIn; i++ {
		if len(raw) < off+36 {
			return nil, nil, fmt.Errorf("raw transaction truncated in transparent inputs")
		}
		var in transparentInput
		copy(in.prevoutTxid[:], raw[off:off+32])
		in.prevoutIdx = binary.BigEndian.Uint32(raw[off+32 : off+36])
		inputs = append(inputs, in)
		off += 36
	}
	if len(raw) < off+4 {
		return nil, nil, fmt.Errorf("raw transaction truncated before output count")
	}
	numOut := binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	for i := uint32(0); i < numOut; i++ {
		if len(raw) < off+8 {
			return nil, nil, fmt.Errorf("raw transaction truncated in transparent outputs")
		}
		outputValues = append(outputValues, int64(binary.BigEndian.Uint64(raw[off:off+8])))
		off += 8
	}
	return inputs, outputValues, nil
}

type transparentInput struct {
	prevoutTxid [32]byte
	prevoutIdx  uint32
}

// backfillFeeMigration computes fee = Σ(transparent inputs) −
// Σ(transparent outputs) for every transaction that has raw bytes,
// resolving each input's value via the utxos table. Ported from the
// fee-computation half of add_transaction_views.rs, split into its own
// migration since the distilled spec names it separately.
func backfillFeeMigration() Migration {
	return Migration{
		ID:           backfillFeeID,
		Dependencies: []uuid.UUID{utxosTableID, addTransactionViewsID},
		Description:  "Backfill transactions.fee from transparent inputs and outputs",
		Apply: func(ctx context.Context, conn *sql.Conn) error {
			rows, err := conn.QueryContext(ctx, "SELECT id_tx, raw FROM transactions WHERE raw IS NOT NULL AND fee IS NULL")
			if err != nil {
				return err
			}
			type pending struct {
				idTx int64
				raw  []byte
			}
			var todo []pending
			for rows.Next() {
				var p pending
				if err := rows.Scan(&p.idTx, &p.raw); err != nil {
					rows.Close()
					return err
				}
				todo = append(todo, p)
			}
			if err := rows.Err(); err != nil {
				return err
			}
			rows.Close()

			for _, p := range todo {
				inputs, outputs, err := ParseTransparentComponents(p.raw)
				if err != nil {
					return fmt.Errorf("transaction %d: %w", p.idTx, err)
				}

				var inTotal int64
				for _, in := range inputs {
					var value int64
					err := conn.QueryRowContext(ctx,
						"SELECT value FROM utxos WHERE prevout_txid = ? AND prevout_idx = ?",
						in.prevoutTxid[:], in.prevoutIdx).Scan(&value)
					if err != nil {
						return fmt.Errorf("transaction %d: resolve utxo (%x, %d): %w", p.idTx, in.prevoutTxid, in.prevoutIdx, err)
					}
					inTotal += value
				}

				var outTotal int64
				for _, v := range outputs {
					outTotal += v
				}

				fee := inTotal - outTotal
				if _, err := conn.ExecContext(ctx, "UPDATE transactions SET fee = ? WHERE id_tx = ?", fee, p.idTx); err != nil {
					return fmt.Errorf("transaction %d: set fee: %w", p.idTx, err)
				}
			}
			return nil
		},
	}
}
