package migrate

import (
	"context"
	"database/sql"
)

// noMemoSentinel is the 512-byte value (0xF6 followed by 511 zero
// bytes) the wallet's memo encoding uses to mean "no memo". Ported from
// original_source/zcash_client_sqlite/src/wallet/init/migrations/add_transaction_views.rs,
// which canonicalizes this pattern to SQL NULL so every caller can test
// "has a memo" with a single IS NOT NULL check instead of also knowing
// about the sentinel.
var noMemoSentinel = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xF6
	return b
}()

// addTransactionViewsMigration creates the three read-side aggregate
// views and canonicalizes the F6-then-zeros memo sentinel to NULL.
func addTransactionViewsMigration() Migration {
	return Migration{
		ID:          addTransactionViewsID,
		Description: "Add transaction summary views and canonicalize the empty-memo sentinel",
		Apply: func(ctx context.Context, conn *sql.Conn) error {
			if _, err := conn.ExecContext(ctx,
				"UPDATE sent_notes SET memo = NULL WHERE memo = ?", noMemoSentinel); err != nil {
				return err
			}
			if _, err := conn.ExecContext(ctx,
				"UPDATE received_notes SET memo = NULL WHERE memo = ?", noMemoSentinel); err != nil {
				return err
			}

			_, err := conn.ExecContext(ctx, `
				CREATE VIEW IF NOT EXISTS v_tx_sent AS
				SELECT transactions.id_tx         AS id_tx,
				       transactions.block         AS mined_height,
				       transactions.tx_index      AS tx_index,
				       transactions.txid          AS txid,
				       transactions.expiry_height AS expiry_height,
				       transactions.raw           AS raw,
				       SUM(sent_notes.value)      AS sent_total,
				       COUNT(sent_notes.id_note)  AS sent_note_count,
				       SUM(CASE WHEN sent_notes.memo IS NULL THEN 0 ELSE 1 END) AS memo_count,
				       blocks.time                AS block_time
				FROM   transactions
				       JOIN sent_notes ON transactions.id_tx = sent_notes.tx
				       LEFT JOIN blocks ON transactions.block = blocks.height
				GROUP BY sent_notes.tx;

				CREATE VIEW IF NOT EXISTS v_tx_received AS
				SELECT transactions.id_tx            AS id_tx,
				       transactions.block            AS mined_height,
				       transactions.tx_index         AS tx_index,
				       transactions.txid             AS txid,
				       SUM(received_notes.value)     AS received_total,
				       COUNT(received_notes.id_note) AS received_note_count,
				       SUM(CASE WHEN received_notes.memo IS NULL THEN 0 ELSE 1 END) AS memo_count,
				       blocks.time                   AS block_time
				FROM   transactions
				       JOIN received_notes ON transactions.id_tx = received_notes.tx
				       LEFT JOIN blocks ON transactions.block = blocks.height
				GROUP BY received_notes.tx;

				-- SQLite's FULL OUTER JOIN support is too recent to rely on, so
				-- the outer join is emulated as a left join unioned with its
				-- mirror image restricted to the rows the first half missed.
				CREATE VIEW IF NOT EXISTS v_transactions AS
				SELECT ds.id_tx                                        AS id_tx,
				       COALESCE(ds.mined_height, dr.mined_height)      AS mined_height,
				       ds.txid                                         AS txid,
				       COALESCE(dr.received_total, 0) - COALESCE(ds.sent_total, 0) AS net_value,
				       (COALESCE(ds.memo_count, 0) + COALESCE(dr.memo_count, 0)) > 0 AS has_memo,
				       CASE WHEN dr.received_total IS NOT NULL THEN 1 ELSE 0 END AS is_wallet_internal,
				       COALESCE(ds.block_time, dr.block_time)          AS block_time
				FROM   v_tx_sent ds
				       LEFT JOIN v_tx_received dr ON ds.id_tx = dr.id_tx
				UNION
				SELECT dr.id_tx                                        AS id_tx,
				       dr.mined_height                                 AS mined_height,
				       dr.txid                                         AS txid,
				       dr.received_total                                AS net_value,
				       dr.memo_count > 0                                AS has_memo,
				       0                                                AS is_wallet_internal,
				       dr.block_time                                   AS block_time
				FROM   v_tx_received dr
				       LEFT JOIN v_tx_sent ds ON dr.id_tx = ds.id_tx
				WHERE  ds.id_tx IS NULL;
			`)
			return err
		},
	}
}
