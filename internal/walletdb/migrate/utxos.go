package migrate

import (
	"context"
	"database/sql"
)

// utxosTableMigration adds the transparent-UTXO table the fee-backfill
// migration resolves input values against. The wallet never spends
// these directly (shielded-only per spec), it only needs them to learn
// how much value a transparent input consumed.
func utxosTableMigration() Migration {
	return Migration{
		ID:          utxosTableID,
		Description: "Add transparent UTXO table used for fee backfill",
		Apply: func(ctx context.Context, conn *sql.Conn) error {
			_, err := conn.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS utxos (
					id_utxo      INTEGER PRIMARY KEY,
					address      TEXT NOT NULL,
					prevout_txid BLOB NOT NULL,
					prevout_idx  INTEGER NOT NULL,
					script       BLOB,
					value        INTEGER NOT NULL,
					height       INTEGER,
					spent_in_tx  INTEGER REFERENCES transactions(id_tx),
					UNIQUE(prevout_txid, prevout_idx)
				);
			`)
			return err
		},
	}
}
