package migrate

import (
	"context"
	"database/sql"
)

// addressesTableMigration adds the secondary-diversified-address book.
// accounts.address only ever holds the default address; this table
// records every other (account, diversifier) pair the wallet has handed
// out, recovered from the original's diversifier-indexed address
// lookups that the distilled spec collapses to "the default address".
func addressesTableMigration() Migration {
	return Migration{
		ID:          addressesTableID,
		Description: "Add diversified-address book",
		Apply: func(ctx context.Context, conn *sql.Conn) error {
			_, err := conn.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS addresses (
					account     INTEGER NOT NULL REFERENCES accounts(account),
					diversifier BLOB NOT NULL,
					address     TEXT NOT NULL,
					PRIMARY KEY (account, diversifier)
				);
			`)
			return err
		},
	}
}
