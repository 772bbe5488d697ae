package migrate

import "github.com/google/uuid"

// IDs are fixed so that a database created by an older build of this
// package still matches rows already recorded in schemer_migrations.
var (
	utxosTableID        = uuid.MustParse("a4f6e3d2-7b1c-4e5a-9f0d-1c2b3a4d5e6f")
	addressesTableID     = uuid.MustParse("b5a7f4e3-8c2d-4f6b-a01e-2d3c4b5e6f70")
	addTransactionViewsID = uuid.MustParse("282fad2e-8372-4ca0-8bed-711820ae909f")
	backfillFeeID        = uuid.MustParse("c6b8a5f4-9d3e-4a7c-b12f-3e4d5c6f7081")
)

// AllMigrations returns every migration this package knows about, in no
// particular order — Controller derives the apply order from
// Dependencies.
func AllMigrations() []Migration {
	return []Migration{
		utxosTableMigration(),
		addressesTableMigration(),
		addTransactionViewsMigration(),
		backfillFeeMigration(),
	}
}
