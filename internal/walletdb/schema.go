package walletdb

// schemaSQL creates the base tables idempotently. Table and column names
// follow spec §6 bit-exact; views and the utxos/addresses extension
// tables are added by migrations since they depend on data already being
// present (add_transaction_views needs transactions to exist before it
// can aggregate them).
const schemaSQL = `
CREATE TABLE IF NOT EXISTS accounts (
	account INTEGER PRIMARY KEY,
	extfvk  TEXT NOT NULL,
	address TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blocks (
	height       INTEGER PRIMARY KEY,
	hash         BLOB NOT NULL,
	time         INTEGER NOT NULL,
	sapling_tree BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id_tx         INTEGER PRIMARY KEY,
	txid          BLOB NOT NULL UNIQUE,
	created       TEXT,
	block         INTEGER REFERENCES blocks(height),
	tx_index      INTEGER,
	expiry_height INTEGER,
	raw           BLOB,
	fee           INTEGER
);

CREATE INDEX IF NOT EXISTS idx_transactions_block ON transactions(block);
CREATE INDEX IF NOT EXISTS idx_transactions_expiry ON transactions(block, expiry_height);

CREATE TABLE IF NOT EXISTS received_notes (
	id_note      INTEGER PRIMARY KEY,
	tx           INTEGER NOT NULL REFERENCES transactions(id_tx),
	output_index INTEGER NOT NULL,
	account      INTEGER NOT NULL REFERENCES accounts(account),
	diversifier  BLOB NOT NULL,
	value        INTEGER NOT NULL,
	rcm          BLOB NOT NULL,
	nf           BLOB NOT NULL UNIQUE,
	is_change    INTEGER NOT NULL DEFAULT 0,
	memo         BLOB,
	spent        INTEGER REFERENCES transactions(id_tx),
	UNIQUE(tx, output_index)
);

CREATE INDEX IF NOT EXISTS idx_received_notes_account ON received_notes(account);
CREATE INDEX IF NOT EXISTS idx_received_notes_spent ON received_notes(spent);

CREATE TABLE IF NOT EXISTS sapling_witnesses (
	id_witness INTEGER PRIMARY KEY,
	note       INTEGER NOT NULL REFERENCES received_notes(id_note),
	block      INTEGER NOT NULL REFERENCES blocks(height),
	witness    BLOB NOT NULL,
	UNIQUE(note, block)
);

CREATE INDEX IF NOT EXISTS idx_witnesses_block ON sapling_witnesses(block);

CREATE TABLE IF NOT EXISTS sent_notes (
	id_note      INTEGER PRIMARY KEY,
	tx           INTEGER NOT NULL REFERENCES transactions(id_tx),
	output_index INTEGER NOT NULL,
	from_account INTEGER NOT NULL REFERENCES accounts(account),
	address      TEXT NOT NULL,
	value        INTEGER NOT NULL,
	memo         BLOB,
	UNIQUE(tx, output_index)
);

CREATE TABLE IF NOT EXISTS schemer_migrations (
	id          TEXT PRIMARY KEY,
	applied_at  INTEGER NOT NULL
);
`
