// Package wallet holds the data-model types shared by the store, scanner,
// witness tracker, and selector: accounts, blocks, transactions, notes,
// witnesses, and the pruned-block wire contract between the scanner and
// the store.
package wallet

import "time"

// Account is an immutable wallet account: an extended full viewing key
// (ExtFVK) and the default payment address derived from it. Account ids
// are assigned sequentially starting at 0 by init_accounts.
type Account struct {
	ID      uint32
	ExtFVK  string // opaque, externally-derived; ZIP-32 derivation is out of scope
	Address string
}

// Block is an insert-only checkpoint: height, hash, time, and the
// serialized commitment tree as of the end of that block.
type Block struct {
	Height      uint32
	Hash        [32]byte
	Time        int64
	SaplingTree []byte
}

// Transaction is a wallet-relevant transaction row. It may exist as
// metadata only (discovered via scan: MinedHeight/TxIndex set, Raw
// unset) before its full bytes arrive via store_sent_tx or
// store_received_tx.
type Transaction struct {
	ID           int64
	TxID         [32]byte
	Created      *time.Time // set for locally-originated transactions
	MinedHeight  *uint32
	TxIndex      *uint32
	ExpiryHeight *uint32
	Raw          []byte
	Fee          *int64
}

// ReceivedNote is a Sapling output decrypted as belonging to this wallet.
type ReceivedNote struct {
	ID          int64
	Tx          int64 // Transaction.ID
	OutputIndex uint32
	Account     uint32
	Diversifier [11]byte
	Value       uint64 // zatoshi, <= 2^63-1
	Rcm         [32]byte
	Nullifier   [32]byte
	IsChange    bool
	Memo        []byte // nil after canonicalization of the "no memo" sentinel
	SpentIn     *int64 // Transaction.ID of the spending tx, if spent
}

// SentNote is an output of a transaction this wallet originated.
type SentNote struct {
	ID            int64
	Tx            int64
	OutputIndex   uint32
	FromAccount   uint32
	ToAddress     string
	Value         uint64
	Memo          []byte
}

// Witness is a serialized incremental-witness snapshot for a received
// note at a specific block height. Unique per (Note, Height).
type Witness struct {
	ID     int64
	Note   int64 // ReceivedNote.ID
	Height uint32
	Data   []byte
}

// NoteKind tags how a ShieldedOutput's note was produced. The scanner
// currently only ever decrypts notes itself, but Kind is carried through
// so a future output source doesn't need a wire-shape change.
type NoteKind uint8

const (
	NoteKindDecrypted NoteKind = iota
)

// ShieldedOutput is the tagged variant the scanner produces for every
// output it recognizes as belonging to this wallet. WitnessAt is always
// set (the output's leaf position in the commitment tree) so the witness
// tracker can append a brand-new incremental witness at that position.
type ShieldedOutput struct {
	Kind      NoteKind
	Index     uint32 // output index within its transaction
	Account   uint32
	To        [11]byte // diversifier of the recipient address
	Note      ReceivedNote
	Memo      []byte
	IsChange  bool
	Nullifier *[32]byte // set once the note's nullifier can be computed
	WitnessAt uint64    // leaf position in the commitment tree
}

// WalletTx is one wallet-relevant transaction extracted from a compact
// block: its outputs decrypted for this wallet, and any of its spends
// that nullify a note this wallet owns.
type WalletTx struct {
	TxID    [32]byte
	Index   uint32 // position within the block
	Outputs []ShieldedOutput
	Spends  []SpendInfo
}

// SpendInfo records a recognized spend of an owned note within a
// transaction.
type SpendInfo struct {
	Nullifier [32]byte
	NoteID    int64 // the ReceivedNote being spent
}

// PrunedBlock is the scanner's output for one compact block: only the
// transactions that touch this wallet, plus the block-end commitment
// tree needed to keep witnesses in lock-step.
type PrunedBlock struct {
	Height      uint32
	Hash        [32]byte
	PrevHash    [32]byte
	Time        int64
	SaplingTree []byte
	Txs         []WalletTx
}
