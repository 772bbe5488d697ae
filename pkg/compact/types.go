// Package compact defines the minimal projection of a block the scanner
// consumes: heights, hashes, commitments, ephemeral keys, a 52-byte
// ciphertext prefix, and nullifiers. Building this stream from the
// light-client wire protocol is out of scope; this package only names
// the shape the scanner trial-decrypts against.
package compact

// Output is one Sapling output as seen on the compact-block wire: enough
// to extend the commitment tree and attempt trial decryption, never the
// full note ciphertext.
type Output struct {
	Commitment   [32]byte
	EphemeralKey [32]byte
	CiphertextLead [52]byte
}

// Spend is a compact spend: only the revealed nullifier.
type Spend struct {
	Nullifier [32]byte
}

// Tx is one compact transaction: its spends and outputs in wire order.
type Tx struct {
	TxID    [32]byte
	Spends  []Spend
	Outputs []Output
}

// Block is one compact block: height, hash, previous hash, and the
// transactions it carries in canonical order.
type Block struct {
	Height   uint32
	Hash     [32]byte
	PrevHash [32]byte
	Time     int64
	Txs      []Tx
}
