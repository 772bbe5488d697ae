// Package scan implements compact-block ingestion: per-block trial
// decryption against every account's viewing key, spend matching, and
// the commitment-tree/witness bookkeeping needed to keep every owned
// note's incremental witness current. Sapling's actual cryptography
// (note encryption, nullifier derivation) is out of scope, standing
// behind the Decryptor interface a caller supplies.
package scan

import "github.com/Klingon-tech/zcash-shielded-wallet/pkg/compact"

// IVK is an opaque incoming viewing key. Its derivation from an ExtFVK
// (ZIP-32) is out of scope; callers hand the scanner whatever bytes
// their own key-management code produces.
type IVK []byte

// DecryptedOutput is everything trial decryption recovers from a
// compact output: enough to materialize a received note row. Nullifier
// is included because nullifier derivation (nk, position, rho) is
// Sapling arithmetic out of scope for this package — the decryptor is
// trusted to supply it alongside the note plaintext.
type DecryptedOutput struct {
	Diversifier [11]byte
	Value       uint64
	Rcm         [32]byte
	Memo        []byte
	IsChange    bool
	Nullifier   [32]byte
}

// Decryptor attempts Sapling trial decryption of a compact output
// against one incoming viewing key.
type Decryptor interface {
	TrialDecrypt(out compact.Output, ivk IVK) (*DecryptedOutput, bool)
}

// AccountKey pairs an account id with the viewing key the scanner
// trial-decrypts against for that account.
type AccountKey struct {
	Account uint32
	IVK     IVK
}
