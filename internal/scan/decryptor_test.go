package scan

import (
	"bytes"

	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/compact"
)

// fakeDecryptor matches a compact output's commitment against a table
// the test controls, only succeeding when the caller's ivk is the one
// registered as owning it — standing in for real trial decryption.
type fakeDecryptor struct {
	entries map[[32]byte]fakeEntry
}

type fakeEntry struct {
	ivk IVK
	out DecryptedOutput
}

func newFakeDecryptor() *fakeDecryptor {
	return &fakeDecryptor{entries: make(map[[32]byte]fakeEntry)}
}

func (f *fakeDecryptor) own(commitment [32]byte, ivk IVK, out DecryptedOutput) {
	f.entries[commitment] = fakeEntry{ivk: ivk, out: out}
}

func (f *fakeDecryptor) TrialDecrypt(out compact.Output, ivk IVK) (*DecryptedOutput, bool) {
	entry, ok := f.entries[out.Commitment]
	if !ok || !bytes.Equal(entry.ivk, ivk) {
		return nil, false
	}
	cp := entry.out
	return &cp, true
}
