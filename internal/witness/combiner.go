// Package witness maintains the Sapling commitment tree and the
// per-note incremental witnesses that ride alongside it. Advancing the
// tree and every live witness in lock-step is the core algorithmic
// challenge of the wallet: every appended commitment must be folded
// into each owned note's witness so that note stays spendable.
package witness

import "filippo.io/edwards25519"

// NodeCombiner folds two 32-byte tree nodes at a given level into their
// parent. The real Sapling tree uses a Pedersen hash over Jubjub to do
// this; that primitive is assumed available elsewhere (spec places
// commitment hashing out of scope), so NodeCombiner is the seam a caller
// supplies the genuine implementation through. ScalarCombiner below is
// the package's own deterministic stand-in, used by default and by every
// test in this package.
type NodeCombiner interface {
	Combine(left, right [32]byte, level uint8) [32]byte
}

// ScalarCombiner folds nodes by reducing both sides into the edwards25519
// scalar field and adding them, perturbed by the level so that left/right
// order and tree depth are both reflected in the result. It is not the
// Sapling Pedersen hash — it exists so the tree has *some* real
// elliptic-curve scalar-field operation backing it end to end, with a
// seam (NodeCombiner) a caller can swap for the genuine primitive.
type ScalarCombiner struct{}

// Combine implements NodeCombiner.
func (ScalarCombiner) Combine(left, right [32]byte, level uint8) [32]byte {
	ls, lErr := edwards25519.NewScalar().SetBytesWithClamping(left[:])
	rs, rErr := edwards25519.NewScalar().SetBytesWithClamping(right[:])
	if lErr != nil || rErr != nil {
		// SetBytesWithClamping only errors on wrong input length; both
		// inputs here are fixed [32]byte arrays, so this is unreachable.
		panic("witness: combiner received malformed node")
	}

	levelScalar := edwards25519.NewScalar()
	var levelBytes [32]byte
	levelBytes[0] = level
	levelScalar.SetCanonicalBytes(levelBytes[:])

	sum := edwards25519.NewScalar().Add(ls, rs)
	sum = sum.Add(sum, levelScalar)

	var out [32]byte
	copy(out[:], sum.Bytes())
	return out
}

// DefaultCombiner is the package-wide default NodeCombiner.
var DefaultCombiner NodeCombiner = ScalarCombiner{}
