package witness

import (
	"encoding/binary"
	"fmt"
)

// IncrementalWitness is the minimal per-note state needed to produce an
// authentication path to a commitment tree root, updated one leaf at a
// time as the tree grows past the note's own position. It never stores
// the full tree: only the sibling discovered at each level, plus a
// cursor tree used to discover the siblings that aren't known yet.
type IncrementalWitness struct {
	Combiner NodeCombiner

	position uint64
	leaf     [32]byte

	filled    [Depth][32]byte
	filledSet [Depth]bool

	cursor *Tree
}

// NewWitness creates a witness for a leaf about to be appended to tree
// at tree.Size(). Every level where the tree already holds a pending
// left sibling (equivalently: every level where bit L of the leaf's
// position is 1) is resolved immediately, reading it straight out of
// the tree's frontier before the append mutates it. The remaining
// levels are resolved lazily as later leaves are folded in via Extend.
//
// Call this BEFORE calling tree.Append(leaf) for the same leaf value.
func NewWitness(tree *Tree, leaf [32]byte) *IncrementalWitness {
	combiner := tree.Combiner
	if combiner == nil {
		combiner = DefaultCombiner
	}
	w := &IncrementalWitness{
		Combiner: combiner,
		position: tree.size,
		leaf:     leaf,
		cursor:   New(combiner),
	}
	for level := 0; level < Depth; level++ {
		if tree.parentsSet[level] {
			w.filled[level] = tree.parents[level]
			w.filledSet[level] = true
		}
	}
	return w
}

// Position reports the witnessed leaf's index in the tree.
func (w *IncrementalWitness) Position() uint64 { return w.position }

// Done reports whether every level's sibling is known, meaning Root
// reflects the real current anchor rather than padding with empty
// subtrees for levels still awaiting future leaves.
func (w *IncrementalWitness) Done() bool {
	for level := 0; level < Depth; level++ {
		if !w.filledSet[level] {
			return false
		}
	}
	return true
}

// Extend folds one more leaf, appended to the tree after this witness's
// own leaf, into the witness's cursor, resolving any level whose sibling
// subtree the cursor has now completed. Callers must feed every leaf
// appended to the tree after the witnessed note's own leaf, in order,
// exactly once.
func (w *IncrementalWitness) Extend(leaf [32]byte) error {
	// Later leaves fill the unresolved sibling subtrees lowest level
	// first; the cursor builds only the one currently being filled.
	level := 0
	for level < Depth && w.filledSet[level] {
		level++
	}
	if level == Depth {
		return nil
	}
	if _, err := w.cursor.Append(leaf); err != nil {
		return err
	}
	if w.cursor.Size() == uint64(1)<<uint(level) {
		w.filled[level] = w.cursor.parents[level]
		w.filledSet[level] = true
		w.cursor = New(w.Combiner)
	}
	return nil
}

// Root reconstructs the authentication path from the witnessed leaf up
// to the tree root, using the canonical empty subtree for any level not
// yet resolved. The result is the real current anchor whenever the
// cursor holds no partially filled sibling subtree, since every
// unresolved level's sibling is then still entirely empty.
func (w *IncrementalWitness) Root() [32]byte {
	cur := w.leaf
	for level := 0; level < Depth; level++ {
		sib := emptyNodes[level]
		if w.filledSet[level] {
			sib = w.filled[level]
		}
		if (w.position>>uint(level))&1 == 1 {
			cur = w.Combiner.Combine(sib, cur, uint8(level))
		} else {
			cur = w.Combiner.Combine(cur, sib, uint8(level))
		}
	}
	return cur
}

// Serialize encodes the witness as position, leaf, and a (present, node)
// pair per level, mirroring Tree.Serialize's layout, followed by the
// cursor tree in Tree.Serialize's encoding.
func (w *IncrementalWitness) Serialize() []byte {
	buf := make([]byte, 0, 8+32+Depth*(1+32))
	var posBuf [8]byte
	binary.BigEndian.PutUint64(posBuf[:], w.position)
	buf = append(buf, posBuf[:]...)
	buf = append(buf, w.leaf[:]...)
	for level := 0; level < Depth; level++ {
		if w.filledSet[level] {
			buf = append(buf, 1)
			buf = append(buf, w.filled[level][:]...)
		} else {
			buf = append(buf, 0)
		}
	}
	return append(buf, w.cursor.Serialize()...)
}

// DeserializeWitness rebuilds a witness from bytes produced by
// Serialize, cursor included, so any still-unknown level resumes
// resolving from the next Extend call onward exactly as if the process
// had never restarted. An encoding that ends after the per-level pairs
// yields an empty cursor.
func DeserializeWitness(data []byte, combiner NodeCombiner) (*IncrementalWitness, error) {
	if combiner == nil {
		combiner = DefaultCombiner
	}
	if len(data) < 8+32 {
		return nil, fmt.Errorf("witness: truncated witness encoding (%d bytes)", len(data))
	}
	w := &IncrementalWitness{Combiner: combiner, cursor: New(combiner)}
	w.position = binary.BigEndian.Uint64(data[:8])
	copy(w.leaf[:], data[8:40])
	rest := data[40:]
	for level := 0; level < Depth; level++ {
		if len(rest) < 1 {
			return nil, fmt.Errorf("witness: truncated witness encoding at level %d", level)
		}
		present := rest[0] != 0
		rest = rest[1:]
		if present {
			if len(rest) < 32 {
				return nil, fmt.Errorf("witness: truncated witness node at level %d", level)
			}
			copy(w.filled[level][:], rest[:32])
			w.filledSet[level] = true
			rest = rest[32:]
		}
	}
	if len(rest) > 0 {
		cursor, err := Deserialize(rest, combiner)
		if err != nil {
			return nil, err
		}
		w.cursor = cursor
	}
	return w, nil
}
