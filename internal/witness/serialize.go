package witness

import (
	"encoding/binary"
	"fmt"
)

// Serialize encodes the tree's frontier into the compact form stored in
// blocks.sapling_tree: a leaf count followed by a (present, node) pair
// per level. It is a from-scratch binary layout, not a re-use of the
// real Sapling incremental-tree wire format (which Appendix B of the
// protocol spec defines and this project does not implement).
func (t *Tree) Serialize() []byte {
	buf := make([]byte, 8, 8+Depth*(1+32))
	binary.BigEndian.PutUint64(buf, t.size)
	for level := 0; level < Depth; level++ {
		if t.parentsSet[level] {
			buf = append(buf, 1)
			buf = append(buf, t.parents[level][:]...)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

// Deserialize rebuilds a tree's frontier from bytes produced by
// Serialize, using combiner (or DefaultCombiner if nil) for future
// appends.
func Deserialize(data []byte, combiner NodeCombiner) (*Tree, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("witness: truncated tree encoding (%d bytes)", len(data))
	}
	t := New(combiner)
	t.size = binary.BigEndian.Uint64(data[:8])
	rest := data[8:]
	for level := 0; level < Depth; level++ {
		if len(rest) < 1 {
			return nil, fmt.Errorf("witness: truncated tree encoding at level %d", level)
		}
		present := rest[0] != 0
		rest = rest[1:]
		if present {
			if len(rest) < 32 {
				return nil, fmt.Errorf("witness: truncated tree node at level %d", level)
			}
			copy(t.parents[level][:], rest[:32])
			t.parentsSet[level] = true
			rest = rest[32:]
		}
	}
	return t, nil
}
