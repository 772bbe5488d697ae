package witness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWitnessLeftSiblingsResolvedAtCreationMatchTreeRoot(t *testing.T) {
	tree := New(nil)
	for i := byte(0); i < 3; i++ {
		_, err := tree.Append(leafAt(i))
		require.NoError(t, err)
	}

	// Position 3 is 0b011: both of its low bits are 1, so its level-0 and
	// level-1 siblings already sit in the tree's frontier before it is
	// even appended. Every higher sibling is still an empty subtree, so no
	// Extend call is needed for the roots to agree, but Done stays false
	// because those levels still await future leaves.
	w := NewWitness(tree, leafAt(3))
	_, err := tree.Append(leafAt(3))
	require.NoError(t, err)

	require.False(t, w.Done())
	require.Equal(t, tree.Root(), w.Root())
}

func TestWitnessExtendResolvesFutureSibling(t *testing.T) {
	tree := New(nil)

	w := NewWitness(tree, leafAt(0))
	_, err := tree.Append(leafAt(0))
	require.NoError(t, err)
	require.False(t, w.Done())

	_, err = tree.Append(leafAt(1))
	require.NoError(t, err)
	require.NoError(t, w.Extend(leafAt(1)))

	// Both witness and tree now describe a two-leaf tree with every
	// higher level empty, so their roots must agree exactly.
	require.Equal(t, tree.Root(), w.Root())
}

func TestWitnessExtendAcrossMultipleLevels(t *testing.T) {
	tree := New(nil)

	w := NewWitness(tree, leafAt(0))
	_, err := tree.Append(leafAt(0))
	require.NoError(t, err)

	for i := byte(1); i < 4; i++ {
		_, err := tree.Append(leafAt(i))
		require.NoError(t, err)
		require.NoError(t, w.Extend(leafAt(i)))
	}

	require.Equal(t, tree.Root(), w.Root())
}

func TestWitnessSerializeRoundTrip(t *testing.T) {
	tree := New(nil)
	w := NewWitness(tree, leafAt(0))
	_, err := tree.Append(leafAt(0))
	require.NoError(t, err)
	_, err = tree.Append(leafAt(1))
	require.NoError(t, err)
	require.NoError(t, w.Extend(leafAt(1)))

	data := w.Serialize()
	restored, err := DeserializeWitness(data, nil)
	require.NoError(t, err)
	require.Equal(t, w.Position(), restored.Position())
	require.Equal(t, w.Root(), restored.Root())

	_, err = tree.Append(leafAt(2))
	require.NoError(t, err)
	require.NoError(t, w.Extend(leafAt(2)))
	require.NoError(t, restored.Extend(leafAt(2)))
	require.Equal(t, w.Root(), restored.Root())
}

func TestWitnessWithoutExtendDoesNotTrackGrowth(t *testing.T) {
	tree := New(nil)
	w := NewWitness(tree, leafAt(0))
	_, err := tree.Append(leafAt(0))
	require.NoError(t, err)

	rootBefore := w.Root()
	_, err = tree.Append(leafAt(1))
	require.NoError(t, err)

	// Without Extend, the witness still pads the unresolved level with
	// the empty placeholder, so its root is unchanged even though the
	// tree's root moved on.
	require.Equal(t, rootBefore, w.Root())
	require.NotEqual(t, tree.Root(), w.Root())
}
