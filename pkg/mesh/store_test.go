package mesh

import (
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriangleEqualityIgnoresRotationAndOrientation(t *testing.T) {
	a := Triangle{Edges: [3]int{4, 7, 9}, Orientations: [3]bool{true, true, false}}
	rotations := []Triangle{
		{Edges: [3]int{4, 7, 9}},
		{Edges: [3]int{7, 9, 4}, Orientations: [3]bool{false, false, true}},
		{Edges: [3]int{9, 4, 7}, Orientations: [3]bool{true, false, true}},
	}
	for _, b := range rotations {
		assert.True(t, IsEqual(a, b), "%v vs %v", a.Edges, b.Edges)
		assert.Equal(t, a.Hash(), b.Hash())
	}

	// Same edges, opposite cyclic order.
	assert.False(t, IsEqual(a, Triangle{Edges: [3]int{4, 9, 7}}))
	// Same hash, different edges.
	c := Triangle{Edges: [3]int{5, 6, 9}}
	assert.Equal(t, a.Hash(), c.Hash())
	assert.False(t, IsEqual(a, c))
}

func TestDeletedTriangleEqualsNothing(t *testing.T) {
	tri := Triangle{Edges: [3]int{1, 2, 3}}
	require.True(t, tri.IsEqual(tri))

	tri.Movability = Deleted
	assert.False(t, tri.IsEqual(tri))
	assert.False(t, IsEqual(tri, Triangle{Edges: [3]int{1, 2, 3}}))
}

func TestStoreDeduplicatesEdgesAndTriangles(t *testing.T) {
	s := NewStore()
	a := s.AddNode(v3.Vec{}, Fixed)
	b := s.AddNode(v3.Vec{X: 1}, Fixed)
	c := s.AddNode(v3.Vec{Y: 1}, Fixed)
	d := s.AddNode(v3.Vec{X: 1, Y: 1}, Fixed)

	e1, fwd := s.AddEdge(a, b, Free, 0)
	assert.True(t, fwd)
	e2, fwd := s.AddEdge(b, a, Free, 0)
	assert.Equal(t, e1, e2)
	assert.False(t, fwd)

	t1, added := s.AddTriangleNodes(a, b, c, Free, 0)
	require.True(t, added)
	// Same triangle starting at another corner.
	t2, added := s.AddTriangleNodes(b, c, a, Free, 0)
	assert.False(t, added)
	assert.Equal(t, t1, t2)

	// Neighbour shares edge b-c with opposite orientation.
	t3, added := s.AddTriangleNodes(c, b, d, Free, 0)
	require.True(t, added)
	assert.Equal(t, 5, s.EdgeCount())
	assert.ElementsMatch(t, []int{t1, t3}, s.EdgeTriangles(s.edgeIndex[pairOf(b, c)]))

	assert.Equal(t, [3]int{a, b, c}, s.TriangleNodes(t1))
	assert.Equal(t, [3]int{c, b, d}, s.TriangleNodes(t3))
}

func TestStoreTombstoneAllowsReinsertion(t *testing.T) {
	s := NewStore()
	a := s.AddNode(v3.Vec{}, Free)
	b := s.AddNode(v3.Vec{X: 1}, Free)
	c := s.AddNode(v3.Vec{Y: 1}, Free)

	i, _ := s.AddTriangleNodes(a, b, c, Free, 0)
	s.SetMovability(i, Deleted)
	assert.Equal(t, 1, s.DeletedCount())

	_, found := s.Find(s.Triangle(i))
	assert.False(t, found)

	j, added := s.AddTriangleNodes(a, b, c, Free, 0)
	assert.True(t, added)
	assert.NotEqual(t, i, j)
	assert.Equal(t, Deleted, s.Triangle(i).Movability)
}

func TestStoreCountsInsertedTombstones(t *testing.T) {
	s := NewStore()
	a := s.AddNode(v3.Vec{}, Free)
	b := s.AddNode(v3.Vec{X: 1}, Free)
	c := s.AddNode(v3.Vec{Y: 1}, Free)

	live, _ := s.AddTriangleNodes(a, b, c, Free, 0)
	dead, added := s.AddTriangleNodes(a, b, c, Deleted, 0)
	require.True(t, added)
	assert.NotEqual(t, live, dead)
	assert.Equal(t, 1, s.DeletedCount())
	assert.Equal(t, 2, s.TriangleCount())

	// Reviving the tombstone gives the count back.
	s.SetMovability(live, Deleted)
	s.SetMovability(dead, Free)
	assert.Equal(t, 1, s.DeletedCount())
}
