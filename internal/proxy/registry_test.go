package proxy

import (
	"testing"

	"github.com/agentic-research/lens/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowAnchor is the source index of row r under the top level (node id 1).
func rowAnchor(r int) model.Index { return model.NewIndex(r, 0, 1) }

// populate creates the root Item and one Item per row.
func populate(t *testing.T, rows ...int) (*Registry[int], *Item[int], map[int]Handle) {
	t.Helper()
	r := NewRegistry[int]()
	root := r.Insert(model.Root, 0)
	handles := make(map[int]Handle, len(rows))
	for _, row := range rows {
		handles[row] = r.Insert(rowAnchor(row), root.Handle()).Handle()
	}
	require.Equal(t, len(rows)+1, r.Len())
	return r, root, handles
}

// rowsOf lists the rows Items under root are anchored to, in handle order.
func rowsOf(r *Registry[int], root *Item[int]) []int {
	var rows []int
	for _, h := range r.Children(root.Handle()) {
		it, _ := r.Lookup(h)
		rows = append(rows, it.Source().Row())
	}
	return rows
}

func TestRegistryInsertFind(t *testing.T) {
	r := NewRegistry[int]()
	root := r.Insert(model.Root, 0)
	assert.Equal(t, Handle(1), root.Handle())
	assert.Equal(t, Handle(0), root.Parent())

	a := r.Insert(rowAnchor(0), root.Handle())
	again := r.Insert(rowAnchor(0), root.Handle())
	assert.Same(t, a, again, "one Item per anchor")

	found, ok := r.Find(rowAnchor(0))
	require.True(t, ok)
	assert.Same(t, a, found)
	assert.Equal(t, root.Handle(), found.Parent())
	assert.Equal(t, []Handle{a.Handle()}, r.Children(root.Handle()))

	_, ok = r.Find(rowAnchor(1))
	assert.False(t, ok)
	_, ok = r.Lookup(99)
	assert.False(t, ok)
}

func TestRegistryEvictCascades(t *testing.T) {
	r, root, h := populate(t, 0, 1)
	child := r.Insert(model.NewIndex(0, 0, 50), h[0])
	grandchild := r.Insert(model.NewIndex(3, 0, 51), child.Handle())

	evicted := r.Evict(h[0])
	assert.ElementsMatch(t, []Handle{h[0], child.Handle(), grandchild.Handle()}, evicted)
	assert.Equal(t, h[0], evicted[0])
	assert.Equal(t, 2, r.Len())

	_, ok := r.Lookup(grandchild.Handle())
	assert.False(t, ok)
	_, ok = r.Find(model.NewIndex(0, 0, 50))
	assert.False(t, ok)
	assert.Equal(t, []Handle{h[1]}, r.Children(root.Handle()))

	assert.Nil(t, r.Evict(h[0]), "evicting twice is a no-op")
}

func TestRegistryEvictChildren(t *testing.T) {
	r, root, h := populate(t, 0, 1, 2)
	evicted := r.EvictChildren(root.Handle())
	assert.ElementsMatch(t, []Handle{h[0], h[1], h[2]}, evicted)
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, r.Children(root.Handle()))
}

func TestRegistryClearNeverReusesHandles(t *testing.T) {
	r, _, h := populate(t, 0)
	r.Clear()
	assert.Equal(t, 0, r.Len())
	_, ok := r.Lookup(h[0])
	assert.False(t, ok)

	fresh := r.Insert(model.Root, 0)
	assert.Greater(t, fresh.Handle(), h[0])
}

func TestRegistryEach(t *testing.T) {
	r, _, h := populate(t, 0, 1, 2)
	var seen []Handle
	r.Each(func(it *Item[int]) {
		seen = append(seen, it.Handle())
		if it.Handle() == h[0] {
			r.Evict(h[1])
		}
	})
	assert.Equal(t, []Handle{1, h[0], h[2]}, seen)
}
