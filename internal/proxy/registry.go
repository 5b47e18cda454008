package proxy

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/lens/internal/model"
)

// Handle identifies an Item in a Registry. Proxy indexes carry the handle of
// the Item anchored to their source parent as their model.Owner.
// Handles are never reused; 0 means "no item".
type Handle uint32

// Item is the bookkeeping a proxy keeps for the children of one source
// parent. Data holds whatever per-parent state the proxy policy needs.
type Item[T any] struct {
	handle   Handle
	source   model.Index
	parent   Handle
	children *roaring.Bitmap // handles of Items anchored to our source's children

	Data T
}

func (it *Item[T]) Handle() Handle { return it.handle }

// Source returns the source parent Index this Item is anchored to.
// model.Root for the root Item.
func (it *Item[T]) Source() model.Index { return it.source }

// Parent returns the handle of the Item anchored to Source's parent,
// 0 for the root Item.
func (it *Item[T]) Parent() Handle { return it.parent }

// Registry maps source parent indexes to Items. It is an arena: Items are
// only reachable through their handle or their anchor, so evicting one is a
// single delete and proxy indexes pointing at it simply stop resolving.
//
// The parent→children bitmaps make shifting O(k) in the number of Items under
// the affected parent, the same way graph indexes map a file to its nodes.
//
// Registry is not safe for concurrent use.
type Registry[T any] struct {
	items    map[Handle]*Item[T]
	byAnchor map[model.Index]Handle
	next     Handle
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		items:    make(map[Handle]*Item[T]),
		byAnchor: make(map[model.Index]Handle),
		next:     1,
	}
}

// Len returns the number of live Items.
func (r *Registry[T]) Len() int { return len(r.items) }

// Lookup resolves a handle. Evicted or unknown handles report false.
func (r *Registry[T]) Lookup(h Handle) (*Item[T], bool) {
	it, ok := r.items[h]
	return it, ok
}

// Find returns the Item anchored to the given source parent.
func (r *Registry[T]) Find(anchor model.Index) (*Item[T], bool) {
	h, ok := r.byAnchor[anchor]
	if !ok {
		return nil, false
	}
	return r.items[h], true
}

// Insert returns the Item anchored at anchor, creating it under parent if it
// does not exist yet. parent must be a live handle, or 0 for the root Item.
func (r *Registry[T]) Insert(anchor model.Index, parent Handle) *Item[T] {
	if it, ok := r.Find(anchor); ok {
		return it
	}
	it := &Item[T]{
		handle:   r.next,
		source:   anchor,
		parent:   parent,
		children: roaring.New(),
	}
	r.next++
	r.items[it.handle] = it
	r.byAnchor[anchor] = it.handle
	if p, ok := r.items[parent]; ok {
		p.children.Add(uint32(it.handle))
	}
	return it
}

// Children returns the handles of the Items directly beneath h, ascending.
func (r *Registry[T]) Children(h Handle) []Handle {
	it, ok := r.items[h]
	if !ok {
		return nil
	}
	return toHandles(it.children.ToArray())
}

// Each calls fn for every live Item in handle order. Items evicted by fn
// before they are reached are skipped.
func (r *Registry[T]) Each(fn func(it *Item[T])) {
	all := roaring.New()
	for h := range r.items {
		all.Add(uint32(h))
	}
	iter := all.Iterator()
	for iter.HasNext() {
		if it, ok := r.items[Handle(iter.Next())]; ok {
			fn(it)
		}
	}
}

// Evict removes h and every Item anchored beneath it. It returns the evicted
// handles, h first. Unknown handles are ignored.
func (r *Registry[T]) Evict(h Handle) []Handle {
	it, ok := r.items[h]
	if !ok {
		return nil
	}
	if p, ok := r.items[it.parent]; ok {
		p.children.Remove(uint32(h))
	}
	return r.evictTree(h)
}

// EvictChildren removes every Item beneath h but keeps h itself.
func (r *Registry[T]) EvictChildren(h Handle) []Handle {
	it, ok := r.items[h]
	if !ok {
		return nil
	}
	var evicted []Handle
	for _, c := range toHandles(it.children.ToArray()) {
		evicted = append(evicted, r.evictTree(c)...)
	}
	it.children.Clear()
	return evicted
}

// evictTree walks the subtree rooted at h with an explicit stack.
// The caller has already unlinked h from its parent.
func (r *Registry[T]) evictTree(h Handle) []Handle {
	var evicted []Handle
	stack := []Handle{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		it, ok := r.items[cur]
		if !ok {
			continue
		}
		evicted = append(evicted, cur)
		stack = append(stack, toHandles(it.children.ToArray())...)
		delete(r.items, cur)
		delete(r.byAnchor, it.source)
	}
	return evicted
}

// Clear discards every Item. Handles keep counting up so that indexes
// issued before the clear can never resolve to a new Item.
func (r *Registry[T]) Clear() {
	r.items = make(map[Handle]*Item[T])
	r.byAnchor = make(map[model.Index]Handle)
}

func toHandles(ids []uint32) []Handle {
	out := make([]Handle, len(ids))
	for i, id := range ids {
		out[i] = Handle(id)
	}
	return out
}
