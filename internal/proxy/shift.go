package proxy

import "github.com/agentic-research/lens/internal/model"

// Shift renumbers the Items anchored to the children of parent after the
// source inserted (count > 0) or removed (count < 0) rows or columns
// starting at start. Removed Items are evicted together with everything
// anchored beneath them; their handles are returned.
//
// Only direct children of parent are touched: a mutation under another
// parent needs its own call. count == 0, or a parent without an Item, is a
// no-op. start must be within the parent's pre-mutation bounds.
//
// An Item sitting exactly at start moves on insertion: the source inserts
// in front of the row currently at start.
func (r *Registry[T]) Shift(o model.Orientation, parent model.Index, start, count int) []Handle {
	if count == 0 {
		return nil
	}
	p, ok := r.Find(parent)
	if !ok || p.children.IsEmpty() {
		return nil
	}

	removedEnd := start
	if count < 0 {
		removedEnd = start - count
	}

	var moved []*Item[T]
	var doomed []Handle
	iter := p.children.Iterator()
	for iter.HasNext() {
		c := r.items[Handle(iter.Next())]
		pos := position(c.source, o)
		switch {
		case pos < start:
		case pos < removedEnd:
			doomed = append(doomed, c.handle)
		default:
			moved = append(moved, c)
		}
	}

	var evicted []Handle
	for _, h := range doomed {
		evicted = append(evicted, r.Evict(h)...)
	}

	// Rekey in two passes: a moved Item's new anchor may equal another
	// moved Item's old one.
	for _, c := range moved {
		delete(r.byAnchor, c.source)
	}
	for _, c := range moved {
		c.source = translate(c.source, o, count)
		r.byAnchor[c.source] = c.handle
	}
	return evicted
}

func position(idx model.Index, o model.Orientation) int {
	if o == model.Horizontal {
		return idx.Column()
	}
	return idx.Row()
}

func translate(idx model.Index, o model.Orientation, delta int) model.Index {
	if o == model.Horizontal {
		return idx.Sibling(idx.Row(), idx.Column()+delta)
	}
	return idx.Sibling(idx.Row()+delta, idx.Column())
}
