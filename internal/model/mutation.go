package model

import (
	"fmt"
	"sync"
)

// MutationKind classifies a Mutation.
type MutationKind uint8

const (
	// Shifted: Count rows/columns were inserted (Count > 0) or removed
	// (Count < 0) at Start under Parent. Delivered after the change.
	Shifted MutationKind = iota
	// Changed: data of the cells in [Start, Start+Count) of Parent changed.
	// Orientation selects rows or columns.
	Changed
	// Layout: the children of Parent were rearranged without a structural
	// change in the source. Indexes under Parent must be re-fetched.
	Layout
	// Reset: everything is invalid. Parent, Start and Count are unused.
	Reset
)

func (k MutationKind) String() string {
	switch k {
	case Shifted:
		return "shifted"
	case Changed:
		return "changed"
	case Layout:
		return "layout"
	case Reset:
		return "reset"
	}
	return fmt.Sprintf("MutationKind(%d)", uint8(k))
}

// Mutation describes a change a model has already performed.
type Mutation struct {
	Kind        MutationKind
	Orientation Orientation
	Parent      Index
	Start       int
	Count       int
}

func (m Mutation) String() string {
	return fmt.Sprintf("%s %s parent=%s start=%d count=%d", m.Kind, m.Orientation, m.Parent, m.Start, m.Count)
}

// Listener receives mutation notifications.
type Listener interface {
	ModelChanged(m Mutation)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(m Mutation)

func (f ListenerFunc) ModelChanged(m Mutation) { f(m) }

// Notifier is a subscriber list models embed to implement Subscribe.
// Notify delivers synchronously, in subscription order.
type Notifier struct {
	mu        sync.Mutex
	next      uint64
	listeners []subscription
}

type subscription struct {
	id uint64
	l  Listener
}

// Subscribe implements Model.Subscribe.
func (n *Notifier) Subscribe(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	id := n.next
	n.listeners = append(n.listeners, subscription{id: id, l: l})
	return func() { n.unsubscribe(id) }
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.listeners {
		if s.id == id {
			n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Notify delivers m to every subscriber. The subscriber list is snapshotted
// so listeners may unsubscribe while being notified.
func (n *Notifier) Notify(m Mutation) {
	n.mu.Lock()
	snapshot := make([]subscription, len(n.listeners))
	copy(snapshot, n.listeners)
	n.mu.Unlock()

	for _, s := range snapshot {
		s.l.ModelChanged(m)
	}
}
