package proxy

import (
	"log/slog"

	"github.com/agentic-research/lens/internal/model"
)

// Mapper translates between proxy and source indexes. Every concrete proxy
// implements it; Base calls back into it for all delegated operations.
//
// MapToSource must accept any index the proxy produced and satisfy
// MapFromSource(MapToSource(a)) == a. MapFromSource returns model.Root for
// source indexes the proxy does not show.
type Mapper interface {
	MapToSource(proxy model.Index) model.Index
	MapFromSource(source model.Index) model.Index
}

// Reconciler is implemented by proxies that keep derived per-parent state.
// Base calls Reconcile after the registry has been shifted for m; evicted
// lists the Items that were destroyed. The returned mutations, expressed in
// proxy space, are broadcast to the proxy's subscribers.
type Reconciler interface {
	Reconcile(m model.Mutation, evicted []Handle) []model.Mutation
}

// Option configures a Base.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *Metrics
}

// WithLogger sets the logger used for registry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the collectors the proxy reports to.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Base is the machinery concrete proxies are built on: the Item registry,
// shifting on source mutations, raw index bridging and the operations that
// only need to translate an index and forward to the source.
//
// Concrete proxies embed *Base[T] and pass themselves as the Mapper.
// Base is single-threaded: callers must not query the proxy while the
// source is being mutated from another goroutine.
type Base[T any] struct {
	model.Notifier

	mapper   Mapper
	source   model.Model
	cancel   func()
	registry *Registry[T]
	logger   *slog.Logger
	metrics  *Metrics
}

func NewBase[T any](mapper Mapper, opts ...Option) *Base[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	return &Base[T]{
		mapper:   mapper,
		registry: NewRegistry[T](),
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// SetSourceModel replaces the source. Every Item is discarded, so every
// index previously handed out by the proxy becomes unresolvable, and
// subscribers receive a reset. The proxy never owns the source.
func (b *Base[T]) SetSourceModel(src model.Model) {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.source = src
	b.metrics.evictions.Add(float64(b.clear()))
	if src != nil {
		b.cancel = src.Subscribe(model.ListenerFunc(b.sourceChanged))
	}
	b.logger.Debug("proxy source replaced", "has_source", src != nil)
	b.Notify(model.Mutation{Kind: model.Reset})
}

// SourceModel returns the current source, nil if none is set.
func (b *Base[T]) SourceModel() model.Model { return b.source }

// Registry exposes the Item registry to the concrete proxy.
func (b *Base[T]) Registry() *Registry[T] { return b.registry }

// EnsureItem returns the Item anchored to sourceParent, creating it and any
// missing ancestors. model.Root yields the root Item. A source must be set.
func (b *Base[T]) EnsureItem(sourceParent model.Index) *Item[T] {
	if it, ok := b.registry.Find(sourceParent); ok {
		return it
	}

	var chain []model.Index
	cur := sourceParent
	for cur.Valid() {
		if _, ok := b.registry.Find(cur); ok {
			break
		}
		chain = append(chain, cur)
		cur = b.source.Parent(cur)
	}

	parent, ok := b.registry.Find(cur)
	if !ok {
		parent = b.registry.Insert(model.Root, 0)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		parent = b.registry.Insert(chain[i], parent.Handle())
	}
	b.metrics.items.Set(float64(b.registry.Len()))
	return parent
}

// ItemFor resolves the Item owning a proxy index.
func (b *Base[T]) ItemFor(proxy model.Index) (*Item[T], bool) {
	if !proxy.Valid() {
		return nil, false
	}
	return b.registry.Lookup(Handle(proxy.Owner()))
}

// CreateIndex builds a proxy index for (row, column) under item's source
// parent.
func (b *Base[T]) CreateIndex(row, column int, item *Item[T]) model.Index {
	return model.NewIndex(row, column, model.Owner(item.Handle()))
}

// CreateSourceIndex builds a source-side index that uses item's handle as
// its owner. It is not used by Identity or Filter; it is exported for
// proxies outside this package whose source addresses its cells through
// the proxy's registry instead of its own identities, e.g. a source built
// on top of the proxy it feeds.
func (b *Base[T]) CreateSourceIndex(row, column int, item *Item[T]) model.Index {
	return model.NewIndex(row, column, model.Owner(item.Handle()))
}

// resolve maps a proxy cell index to a valid source index.
func (b *Base[T]) resolve(proxy model.Index, op string) (model.Index, bool) {
	if b.source == nil || !proxy.Valid() {
		b.metrics.unresolved.WithLabelValues(op).Inc()
		return model.Root, false
	}
	if _, ok := b.ItemFor(proxy); !ok {
		b.metrics.unresolved.WithLabelValues(op).Inc()
		return model.Root, false
	}
	src := b.mapper.MapToSource(proxy)
	if !src.Valid() {
		b.metrics.unresolved.WithLabelValues(op).Inc()
		return model.Root, false
	}
	return src, true
}

// ResolveParent maps a proxy parent to a source parent. The proxy root maps
// to the source root; any other index must resolve.
func (b *Base[T]) ResolveParent(parent model.Index) (model.Index, bool) {
	if b.source == nil {
		return model.Root, false
	}
	if !parent.Valid() {
		return model.Root, true
	}
	return b.resolve(parent, "parent")
}

// Data forwards to the source. Unresolvable indexes report absence.
func (b *Base[T]) Data(idx model.Index, role model.Role) (any, bool) {
	src, ok := b.resolve(idx, "data")
	if !ok {
		return nil, false
	}
	return b.source.Data(src, role)
}

// SetData forwards to the source. Unresolvable indexes report false.
func (b *Base[T]) SetData(idx model.Index, value any, role model.Role) bool {
	src, ok := b.resolve(idx, "set_data")
	if !ok {
		return false
	}
	return b.source.SetData(src, value, role)
}

// Flags forwards to the source. Unresolvable indexes have no capabilities.
func (b *Base[T]) Flags(idx model.Index) model.Flags {
	src, ok := b.resolve(idx, "flags")
	if !ok {
		return model.FlagsNone
	}
	return b.source.Flags(src)
}

// HeaderData forwards horizontal headers unchanged. Proxies that move rows
// override it for vertical headers.
func (b *Base[T]) HeaderData(section int, orientation model.Orientation, role model.Role) (any, bool) {
	if b.source == nil {
		return nil, false
	}
	return b.source.HeaderData(section, orientation, role)
}

// ColumnCount forwards to the source; columns are never remapped by Base.
func (b *Base[T]) ColumnCount(parent model.Index) int {
	src, ok := b.ResolveParent(parent)
	if !ok {
		return 0
	}
	return b.source.ColumnCount(src)
}

// InsertColumns asks the source to insert columns. The registry is only
// updated once the source reports what it actually did.
func (b *Base[T]) InsertColumns(column, count int, parent model.Index) bool {
	src, ok := b.ResolveParent(parent)
	if !ok {
		return false
	}
	return b.source.InsertColumns(column, count, src)
}

// RemoveColumns asks the source to remove columns, see InsertColumns.
func (b *Base[T]) RemoveColumns(column, count int, parent model.Index) bool {
	src, ok := b.ResolveParent(parent)
	if !ok {
		return false
	}
	return b.source.RemoveColumns(column, count, src)
}

// sourceChanged keeps the registry in step with the source before the
// concrete proxy gets to reconcile its own state.
func (b *Base[T]) sourceChanged(m model.Mutation) {
	var evicted []Handle
	dropped := 0
	relayout := false
	switch m.Kind {
	case model.Reset:
		dropped = b.clear()
	case model.Shifted:
		if coversParentColumn(m) {
			// Children hang off column 0. Moving their anchors to another
			// column would orphan them, so they are dropped and rebuilt.
			if it, ok := b.registry.Find(m.Parent); ok {
				evicted = b.registry.EvictChildren(it.Handle())
				relayout = len(evicted) > 0
			}
		} else {
			evicted = b.registry.Shift(m.Orientation, m.Parent, m.Start, m.Count)
		}
		direction := "insert"
		if m.Count < 0 {
			direction = "remove"
		}
		if m.Count != 0 {
			b.metrics.shifts.WithLabelValues(m.Orientation.String(), direction).Inc()
		}
		b.logger.Debug("proxy registry shifted",
			"orientation", m.Orientation.String(),
			"parent", m.Parent.String(),
			"start", m.Start,
			"count", m.Count,
			"evicted", len(evicted),
		)
	case model.Layout:
		if it, ok := b.registry.Find(m.Parent); ok {
			evicted = b.registry.EvictChildren(it.Handle())
		}
	}
	b.metrics.evictions.Add(float64(dropped + len(evicted)))
	b.metrics.items.Set(float64(b.registry.Len()))

	var out []model.Mutation
	if r, ok := b.mapper.(Reconciler); ok {
		out = r.Reconcile(m, evicted)
	} else {
		out = b.Translate(m)
	}
	if relayout {
		out = append(out, b.Translate(model.Mutation{Kind: model.Layout, Parent: m.Parent})...)
	}
	for _, pm := range out {
		b.Notify(pm)
	}
}

// coversParentColumn reports whether a column shift moves or removes
// column 0, the column child rows are anchored to.
func coversParentColumn(m model.Mutation) bool {
	return m.Orientation == model.Horizontal && m.Count != 0 && m.Start == 0
}

// Translate re-expresses a source mutation in proxy space assuming the
// proxy keeps source positions, which is what a 1:1 proxy needs. Mutations
// under a parent the proxy does not show are dropped.
func (b *Base[T]) Translate(m model.Mutation) []model.Mutation {
	if m.Kind == model.Reset || !m.Parent.Valid() {
		return []model.Mutation{m}
	}
	parent := b.mapper.MapFromSource(m.Parent)
	if !parent.Valid() {
		return nil
	}
	m.Parent = parent
	return []model.Mutation{m}
}

// clear drops every Item and returns how many there were.
func (b *Base[T]) clear() int {
	n := b.registry.Len()
	b.registry.Clear()
	b.metrics.items.Set(0)
	if n > 0 {
		b.logger.Debug("proxy registry cleared", "items", n)
	}
	return n
}
