package proxy

import "github.com/agentic-research/lens/internal/model"

// Identity presents its source unchanged. It is the smallest complete proxy
// and the natural base to stack other proxies on: every source position is
// kept, only the owner of each index is replaced by a registry handle.
type Identity struct {
	*Base[struct{}]
}

// NewIdentity creates an identity proxy over src (which may be nil and set
// later with SetSourceModel).
func NewIdentity(src model.Model, opts ...Option) *Identity {
	p := &Identity{}
	p.Base = NewBase[struct{}](p, opts...)
	if src != nil {
		p.SetSourceModel(src)
	}
	return p
}

// MapToSource implements Mapper.
func (p *Identity) MapToSource(proxy model.Index) model.Index {
	src := p.SourceModel()
	if src == nil {
		return model.Root
	}
	item, ok := p.ItemFor(proxy)
	if !ok {
		return model.Root
	}
	return src.Index(proxy.Row(), proxy.Column(), item.Source())
}

// MapFromSource implements Mapper. Every valid source index is shown.
func (p *Identity) MapFromSource(source model.Index) model.Index {
	src := p.SourceModel()
	if src == nil || !source.Valid() {
		return model.Root
	}
	item := p.EnsureItem(src.Parent(source))
	return p.CreateIndex(source.Row(), source.Column(), item)
}

func (p *Identity) Index(row, column int, parent model.Index) model.Index {
	srcParent, ok := p.ResolveParent(parent)
	if !ok || row < 0 || column < 0 {
		return model.Root
	}
	src := p.SourceModel()
	if row >= src.RowCount(srcParent) || column >= src.ColumnCount(srcParent) {
		return model.Root
	}
	return p.CreateIndex(row, column, p.EnsureItem(srcParent))
}

func (p *Identity) Parent(child model.Index) model.Index {
	item, ok := p.ItemFor(child)
	if !ok {
		return model.Root
	}
	return p.MapFromSource(item.Source())
}

func (p *Identity) RowCount(parent model.Index) int {
	srcParent, ok := p.ResolveParent(parent)
	if !ok {
		return 0
	}
	return p.SourceModel().RowCount(srcParent)
}

// InsertRows forwards to the source at the same position.
func (p *Identity) InsertRows(row, count int, parent model.Index) bool {
	srcParent, ok := p.ResolveParent(parent)
	if !ok {
		return false
	}
	return p.SourceModel().InsertRows(row, count, srcParent)
}

// RemoveRows forwards to the source at the same position.
func (p *Identity) RemoveRows(row, count int, parent model.Index) bool {
	srcParent, ok := p.ResolveParent(parent)
	if !ok {
		return false
	}
	return p.SourceModel().RemoveRows(row, count, srcParent)
}

var (
	_ model.Model = (*Identity)(nil)
	_ Mapper      = (*Identity)(nil)
)
