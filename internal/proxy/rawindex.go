package proxy

import "github.com/agentic-research/lens/internal/model"

// RawIndex is an untyped stand-in for a proxy index, for boundaries that
// cannot carry a model.Index. It is only meaningful to the proxy that issued
// it, and only while the Item behind it lives: tokens are not validated, and
// a stale one decodes to an index that no accessor will resolve.
type RawIndex [2]uint64

// ToRawIndex encodes idx. model.Root encodes to the zero RawIndex.
func (b *Base[T]) ToRawIndex(idx model.Index) RawIndex {
	if !idx.Valid() {
		return RawIndex{}
	}
	return RawIndex{
		uint64(idx.Owner()),
		uint64(uint32(idx.Row()))<<32 | uint64(uint32(idx.Column())),
	}
}

// FromRawIndex decodes a token produced by ToRawIndex.
func (b *Base[T]) FromRawIndex(raw RawIndex) model.Index {
	if raw[0] == 0 {
		return model.Root
	}
	row := int(int32(raw[1] >> 32))
	column := int(int32(uint32(raw[1])))
	return model.NewIndex(row, column, model.Owner(raw[0]))
}
