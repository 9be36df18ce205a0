package hwc

import (
	"cmp"
	"slices"

	"github.com/matzehuels/hwcomposer/pkg/errors"
)

// Registry owns the layers of one frame. Layers are kept in presentation
// order: ascending z, ties broken by id.
type Registry struct {
	ordered []*Layer
	byID    map[LayerID]*Layer
}

// NewRegistry indexes layers by id. Nil entries and duplicate ids are
// rejected; an empty list is a valid frame.
func NewRegistry(layers []*Layer) (*Registry, error) {
	r := &Registry{
		ordered: make([]*Layer, 0, len(layers)),
		byID:    make(map[LayerID]*Layer, len(layers)),
	}
	for i, l := range layers {
		if l == nil {
			return nil, errors.New(errors.ErrCodeInvalidSetup, "layer %d is nil", i)
		}
		if _, dup := r.byID[l.ID]; dup {
			return nil, errors.New(errors.ErrCodeInvalidSetup, "duplicate layer id %d", l.ID)
		}
		r.byID[l.ID] = l
		r.ordered = append(r.ordered, l)
	}
	slices.SortStableFunc(r.ordered, CompareZ)
	return r, nil
}

// CompareZ orders layers back to front.
func CompareZ(a, b *Layer) int {
	if c := cmp.Compare(a.Z, b.Z); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Len returns the number of layers.
func (r *Registry) Len() int { return len(r.ordered) }

// Get returns the layer with the given id, or nil.
func (r *Registry) Get(id LayerID) *Layer { return r.byID[id] }

// Ordered returns the layers back to front. The slice is shared; callers
// must not modify it.
func (r *Registry) Ordered() []*Layer { return r.ordered }

// Reset clears the per-pass fields of every layer.
func (r *Registry) Reset() {
	for _, l := range r.ordered {
		l.Assignment = Undetermined()
		l.ClearRequested = false
	}
}
