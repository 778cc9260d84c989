package sls

import (
	"github.com/pkg/errors"

	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// NewPlugin creates an engine over the given kernel.
func NewPlugin(m *expr.Manager, h Host, kind numeric.KernelKind, opts ...Option) (Plugin, error) {
	switch kind {
	case numeric.KindInt:
		e, err := New[numeric.Int](m, h, numeric.IntKernel{}, opts...)
		if err != nil {
			return nil, err
		}
		return e, nil
	case numeric.KindRat:
		e, err := New[numeric.Rat](m, h, numeric.RatKernel{}, opts...)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, errors.Errorf("sls: unknown kernel %s", kind)
}

// SelectKernel picks the cheapest kernel able to represent every term of
// m: the integer kernel unless a real-sorted term or a numeral outside
// the int64 range occurs.
func SelectKernel(m *expr.Manager) numeric.KernelKind {
	reals, fits := false, true
	for i := 0; i < m.Len(); i++ {
		id := expr.ID(i)
		if m.Sort(id) == expr.SortReal {
			reals = true
			break
		}
		if r, ok := m.Numeral(id); ok {
			if _, ok := (numeric.IntKernel{}).FromRat(r); !ok {
				fits = false
			}
		}
	}
	return numeric.Select(reals, fits)
}
