package atlas

import (
	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/base"
)

// State is a point on the manifold: an ambient vector plus a non-owning
// reference to the chart whose polytope contains its tangent projection. The
// chart reference is updated as the state moves; the vector always satisfies
// the constraint to within the space's projection tolerance.
type State struct {
	vec   *mat.VecDense
	chart *Chart
	freed bool
}

// Vector returns the ambient vector backing the state. Callers must not
// resize it.
func (st *State) Vector() *mat.VecDense {
	return st.vec
}

// Chart returns the chart owning the state, or nil if none has been assigned.
func (st *State) Chart() *Chart {
	return st.chart
}

// SetChart reassigns the owning chart without touching the vector.
func (st *State) SetChart(c *Chart) {
	st.chart = c
}

// SetRealState copies x into the state's vector and records c as the owning
// chart. x must have the ambient dimension of the space that allocated the
// state.
func (st *State) SetRealState(x *mat.VecDense, c *Chart) {
	st.vec.CopyVec(x)
	st.chart = c
}

// mustState unwraps a base.State handed in by a planner. Anything else is a
// caller bug.
func mustState(s base.State) *State {
	st, ok := s.(*State)
	if !ok {
		panic(base.NewProgrammingError("state %T was not allocated by an atlas space", s))
	}
	if st.freed {
		panic(base.NewProgrammingError("use of freed atlas state"))
	}
	return st
}
