package atlas

import (
	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/base"
)

// StopReason reports why a manifold traversal stopped. Only ReasonReached
// means the target was attained; the rest are normal geometric outcomes, not
// errors.
type StopReason int

const (
	// ReasonReached means the walk arrived within delta of the target.
	ReasonReached StopReason = iota
	// ReasonCollision means an intermediate state failed validity checking.
	ReasonCollision
	// ReasonChartInvalid means a step deviated from its chart by more than
	// the curvature bound allows; the atlas has reduced rho in response.
	ReasonChartInvalid
	// ReasonTooFar means the accumulated distance exceeded lambda times the
	// straight-line distance.
	ReasonTooFar
	// ReasonProjectionFailed means Newton projection could not keep the walk
	// on the manifold.
	ReasonProjectionFailed
)

func (r StopReason) String() string {
	switch r {
	case ReasonReached:
		return "reached"
	case ReasonCollision:
		return "collision"
	case ReasonChartInvalid:
		return "chart-invalid"
	case ReasonTooFar:
		return "too-far"
	default:
		return "projection-failed"
	}
}

// Traversal is the outcome of one manifold walk.
type Traversal struct {
	Reason StopReason
	// Travelled is the distance accumulated along the manifold before
	// stopping. A collision stop does not count the invalid step.
	Travelled float64
	// Straight is the ambient straight-line distance between the endpoints.
	Straight float64
}

// minTraversalProgress guards against a stalled walk: a projected step
// shorter than this cannot make progress and is treated as a projection
// failure.
const minTraversalProgress = 1e-12

// FollowManifold traverses the manifold from from toward to, returning true
// iff it reached to. See TraverseManifold.
func (s *Space) FollowManifold(from, to *State, interpolate bool, stateList *[]*State) bool {
	return s.TraverseManifold(from, to, interpolate, stateList).Reason == ReasonReached
}

// TraverseManifold walks along the manifold from from toward to in tangent
// steps of length delta, projecting each step back onto the surface and
// handing off between charts at polytope boundaries. Each intermediate state
// is validity checked unless interpolate is true. If stateList is non-nil the
// visited states are appended to it, starting with a copy of from and ending
// with the final state; the caller owns and frees those states.
func (s *Space) TraverseManifold(from, to *State, interpolate bool, stateList *[]*State) *Traversal {
	if !interpolate && s.si == nil {
		panic(base.NewProgrammingError("manifold traversal cannot validity check without space information"))
	}

	result := &Traversal{Straight: s.ambientDistance(from.vec, to.vec)}

	c := from.chart
	if c == nil {
		var err error
		if c, err = s.chartFor(from.vec, nil); err != nil {
			result.Reason = ReasonProjectionFailed
			return result
		}
		from.chart = c
	}
	x := mat.VecDenseCopyOf(from.vec)

	push := func(v *mat.VecDense, chart *Chart) {
		if stateList == nil {
			return
		}
		st := s.AllocState().(*State)
		st.SetRealState(v, chart)
		*stateList = append(*stateList, st)
	}
	push(x, c)

	if result.Straight <= s.opts.Delta {
		result.Reason = ReasonReached
		return result
	}

	scratch := &State{}
	diff := mat.NewVecDense(s.n, nil)
	dir := mat.NewVecDense(s.k, nil)
	for {
		// Project the remaining displacement into the chart tangent and take
		// a step of length delta toward the target.
		diff.SubVec(to.vec, x)
		dir.MulVec(c.basis.T(), diff)
		dirNorm := mat.Norm(dir, 2)
		if dirNorm < minTraversalProgress {
			result.Reason = ReasonProjectionFailed
			return result
		}
		u := c.PsiInverse(x)
		dir.ScaleVec(s.opts.Delta/dirNorm, dir)
		u.AddVec(u, dir)

		xNew, err := c.Psi(u)
		if err != nil {
			result.Reason = ReasonProjectionFailed
			return result
		}
		stepLen := s.ambientDistance(xNew, x)
		if stepLen > 2*s.opts.Delta {
			// The projection pulled the step far off the chart plane, so the
			// chart is no longer trustworthy at this radius.
			s.reduceRho()
			result.Reason = ReasonChartInvalid
			return result
		}

		// The chart plane must stay within epsilon of the surface it claims
		// to approximate.
		plane := mat.NewVecDense(s.n, nil)
		plane.MulVec(c.basis, u)
		plane.AddVec(plane, c.origin)
		if s.ambientDistance(xNew, plane) > s.opts.Epsilon {
			s.reduceRho()
			result.Reason = ReasonChartInvalid
			return result
		}
		if stepLen < minTraversalProgress {
			result.Reason = ReasonProjectionFailed
			return result
		}

		if uNew := c.PsiInverse(xNew); !c.InPolytope(uNew) {
			owner := s.OwningChart(xNew, c)
			if owner == nil {
				if owner, err = s.NewChart(xNew); err != nil {
					result.Reason = ReasonProjectionFailed
					return result
				}
			}
			c = owner
		}

		if !interpolate {
			scratch.vec = xNew
			scratch.chart = c
			if !s.si.IsValid(scratch) {
				result.Reason = ReasonCollision
				return result
			}
		}

		result.Travelled += stepLen
		if result.Travelled > s.opts.Lambda*result.Straight {
			push(xNew, c)
			result.Reason = ReasonTooFar
			return result
		}

		push(xNew, c)
		if s.ambientDistance(xNew, to.vec) <= s.opts.Delta {
			result.Reason = ReasonReached
			return result
		}
		x = xNew
	}
}

// Interpolate writes the state at fraction t of the manifold walk from from
// to to into out, where t = 1 is the final state reached by an interpolating
// traversal, which may not be to. The trace of the previous interpolating
// traversal is reused when the endpoints match; otherwise it is recomputed.
func (s *Space) Interpolate(from, to base.State, t float64, out base.State) {
	f := mustState(from)
	g := mustState(to)
	if s.traceFrom == nil || !s.EqualStates(s.traceFrom, f) || !s.EqualStates(s.traceTo, g) {
		s.dropTrace()
		var list []*State
		s.TraverseManifold(f, g, true, &list)
		if len(list) == 0 {
			// Traversal could not even resolve a chart for the start; fall
			// back to a trace of just the start state.
			st := s.AllocState().(*State)
			s.CopyState(st, f)
			list = append(list, st)
		}
		s.trace = list
		s.traceFrom = s.AllocState().(*State)
		s.CopyState(s.traceFrom, f)
		s.traceTo = s.AllocState().(*State)
		s.CopyState(s.traceTo, g)
	}
	s.FastInterpolate(s.trace, t, mustState(out))
}

func (s *Space) dropTrace() {
	for _, st := range s.trace {
		s.FreeState(st)
	}
	s.trace = nil
	if s.traceFrom != nil {
		s.FreeState(s.traceFrom)
		s.FreeState(s.traceTo)
		s.traceFrom = nil
		s.traceTo = nil
	}
}

// FastInterpolate is like Interpolate but reuses the intermediate states
// already supplied in stateList from a previous interpolating traversal. The
// endpoints are the first and last elements of stateList. The state nearest
// to fraction t of the accumulated arc length is copied into out; blending
// between trace states would leave the manifold.
func (s *Space) FastInterpolate(stateList []*State, t float64, out *State) {
	if len(stateList) == 0 {
		panic(base.NewProgrammingError("cannot interpolate over an empty trace"))
	}
	if len(stateList) == 1 || t <= 0 {
		s.CopyState(out, stateList[0])
		return
	}
	if t > 1 {
		t = 1
	}

	total := 0.0
	lengths := make([]float64, len(stateList)-1)
	for i := 0; i+1 < len(stateList); i++ {
		lengths[i] = s.Distance(stateList[i], stateList[i+1])
		total += lengths[i]
	}
	if total == 0 {
		s.CopyState(out, stateList[0])
		return
	}

	target := t * total
	acc := 0.0
	for i, l := range lengths {
		if acc+l >= target {
			// Snap to the nearer endpoint of the containing segment.
			if target-acc > l/2 {
				s.CopyState(out, stateList[i+1])
			} else {
				s.CopyState(out, stateList[i])
			}
			return
		}
		acc += l
	}
	s.CopyState(out, stateList[len(stateList)-1])
}
