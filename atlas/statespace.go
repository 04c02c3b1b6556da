package atlas

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/base"
)

var (
	_ base.StateSpace      = (*Space)(nil)
	_ base.StateSampler    = (*Sampler)(nil)
	_ base.MotionValidator = (*MotionValidator)(nil)
)

// Dimension returns the ambient dimension, satisfying base.StateSpace.
func (s *Space) Dimension() int {
	return s.n
}

// AllocState allocates a fresh state of ambient dimension. States must be
// freed through FreeState on the same space.
func (s *Space) AllocState() base.State {
	return &State{vec: mat.NewVecDense(s.n, nil)}
}

// NewState allocates a state already holding x and its owning chart. The
// chart is resolved through the atlas, creating one if needed.
func (s *Space) NewState(x *mat.VecDense) (*State, error) {
	c, err := s.chartFor(x, nil)
	if err != nil {
		return nil, err
	}
	st := s.AllocState().(*State)
	st.SetRealState(x, c)
	return st, nil
}

// FreeState releases a state allocated by this space. Freeing a state twice
// is a caller bug.
func (s *Space) FreeState(st base.State) {
	as, ok := st.(*State)
	if !ok {
		panic(base.NewProgrammingError("freeing state %T not allocated by an atlas space", st))
	}
	if as.freed {
		panic(base.NewProgrammingError("double free of atlas state"))
	}
	as.freed = true
	as.chart = nil
}

// CopyState duplicates src into dst. The two states remain independent.
func (s *Space) CopyState(dst, src base.State) {
	d := mustState(dst)
	sc := mustState(src)
	d.vec.CopyVec(sc.vec)
	d.chart = sc.chart
}

// Distance returns the ambient Euclidean distance between two states.
func (s *Space) Distance(a, b base.State) float64 {
	return s.ambientDistance(mustState(a).vec, mustState(b).vec)
}

// EqualStates reports whether two states coincide in ambient space.
func (s *Space) EqualStates(a, b base.State) bool {
	return s.Distance(a, b) <= equalStateTolerance
}

// HasSymmetricInterpolate reports that traversal from a to b may visit
// different states than b to a.
func (s *Space) HasSymmetricInterpolate() bool {
	return false
}

// AllocDefaultStateSampler returns a sampler over the charted regions of the
// manifold.
func (s *Space) AllocDefaultStateSampler() base.StateSampler {
	return &Sampler{space: s}
}

// SampleUniform samples a state uniformly from the known charted regions of
// the manifold, writing it into out. Sampling may create new charts when a
// projected sample lands outside all known polytopes.
func (s *Space) SampleUniform(out *State) error {
	for attempt := 0; attempt < s.opts.SampleRetries; attempt++ {
		c := s.SampleChart()
		u := sampleInBall(s.rng, s.k, s.rhoS)
		x, err := c.Psi(u)
		if err != nil {
			continue
		}
		owner, err := s.chartFor(x, c)
		if err != nil {
			continue
		}
		out.SetRealState(x, owner)
		return nil
	}
	return errors.Errorf("uniform sampling failed after %d attempts", s.opts.SampleRetries)
}

// SampleUniformNear samples a state within tangent distance d of near,
// writing it into out.
func (s *Space) SampleUniformNear(out, near *State, d float64) error {
	c := near.chart
	if c == nil {
		var err error
		c, err = s.chartFor(near.vec, nil)
		if err != nil {
			return errors.Wrap(err, "near state has no chart")
		}
		near.chart = c
	}
	uNear := c.PsiInverse(near.vec)
	for attempt := 0; attempt < s.opts.SampleRetries; attempt++ {
		u := sampleInBall(s.rng, s.k, d)
		u.AddVec(u, uNear)
		x, err := c.Psi(u)
		if err != nil {
			continue
		}
		owner, err := s.chartFor(x, c)
		if err != nil {
			continue
		}
		out.SetRealState(x, owner)
		return nil
	}
	return errors.Errorf("near sampling failed after %d attempts", s.opts.SampleRetries)
}
