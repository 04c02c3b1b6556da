// Package atlas implements an incrementally constructed atlas of local
// tangent charts approximating an implicit constraint manifold, along with
// the sampling, projection, and geodesic traversal machinery that lets
// sampling-based planners operate on that manifold.
//
// The chart collection grows during sampling and traversal, operations that
// planners treat as logically read-only. That growth is an intended side
// effect; the space is therefore not re-entrant and must only be used from a
// single goroutine.
package atlas

import (
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/base"
	"github.com/atlasplan/atlasplan/manifold"
)

const equalStateTolerance = 1e-10

// Space is an atlas over a constraint manifold. It owns the chart collection,
// a measure-weighted sampling distribution over it, and all states allocated
// for planning. Charts are never destroyed during planning.
type Space struct {
	constraint *manifold.Constraint
	projector  *manifold.Projector
	opts       *Options
	logger     golog.Logger
	rng        *rand.Rand

	n int // ambient dimension
	k int // manifold dimension

	pdf chartPDF

	// rho is halved at runtime when a traversal step shows a chart deviating
	// from the manifold: a projected step longer than 2*delta, or a projected
	// point more than epsilon from the chart plane. The angle bound alpha is
	// not checked during traversal; ChartValidAt tests it only when called.
	rho      float64
	rhoS     float64
	cosAlpha float64

	si *base.SpaceInformation

	// Cached trace from the last interpolating traversal, reused by
	// Interpolate when the endpoints match.
	trace     []*State
	traceFrom *State
	traceTo   *State
}

// New creates an atlas over the given constraint with a fixed default seed.
func New(constraint *manifold.Constraint, opts *Options, logger golog.Logger) (*Space, error) {
	//nolint:gosec
	return NewWithSeed(constraint, opts, rand.New(rand.NewSource(1)), logger)
}

// NewWithSeed creates an atlas using the supplied random number generator.
// Chart creation order is deterministic for a fixed seed.
func NewWithSeed(constraint *manifold.Constraint, opts *Options, seed *rand.Rand, logger golog.Logger) (*Space, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	projector, err := manifold.NewProjector(constraint, opts.ProjectionTolerance, opts.ProjectionMaxIterations)
	if err != nil {
		return nil, err
	}
	s := &Space{
		constraint: constraint,
		projector:  projector,
		opts:       opts,
		logger:     logger,
		rng:        seed,
		n:          constraint.AmbientDim(),
		k:          constraint.ManifoldDim(),
		cosAlpha:   math.Cos(opts.Alpha),
	}
	s.setRho(opts.Rho)
	return s, nil
}

// SetSpaceInformation associates si with this space. si must have been
// constructed from this atlas.
func (s *Space) SetSpaceInformation(si *base.SpaceInformation) error {
	if si.Space() != base.StateSpace(s) {
		return errors.New("space information was not constructed from this atlas")
	}
	s.si = si
	return nil
}

// Constraint returns the manifold the atlas covers.
func (s *Space) Constraint() *manifold.Constraint {
	return s.constraint
}

// Projector returns the Newton projector shared by all charts.
func (s *Space) Projector() *manifold.Projector {
	return s.projector
}

// Delta returns the traversal step size.
func (s *Space) Delta() float64 { return s.opts.Delta }

// Epsilon returns the chart-to-manifold distance bound.
func (s *Space) Epsilon() float64 { return s.opts.Epsilon }

// Rho returns the current chart radius bound.
func (s *Space) Rho() float64 { return s.rho }

// RhoS returns the sampling radius, inferred from rho and exploration.
func (s *Space) RhoS() float64 { return s.rhoS }

// Alpha returns the chart-to-manifold angle bound.
func (s *Space) Alpha() float64 { return s.opts.Alpha }

// Exploration returns the refinement/exploration balance.
func (s *Space) Exploration() float64 { return s.opts.Exploration }

// Lambda returns the traversal distance budget multiplier.
func (s *Space) Lambda() float64 { return s.opts.Lambda }

// ProjectionTolerance returns the Newton halt criterion.
func (s *Space) ProjectionTolerance() float64 { return s.opts.ProjectionTolerance }

// AmbientDimension returns the dimension of the ambient space.
func (s *Space) AmbientDimension() int { return s.n }

// ManifoldDimension returns the dimension of the constraint manifold.
func (s *Space) ManifoldDimension() int { return s.k }

// ChartCount returns the number of charts currently in the atlas.
func (s *Space) ChartCount() int {
	return len(s.pdf.charts)
}

// MonteCarloSamples returns the number of samples used in chart measure
// estimation, proportional to thoroughness^k.
func (s *Space) MonteCarloSamples() int {
	samples := int(math.Ceil(math.Pow(s.opts.MonteCarloThoroughness, float64(s.k))))
	if samples < 10 {
		samples = 10
	}
	return samples
}

// MeasureRhoKBall returns the measure of a manifold-dimensional ball of
// radius sqrt(2)*rho, the initial weight of a freshly created chart.
func (s *Space) MeasureRhoKBall() float64 {
	return manifold.BallMeasure(s.k, math.Sqrt2*s.rho)
}

// SetRho replaces the chart radius bound and re-estimates every chart's
// measure, since the bounding ball all estimates integrate over has changed.
func (s *Space) SetRho(rho float64) error {
	if rho <= 0 {
		return errors.Errorf("rho must be positive, got %g", rho)
	}
	s.setRho(rho)
	for _, c := range s.pdf.charts {
		s.updateMeasure(c)
	}
	return nil
}

func (s *Space) setRho(rho float64) {
	s.rho = rho
	s.rhoS = rho / math.Pow(1-s.opts.Exploration, 1/float64(s.k))
}

// reduceRho halves the chart radius bound in response to a detected chart
// validity violation.
func (s *Space) reduceRho() {
	if s.logger != nil {
		s.logger.Debugf("chart validity violation, reducing rho from %g to %g", s.rho, s.rho/2)
	}
	// Error unreachable, the halved radius stays positive.
	//nolint:errcheck
	s.SetRho(s.rho / 2)
}

// NewChart creates a chart centered at xorigin, which must lie on the
// manifold, links it to every existing chart whose origin is within 2*rho,
// and inserts it into the sampling distribution. The atlas grows during
// logically read-only planning queries through this method; that is an
// intended side effect.
func (s *Space) NewChart(xorigin *mat.VecDense) (*Chart, error) {
	if !s.constraint.Satisfied(xorigin, s.opts.ProjectionTolerance) {
		return nil, errors.Errorf("chart origin does not satisfy the constraint: |F| = %g",
			mat.Norm(s.constraint.F(xorigin), 2))
	}
	basis, err := manifold.TangentFrame(s.constraint.J(xorigin))
	if err != nil {
		return nil, errors.Wrap(err, "cannot build tangent frame for new chart")
	}

	c := &Chart{
		id:     len(s.pdf.charts),
		space:  s,
		origin: mat.VecDenseCopyOf(xorigin),
		basis:  basis,
	}

	// Link to nearby charts with mutual bisector faces. 2*rho is a cheap
	// filter: farther origins cannot share a face.
	var touched []*Chart
	for _, other := range s.pdf.charts {
		if s.ambientDistance(c.origin, other.origin) <= 2*s.rho {
			c.AddBoundary(other)
			other.AddBoundary(c)
			touched = append(touched, other)
		}
	}

	s.pdf.add(c, s.MeasureRhoKBall())
	s.updateMeasure(c)
	for _, other := range touched {
		s.updateMeasure(other)
	}
	if s.logger != nil {
		s.logger.Debugf("created chart %d, atlas now has %d charts", c.ID(), s.ChartCount())
	}
	return c, nil
}

// updateMeasure refreshes the recorded measure of c by Monte-Carlo
// integration.
func (s *Space) updateMeasure(c *Chart) {
	s.pdf.update(c, c.EstimateMeasure(s.MonteCarloSamples(), s.rng))
}

// SampleChart picks a chart at random with probability proportional to its
// measure. Sampling from an empty atlas is a caller bug; seed the atlas with
// NewChart at the start and goal first.
func (s *Space) SampleChart() *Chart {
	if len(s.pdf.charts) == 0 {
		panic(base.NewProgrammingError("cannot sample a chart from an empty atlas"))
	}
	return s.pdf.sample(s.rng)
}

// OwningChart finds the chart whose polytope contains x's tangent
// projection and whose chart plane passes within epsilon of x. The hint,
// when given, is preferred outright, then its neighbors, then the rest of the
// atlas; ties among candidates go to the chart with the closest origin in
// ambient distance. Returns nil if no chart contains x.
func (s *Space) OwningChart(x *mat.VecDense, hint *Chart) *Chart {
	if hint != nil {
		if s.closestContaining(x, []*Chart{hint}) != nil {
			return hint
		}
		if c := s.closestContaining(x, hint.Neighbors()); c != nil {
			return c
		}
	}
	return s.closestContaining(x, s.pdf.charts)
}

func (s *Space) closestContaining(x *mat.VecDense, charts []*Chart) *Chart {
	var best *Chart
	bestDist := math.Inf(1)
	for _, c := range charts {
		u := c.PsiInverse(x)
		if !c.InPolytope(u) {
			continue
		}
		// A point on a distant part of the manifold can share the tangent
		// projection; it must also lie near the chart plane.
		plane := mat.NewVecDense(s.n, nil)
		plane.MulVec(c.basis, u)
		plane.AddVec(plane, c.origin)
		if s.ambientDistance(x, plane) > s.opts.Epsilon {
			continue
		}
		if d := s.ambientDistance(x, c.origin); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// DichotomicSearch locates the polytope border of chart c between tangent
// coordinates uInside (inside the polytope) and uOutside by binary
// subdivision. The returned coordinate lies inside the polytope, within
// dichotomicTolerance of the border along the segment.
func (s *Space) DichotomicSearch(c *Chart, uInside, uOutside *mat.VecDense) *mat.VecDense {
	lo := mat.VecDenseCopyOf(uInside)
	hi := mat.VecDenseCopyOf(uOutside)
	mid := mat.NewVecDense(s.k, nil)
	for {
		mid.AddVec(lo, hi)
		mid.ScaleVec(0.5, mid)
		diff := mat.NewVecDense(s.k, nil)
		diff.SubVec(hi, lo)
		if mat.Norm(diff, 2) <= dichotomicTolerance {
			return lo
		}
		if c.InPolytope(mid) {
			lo.CopyVec(mid)
		} else {
			hi.CopyVec(mid)
		}
	}
}

const dichotomicTolerance = 1e-6

func (s *Space) ambientDistance(a, b *mat.VecDense) float64 {
	diff := mat.NewVecDense(s.n, nil)
	diff.SubVec(a, b)
	return mat.Norm(diff, 2)
}

// ChartValidAt reports whether chart c still approximates the manifold
// within the angular tolerance at ambient point x: the smallest principal
// cosine between c's basis and the tangent frame at x must be at least
// cos(alpha). A rank collapse at x counts as invalid.
func (s *Space) ChartValidAt(c *Chart, x *mat.VecDense) bool {
	basis, err := manifold.TangentFrame(s.constraint.J(x))
	if err != nil {
		return false
	}
	var overlap mat.Dense
	overlap.Mul(c.basis.T(), basis)
	var svd mat.SVD
	if !svd.Factorize(&overlap, mat.SVDNone) {
		return false
	}
	values := svd.Values(nil)
	return values[len(values)-1] >= s.cosAlpha
}

// chartFor resolves a chart for x, creating one if no existing chart
// contains it.
func (s *Space) chartFor(x *mat.VecDense, hint *Chart) (*Chart, error) {
	if c := s.OwningChart(x, hint); c != nil {
		return c, nil
	}
	return s.NewChart(x)
}
