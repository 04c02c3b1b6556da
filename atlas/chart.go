package atlas

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/manifold"
)

// halfSpace is one face of a chart's validity polytope in tangent
// coordinates, the set {u : a·u <= b}. Each face is the perpendicular
// bisector between this chart's origin and one neighbor's origin.
type halfSpace struct {
	a        *mat.VecDense
	b        float64
	neighbor *Chart
}

func (h *halfSpace) contains(u *mat.VecDense) bool {
	return mat.Dot(h.a, u) <= h.b
}

// Chart is a local Euclidean coordinate patch of the manifold: an origin
// point on the surface, an orthonormal tangent basis there, and a polytope of
// validity in tangent coordinates. Charts are created by the atlas and live
// as long as it does.
type Chart struct {
	id     int
	space  *Space
	origin *mat.VecDense
	basis  *mat.Dense

	polytope []halfSpace

	// measure is the latest Monte-Carlo estimate of the validity region's
	// volume, and the chart's weight in the atlas sampling distribution.
	measure float64
	// pdfIndex is the chart's slot in the atlas distribution.
	pdfIndex int
}

// ID returns the chart's stable identifier within its atlas.
func (c *Chart) ID() int {
	return c.id
}

// Origin returns the chart's origin on the manifold.
func (c *Chart) Origin() *mat.VecDense {
	return c.origin
}

// Basis returns the chart's orthonormal tangent basis, one column per
// manifold dimension.
func (c *Chart) Basis() *mat.Dense {
	return c.basis
}

// Measure returns the last estimated measure of the chart's validity region.
func (c *Chart) Measure() float64 {
	return c.measure
}

// Neighbors returns the charts sharing a polytope face with this one.
func (c *Chart) Neighbors() []*Chart {
	out := make([]*Chart, 0, len(c.polytope))
	for i := range c.polytope {
		out = append(out, c.polytope[i].neighbor)
	}
	return out
}

// Psi maps tangent coordinate u to the corresponding ambient point on the
// manifold: origin + B·u followed by projection onto the surface.
func (c *Chart) Psi(u *mat.VecDense) (*mat.VecDense, error) {
	x := mat.NewVecDense(c.space.n, nil)
	x.MulVec(c.basis, u)
	x.AddVec(x, c.origin)
	return c.space.projector.Project(x)
}

// PsiInverse returns the orthogonal tangent coordinate of ambient point x
// relative to the chart origin, u = Bᵀ(x - origin). No projection happens.
func (c *Chart) PsiInverse(x *mat.VecDense) *mat.VecDense {
	diff := mat.NewVecDense(c.space.n, nil)
	diff.SubVec(x, c.origin)
	u := mat.NewVecDense(c.space.k, nil)
	u.MulVec(c.basis.T(), diff)
	return u
}

// InPolytope reports whether tangent coordinate u lies inside the chart's
// validity region: every bisector half-space plus the ball bound |u| <= rho.
func (c *Chart) InPolytope(u *mat.VecDense) bool {
	if mat.Norm(u, 2) > c.space.rho {
		return false
	}
	for i := range c.polytope {
		if !c.polytope[i].contains(u) {
			return false
		}
	}
	return true
}

// AddBoundary inserts the perpendicular bisector between this chart's origin
// and neighbor's origin, expressed in this chart's tangent frame, and records
// the neighbor. The caller is responsible for refreshing the chart's measure
// afterward.
func (c *Chart) AddBoundary(neighbor *Chart) {
	un := c.PsiInverse(neighbor.origin)
	// The bisector between tangent origin 0 and un is u·un <= |un|²/2.
	b := mat.Dot(un, un) / 2
	c.polytope = append(c.polytope, halfSpace{a: un, b: b, neighbor: neighbor})
}

// EstimateMeasure runs uniform Monte-Carlo integration over the bounding ball
// of radius rho, returning the estimated volume of the validity region.
func (c *Chart) EstimateMeasure(nSamples int, rng *rand.Rand) float64 {
	if nSamples < 1 {
		nSamples = 1
	}
	inside := 0
	for i := 0; i < nSamples; i++ {
		u := sampleInBall(rng, c.space.k, c.space.rho)
		if c.InPolytope(u) {
			inside++
		}
	}
	frac := float64(inside) / float64(nSamples)
	return frac * manifold.BallMeasure(c.space.k, c.space.rho)
}

// sampleInBall draws a uniform sample from the k-ball of the given radius,
// via a Gaussian direction and a radius drawn as r·U^(1/k).
func sampleInBall(rng *rand.Rand, k int, radius float64) *mat.VecDense {
	u := mat.NewVecDense(k, nil)
	for {
		for i := 0; i < k; i++ {
			u.SetVec(i, rng.NormFloat64())
		}
		norm := mat.Norm(u, 2)
		if norm == 0 {
			continue
		}
		scale := radius * math.Pow(rng.Float64(), 1/float64(k)) / norm
		u.ScaleVec(scale, u)
		return u
	}
}
