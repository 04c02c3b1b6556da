// Package manifold defines implicit constraint manifolds in ambient Euclidean
// space and the numerical machinery for working on them: null-space tangent
// frames and Newton projection onto the constraint surface.
package manifold

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Func evaluates the constraint violation F(x). The result has one entry per
// constraint and is the zero vector exactly when x lies on the manifold.
type Func func(x *mat.VecDense) *mat.VecDense

// JacobianFunc evaluates the Jacobian of the constraint function at x, one
// row per constraint and one column per ambient dimension.
type JacobianFunc func(x *mat.VecDense) *mat.Dense

// Constraint is an implicit manifold: the zero set of F in an ambient space
// of the given dimension. Both F and J must be smooth and side-effect free.
type Constraint struct {
	ambientDim    int
	constraintDim int
	f             Func
	j             JacobianFunc
}

// NewConstraint builds a constraint manifold of dimension ambientDim -
// constraintDim.
func NewConstraint(ambientDim, constraintDim int, f Func, j JacobianFunc) (*Constraint, error) {
	if ambientDim <= 0 {
		return nil, errors.Errorf("ambient dimension must be positive, got %d", ambientDim)
	}
	if constraintDim <= 0 || constraintDim >= ambientDim {
		return nil, errors.Errorf("constraint count must be in (0, %d), got %d", ambientDim, constraintDim)
	}
	return &Constraint{ambientDim: ambientDim, constraintDim: constraintDim, f: f, j: j}, nil
}

// AmbientDim returns the dimension of the ambient space.
func (c *Constraint) AmbientDim() int {
	return c.ambientDim
}

// ManifoldDim returns the dimension of the manifold itself.
func (c *Constraint) ManifoldDim() int {
	return c.ambientDim - c.constraintDim
}

// ConstraintDim returns the number of scalar constraints.
func (c *Constraint) ConstraintDim() int {
	return c.constraintDim
}

// F evaluates the constraint violation at x.
func (c *Constraint) F(x *mat.VecDense) *mat.VecDense {
	return c.f(x)
}

// J evaluates the constraint Jacobian at x.
func (c *Constraint) J(x *mat.VecDense) *mat.Dense {
	return c.j(x)
}

// Satisfied reports whether x lies on the manifold to within tol.
func (c *Constraint) Satisfied(x *mat.VecDense, tol float64) bool {
	return mat.Norm(c.F(x), 2) <= tol
}

// NewSphereConstraint returns the unit sphere in the given ambient dimension,
// F(x) = |x| - 1.
func NewSphereConstraint(ambientDim int) (*Constraint, error) {
	f := func(x *mat.VecDense) *mat.VecDense {
		out := mat.NewVecDense(1, nil)
		out.SetVec(0, mat.Norm(x, 2)-1)
		return out
	}
	j := func(x *mat.VecDense) *mat.Dense {
		norm := mat.Norm(x, 2)
		out := mat.NewDense(1, ambientDim, nil)
		for i := 0; i < ambientDim; i++ {
			out.Set(0, i, x.AtVec(i)/norm)
		}
		return out
	}
	return NewConstraint(ambientDim, 1, f, j)
}

// NewLinkedPointsConstraint returns a 4-dimensional manifold over three
// points p1, p2, p3 in R^3 (nine ambient dimensions): p1 sits exactly three
// units above p2, and p3 orbits p1 at distance two in the plane perpendicular
// to p1.
func NewLinkedPointsConstraint() (*Constraint, error) {
	f := func(x *mat.VecDense) *mat.VecDense {
		p1 := x.SliceVec(0, 3)
		p2 := x.SliceVec(3, 6)
		p3 := x.SliceVec(6, 9)

		diff13 := mat.NewVecDense(3, nil)
		diff13.SubVec(p1, p3)
		diff31 := mat.NewVecDense(3, nil)
		diff31.SubVec(p3, p1)

		out := mat.NewVecDense(5, nil)
		out.SetVec(0, p1.AtVec(0)-p2.AtVec(0))
		out.SetVec(1, p1.AtVec(1)-p2.AtVec(1))
		out.SetVec(2, p1.AtVec(2)-p2.AtVec(2)-3)
		out.SetVec(3, mat.Norm(diff13, 2)-2)
		out.SetVec(4, mat.Dot(diff31, p1))
		return out
	}
	j := func(x *mat.VecDense) *mat.Dense {
		p1 := x.SliceVec(0, 3)
		p3 := x.SliceVec(6, 9)

		diff13 := mat.NewVecDense(3, nil)
		diff13.SubVec(p1, p3)
		norm13 := mat.Norm(diff13, 2)

		out := mat.NewDense(5, 9, nil)
		out.Set(0, 0, 1)
		out.Set(0, 3, -1)
		out.Set(1, 1, 1)
		out.Set(1, 4, -1)
		out.Set(2, 2, 1)
		out.Set(2, 5, -1)
		for i := 0; i < 3; i++ {
			d := diff13.AtVec(i) / norm13
			out.Set(3, i, d)
			out.Set(3, 6+i, -d)
			out.Set(4, i, p3.AtVec(i)-2*p1.AtVec(i))
			out.Set(4, 6+i, p1.AtVec(i))
		}
		return out
	}
	return NewConstraint(9, 5, f, j)
}

// BallMeasure returns the Lebesgue measure of a k-dimensional ball of the
// given radius.
func BallMeasure(k int, radius float64) float64 {
	kf := float64(k)
	return math.Pow(math.Pi, kf/2) / math.Gamma(kf/2+1) * math.Pow(radius, kf)
}
