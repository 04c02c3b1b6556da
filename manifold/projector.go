package manifold

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrProjectionFailed is returned when Newton iteration fails to bring a
// point onto the manifold within the iteration budget.
var ErrProjectionFailed = errors.New("projection onto manifold did not converge")

// Projector maps ambient points onto the constraint surface by Newton
// iteration through the Moore-Penrose pseudoinverse of the Jacobian. It holds
// no mutable state; Project may be called freely from const-logical contexts.
type Projector struct {
	constraint    *Constraint
	tolerance     float64
	maxIterations int
}

// NewProjector builds a projector for the given constraint. Iteration stops
// successfully once the constraint violation norm drops to tolerance, and
// fails after maxIterations.
func NewProjector(constraint *Constraint, tolerance float64, maxIterations int) (*Projector, error) {
	if tolerance <= 0 {
		return nil, errors.Errorf("projection tolerance must be positive, got %g", tolerance)
	}
	if maxIterations < 1 {
		return nil, errors.Errorf("projection iteration cap must be at least 1, got %d", maxIterations)
	}
	return &Projector{constraint: constraint, tolerance: tolerance, maxIterations: maxIterations}, nil
}

// Tolerance returns the convergence tolerance.
func (p *Projector) Tolerance() float64 {
	return p.tolerance
}

// Project returns the point on the manifold nearest to guess, or
// ErrProjectionFailed / ErrRankDeficient when Newton iteration cannot get
// there. The input is not modified.
func (p *Projector) Project(guess *mat.VecDense) (*mat.VecDense, error) {
	x := mat.VecDenseCopyOf(guess)
	for i := 0; i < p.maxIterations; i++ {
		f := p.constraint.F(x)
		if mat.Norm(f, 2) <= p.tolerance {
			return x, nil
		}

		step, err := pseudoinverseApply(p.constraint.J(x), f)
		if err != nil {
			return nil, err
		}
		x.SubVec(x, step)
	}
	// One last check in case the final step landed on the surface.
	if mat.Norm(p.constraint.F(x), 2) <= p.tolerance {
		return x, nil
	}
	return nil, ErrProjectionFailed
}

// pseudoinverseApply computes J⁺·f via the thin SVD of J, refusing to invert
// across a rank deficiency.
func pseudoinverseApply(jac *mat.Dense, f *mat.VecDense) (*mat.VecDense, error) {
	_, n := jac.Dims()

	var svd mat.SVD
	if !svd.Factorize(jac, mat.SVDThin) {
		return nil, errors.New("projection SVD failed to factorize jacobian")
	}
	values := svd.Values(nil)
	for _, sigma := range values {
		if sigma < defaultRankTolerance {
			return nil, ErrRankDeficient
		}
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// J⁺ f = V Σ⁻¹ Uᵀ f, applied right to left.
	uTf := mat.NewVecDense(len(values), nil)
	uTf.MulVec(u.T(), f)
	for i := range values {
		uTf.SetVec(i, uTf.AtVec(i)/values[i])
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(&v, uTf)
	return out, nil
}
