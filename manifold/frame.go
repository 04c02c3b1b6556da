package manifold

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrRankDeficient is returned when the constraint Jacobian loses rank, which
// happens at manifold singularities. Callers recover by retrying elsewhere.
var ErrRankDeficient = errors.New("constraint jacobian is rank deficient")

// defaultRankTolerance is the singular value threshold below which the
// Jacobian is considered rank deficient.
const defaultRankTolerance = 1e-12

// TangentFrame computes an orthonormal basis for the null space of the
// constraint Jacobian jac, one column per manifold dimension. The basis B
// satisfies Bᵀ·B = I and jac·B = 0 up to numerical precision. The full SVD is
// used rather than a QR decomposition so that rank collapse is detected
// deterministically.
func TangentFrame(jac *mat.Dense) (*mat.Dense, error) {
	m, n := jac.Dims()
	k := n - m

	var svd mat.SVD
	if !svd.Factorize(jac, mat.SVDFull) {
		return nil, errors.New("tangent frame SVD failed to factorize jacobian")
	}
	values := svd.Values(nil)
	for _, sigma := range values {
		if sigma < defaultRankTolerance {
			return nil, ErrRankDeficient
		}
	}

	var v mat.Dense
	svd.VTo(&v)

	// The right singular vectors beyond the first m span the null space.
	basis := mat.NewDense(n, k, nil)
	for col := 0; col < k; col++ {
		for row := 0; row < n; row++ {
			basis.Set(row, col, v.At(row, m+col))
		}
	}
	return basis, nil
}
