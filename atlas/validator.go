package atlas

import (
	"github.com/pkg/errors"

	"github.com/atlasplan/atlasplan/base"
)

// MotionValidator checks motions by traversing the manifold between states.
// It satisfies base.MotionValidator.
type MotionValidator struct {
	si    *base.SpaceInformation
	space *Space
}

// NewMotionValidator builds a motion validator over si, which must wrap an
// atlas space.
func NewMotionValidator(si *base.SpaceInformation) (*MotionValidator, error) {
	space, ok := si.Space().(*Space)
	if !ok {
		return nil, errors.Errorf("motion validator requires an atlas space, got %T", si.Space())
	}
	return &MotionValidator{si: si, space: space}, nil
}

// CheckMotion reports whether the manifold can be traversed from a to b
// without collision.
func (mv *MotionValidator) CheckMotion(a, b base.State) bool {
	return mv.space.FollowManifold(mustState(a), mustState(b), false, nil)
}

// CheckMotionLastValid is like CheckMotion but also writes the last valid
// state into last and returns its interpolation parameter. Collisions, chart
// validity violations, and projection failures all report the fraction of
// the straight-line distance travelled, clamped to [0, 1]. Only a stop on
// the lambda budget (ReasonTooFar) counts as non-geometric: there the
// parameter is reported as 1 and last holds the final state visited, as
// though b were the last state. The traversal has no separate stop for
// leaving the ball of radius d(a, b).
func (mv *MotionValidator) CheckMotionLastValid(a, b, last base.State) (bool, float64) {
	var list []*State
	defer func() {
		for _, st := range list {
			mv.space.FreeState(st)
		}
	}()

	result := mv.space.TraverseManifold(mustState(a), mustState(b), false, &list)
	if result.Reason == ReasonReached {
		return true, 1
	}

	if len(list) > 0 {
		mv.space.CopyState(mustState(last), list[len(list)-1])
	}
	if result.Reason == ReasonTooFar {
		return false, 1
	}
	t := 0.0
	if result.Straight > 0 {
		t = result.Travelled / result.Straight
	}
	if t > 1 {
		t = 1
	}
	return false, t
}
