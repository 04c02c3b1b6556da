package atlas

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/base"
)

func equatorPoint() *mat.VecDense {
	return mat.NewVecDense(3, []float64{0, 1, 0})
}

func mustNewState(t *testing.T, space *Space, x *mat.VecDense) *State {
	t.Helper()
	st, err := space.NewState(x)
	test.That(t, err, test.ShouldBeNil)
	return st
}

func TestFollowManifoldQuarterGreatCircle(t *testing.T) {
	space := newSphereSpace(t, nil)
	from := mustNewState(t, space, northPole())
	to := mustNewState(t, space, equatorPoint())

	var trace []*State
	result := space.TraverseManifold(from, to, true, &trace)
	test.That(t, result.Reason, test.ShouldEqual, ReasonReached)

	// Every intermediate stays on the sphere and the walk is essentially the
	// quarter great circle.
	for _, st := range trace {
		test.That(t, math.Abs(mat.Norm(st.Vector(), 2)-1), test.ShouldBeLessThan, 1e-6)
	}
	test.That(t, result.Travelled, test.ShouldBeLessThan, math.Pi/2+2*space.Delta())

	// The final state visited lands within delta of the target.
	last := trace[len(trace)-1]
	test.That(t, space.ambientDistance(last.Vector(), to.Vector()), test.ShouldBeLessThan, 2*space.Delta())

	for _, st := range trace {
		space.FreeState(st)
	}
}

func TestFollowManifoldSelf(t *testing.T) {
	space := newSphereSpace(t, nil)
	from := mustNewState(t, space, northPole())

	var trace []*State
	test.That(t, space.FollowManifold(from, from, true, &trace), test.ShouldBeTrue)
	test.That(t, trace, test.ShouldHaveLength, 1)
	test.That(t, space.EqualStates(trace[0], from), test.ShouldBeTrue)
	space.FreeState(trace[0])
}

func TestFollowManifoldTravelBudget(t *testing.T) {
	space := newSphereSpace(t, nil)
	from := mustNewState(t, space, northPole())
	to := mustNewState(t, space, equatorPoint())

	result := space.TraverseManifold(from, to, true, nil)
	test.That(t, result.Travelled, test.ShouldBeLessThanOrEqualTo,
		space.Lambda()*result.Straight+2*space.Delta())
}

func TestFollowManifoldTooFar(t *testing.T) {
	// Nearly antipodal endpoints: the geodesic is much longer than the
	// straight-line distance, so a tight lambda budget gives up on the way.
	opts := DefaultOptions()
	opts.Lambda = 1.01
	space := newSphereSpace(t, opts)
	target, err := space.Projector().Project(mat.NewVecDense(3, []float64{0, 0.1, -1}))
	test.That(t, err, test.ShouldBeNil)
	from := mustNewState(t, space, northPole())
	to := mustNewState(t, space, target)

	result := space.TraverseManifold(from, to, true, nil)
	test.That(t, result.Reason, test.ShouldEqual, ReasonTooFar)
}

func TestFollowManifoldCollision(t *testing.T) {
	space := newSphereSpace(t, nil)
	si := base.NewSpaceInformation("robot", space)
	blocked := 0
	si.SetStateValidityChecker(base.StateValidityCheckerFn(func(s base.State) bool {
		st := s.(*State)
		// Block the band below z = 0.9.
		if st.Vector().AtVec(2) < 0.9 {
			blocked++
			return false
		}
		return true
	}))
	test.That(t, space.SetSpaceInformation(si), test.ShouldBeNil)

	from := mustNewState(t, space, northPole())
	to := mustNewState(t, space, equatorPoint())

	result := space.TraverseManifold(from, to, false, nil)
	test.That(t, result.Reason, test.ShouldEqual, ReasonCollision)
	test.That(t, blocked, test.ShouldEqual, 1)
	// Collision stops do not count the invalid step.
	test.That(t, result.Travelled, test.ShouldBeLessThan, result.Straight)
}

func TestFollowManifoldRequiresValidityChecking(t *testing.T) {
	space := newSphereSpace(t, nil)
	from := mustNewState(t, space, northPole())
	to := mustNewState(t, space, equatorPoint())

	// Motion checking without space information is a caller bug.
	test.That(t, func() { space.TraverseManifold(from, to, false, nil) }, test.ShouldPanic)
}

func TestInterpolateEndpoints(t *testing.T) {
	space := newSphereSpace(t, nil)
	from := mustNewState(t, space, northPole())
	to := mustNewState(t, space, equatorPoint())
	out := space.AllocState()

	space.Interpolate(from, to, 0, out)
	test.That(t, space.EqualStates(out, from), test.ShouldBeTrue)

	space.Interpolate(from, to, 1, out)
	test.That(t, space.Distance(out, to), test.ShouldBeLessThan, 2*space.Delta())

	space.Interpolate(from, to, 0.5, out)
	st := out.(*State)
	test.That(t, math.Abs(mat.Norm(st.Vector(), 2)-1), test.ShouldBeLessThan, 1e-6)
	// Halfway along the quarter circle both endpoints are about pi/4 away.
	test.That(t, math.Abs(space.Distance(out, from)-space.Distance(out, to)), test.ShouldBeLessThan, 0.1)

	test.That(t, space.HasSymmetricInterpolate(), test.ShouldBeFalse)
}

func TestFastInterpolate(t *testing.T) {
	space := newSphereSpace(t, nil)
	from := mustNewState(t, space, northPole())
	to := mustNewState(t, space, equatorPoint())

	var trace []*State
	test.That(t, space.FollowManifold(from, to, true, &trace), test.ShouldBeTrue)
	test.That(t, len(trace), test.ShouldBeGreaterThan, 2)

	out := space.AllocState().(*State)
	space.FastInterpolate(trace, 0, out)
	test.That(t, space.EqualStates(out, trace[0]), test.ShouldBeTrue)
	space.FastInterpolate(trace, 1, out)
	test.That(t, space.EqualStates(out, trace[len(trace)-1]), test.ShouldBeTrue)

	test.That(t, func() { space.FastInterpolate(nil, 0.5, out) }, test.ShouldPanic)

	for _, st := range trace {
		space.FreeState(st)
	}
}

func TestTraversalCreatesCharts(t *testing.T) {
	space := newSphereSpace(t, nil)
	from := mustNewState(t, space, northPole())
	to := mustNewState(t, space, equatorPoint())
	before := space.ChartCount()

	test.That(t, space.FollowManifold(from, to, true, nil), test.ShouldBeTrue)
	// Walking a quarter circle far exceeds one chart's radius, so the atlas
	// must have extended coverage along the way.
	test.That(t, space.ChartCount(), test.ShouldBeGreaterThan, before)
}
