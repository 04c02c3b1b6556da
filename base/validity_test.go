package base_test

import (
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/atlas"
	"github.com/atlasplan/atlasplan/base"
	"github.com/atlasplan/atlasplan/manifold"
)

// proximityChecker flags collision when two robots are within clearance of
// each other in ambient space.
type proximityChecker struct {
	clearance float64
}

func (pc *proximityChecker) IsValid(base.State) bool {
	return true
}

func (pc *proximityChecker) AreStatesValid(s base.State, other base.PairedState) bool {
	a := s.(*atlas.State).Vector()
	b := other.State.(*atlas.State).Vector()
	diff := mat.NewVecDense(a.Len(), nil)
	diff.SubVec(a, b)
	return mat.Norm(diff, 2) > pc.clearance
}

func newSphereSI(t *testing.T, name string) (*base.SpaceInformation, *atlas.Space) {
	t.Helper()
	sphere, err := manifold.NewSphereConstraint(3)
	test.That(t, err, test.ShouldBeNil)
	//nolint:gosec
	space, err := atlas.NewWithSeed(sphere, nil, rand.New(rand.NewSource(5)), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	si := base.NewSpaceInformation(name, space)
	test.That(t, space.SetSpaceInformation(si), test.ShouldBeNil)
	return si, space
}

func newSphereState(t *testing.T, space *atlas.Space, x, y, z float64) *atlas.State {
	t.Helper()
	st, err := space.NewState(mat.NewVecDense(3, []float64{x, y, z}))
	test.That(t, err, test.ShouldBeNil)
	return st
}

func TestTimedCheckerKeying(t *testing.T) {
	siA, spaceA := newSphereSI(t, "robot-a")
	siB, spaceB := newSphereSI(t, "robot-b")

	checker := base.NewTimedChecker(&proximityChecker{clearance: 0.1}, 10)
	siA.SetStateValidityChecker(checker)

	mine := newSphereState(t, spaceA, 0, 0, 1)

	// The other robot sits right on top of us, recorded at t = 0.41, which
	// discretizes to key round(0.41 * 10) = 4.
	obstacle := newSphereState(t, spaceB, 0, 0, 1)
	checker.AddObstacle(0.41, siB, obstacle)

	// t = 0.37 keys to 4 as well, so the obstacle is found and collides.
	test.That(t, checker.IsValidAtTime(mine, 0.37), test.ShouldBeFalse)
	// t = 0.26 keys to 3: no obstacles recorded there.
	test.That(t, checker.IsValidAtTime(mine, 0.26), test.ShouldBeTrue)
	// The static check ignores dynamic obstacles entirely.
	test.That(t, checker.IsValid(mine), test.ShouldBeTrue)

	// A distant robot at the same key does not collide.
	far := newSphereState(t, spaceB, 0, 1, 0)
	checker.AddObstacle(0.62, siB, far)
	test.That(t, checker.IsValidAtTime(mine, 0.58), test.ShouldBeTrue)
}

func TestTimedCheckerEmptyMapSkipsTimeLogic(t *testing.T) {
	siA, spaceA := newSphereSI(t, "robot-a")
	checker := base.NewTimedChecker(&proximityChecker{clearance: 0.1}, 10)
	siA.SetStateValidityChecker(checker)

	mine := newSphereState(t, spaceA, 0, 0, 1)
	test.That(t, checker.IsValidAtTime(mine, 123.456), test.ShouldBeTrue)
}

func TestTimedCheckerClearObstacles(t *testing.T) {
	_, spaceA := newSphereSI(t, "robot-a")
	siB, spaceB := newSphereSI(t, "robot-b")

	checker := base.NewTimedChecker(&proximityChecker{clearance: 0.1}, 10)
	mine := newSphereState(t, spaceA, 0, 0, 1)

	obstacle := newSphereState(t, spaceB, 0, 0, 1)
	checker.AddObstacle(0.4, siB, obstacle)
	test.That(t, checker.IsValidAtTime(mine, 0.4), test.ShouldBeFalse)

	// Clearing frees the obstacle states through their owning space; a second
	// free of the same state is the canonical double-free bug.
	checker.ClearObstacles()
	test.That(t, checker.IsValidAtTime(mine, 0.4), test.ShouldBeTrue)
	test.That(t, func() { spaceB.FreeState(obstacle) }, test.ShouldPanic)
}
