package multirobot

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/atlas"
	"github.com/atlasplan/atlasplan/base"
	"github.com/atlasplan/atlasplan/bitstar"
	"github.com/atlasplan/atlasplan/manifold"
)

// sphereChecker treats every state as statically valid and flags two robots
// as colliding when closer than the clearance.
type sphereChecker struct {
	clearance float64
}

func (sc *sphereChecker) IsValid(base.State) bool {
	return true
}

func (sc *sphereChecker) AreStatesValid(s base.State, other base.PairedState) bool {
	a := s.(*atlas.State).Vector()
	b := other.State.(*atlas.State).Vector()
	diff := mat.NewVecDense(a.Len(), nil)
	diff.SubVec(a, b)
	return mat.Norm(diff, 2) > sc.clearance
}

func newSphereRobot(t *testing.T, name string, seed int64) (*base.SpaceInformation, *base.TimedChecker, *atlas.Space) {
	t.Helper()
	sphere, err := manifold.NewSphereConstraint(3)
	test.That(t, err, test.ShouldBeNil)
	//nolint:gosec
	space, err := atlas.NewWithSeed(sphere, nil, rand.New(rand.NewSource(seed)), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	si := base.NewSpaceInformation(name, space)
	test.That(t, space.SetSpaceInformation(si), test.ShouldBeNil)
	checker := base.NewTimedChecker(&sphereChecker{clearance: 0.05}, 10)
	si.SetStateValidityChecker(checker)
	mv, err := atlas.NewMotionValidator(si)
	test.That(t, err, test.ShouldBeNil)
	si.SetMotionValidator(mv)
	return si, checker, space
}

func addRobotProblem(t *testing.T, space *atlas.Space, si *base.SpaceInformation, start, goal []float64) *base.ProblemDefinition {
	t.Helper()
	startState, err := space.NewState(mat.NewVecDense(3, start))
	test.That(t, err, test.ShouldBeNil)
	goalState, err := space.NewState(mat.NewVecDense(3, goal))
	test.That(t, err, test.ShouldBeNil)

	pdef := base.NewProblemDefinition(si)
	pdef.SetStartAndGoalStates(startState, goalState)
	space.FreeState(startState)
	space.FreeState(goalState)
	return pdef
}

func bitstarAllocator(t *testing.T) PlannerAllocator {
	t.Helper()
	return func(si *base.SpaceInformation, pdef *base.ProblemDefinition) (base.Planner, error) {
		planner, err := bitstar.NewPlanner(si, bitstar.NewPathLengthCostHelper(),
			bitstar.NewIDGenerator(), golog.NewTestLogger(t))
		if err != nil {
			return nil, err
		}
		planner.SetProblemDefinition(pdef)
		return planner, nil
	}
}

func TestPrioritizedPlanningTwoRobots(t *testing.T) {
	siA, checkerA, spaceA := newSphereRobot(t, "robot-a", 11)
	siB, checkerB, spaceB := newSphereRobot(t, "robot-b", 12)

	msi := NewSpaceInformation()
	test.That(t, msi.AddIndividual(siA, checkerA), test.ShouldBeNil)
	test.That(t, msi.AddIndividual(siB, checkerB), test.ShouldBeNil)
	msi.Lock()
	test.That(t, msi.AddIndividual(siA, checkerA), test.ShouldNotBeNil)
	test.That(t, msi.IndividualCount(), test.ShouldEqual, 2)

	pdef := NewProblemDefinition(msi)
	test.That(t, pdef.AddIndividual(addRobotProblem(t, spaceA, siA, []float64{0, 0, 1}, []float64{0, 1, 0})), test.ShouldBeNil)
	test.That(t, pdef.AddIndividual(addRobotProblem(t, spaceB, siB, []float64{1, 0, 0}, []float64{0, 0, 1})), test.ShouldBeNil)
	pdef.Lock()

	pp, err := NewPrioritizedPlanner(msi, bitstarAllocator(t), 1.0, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	pp.SetProblemDefinition(pdef)

	status, err := pp.Solve(context.Background(), time.Minute)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status, test.ShouldEqual, base.StatusExact)

	plan, err := pdef.BestPlan()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plan.Trajectories, test.ShouldHaveLength, 2)
	test.That(t, plan.Approximate, test.ShouldBeFalse)

	// Robot A's trajectory was registered with robot B as dynamic obstacles:
	// standing exactly where A starts at time zero is invalid for B.
	atAStart, err := spaceB.NewState(mat.NewVecDense(3, []float64{0, 0, 1}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, checkerB.IsValidAtTime(atAStart, 0), test.ShouldBeFalse)

	// Waypoint timestamps increase monotonically from zero.
	for _, traj := range plan.Trajectories {
		test.That(t, traj.Times[0], test.ShouldEqual, 0.0)
		for i := 1; i < len(traj.Times); i++ {
			test.That(t, traj.Times[i], test.ShouldBeGreaterThan, traj.Times[i-1])
		}
	}
}

func TestPrioritizedPlannerMismatchedProblem(t *testing.T) {
	siA, checkerA, _ := newSphereRobot(t, "robot-a", 31)

	msi := NewSpaceInformation()
	test.That(t, msi.AddIndividual(siA, checkerA), test.ShouldBeNil)
	msi.Lock()

	pp, err := NewPrioritizedPlanner(msi, bitstarAllocator(t), 1.0, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	pp.SetProblemDefinition(NewProblemDefinition(msi))

	_, err = pp.Solve(context.Background(), time.Second)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewPrioritizedPlanner(msi, bitstarAllocator(t), 0, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
