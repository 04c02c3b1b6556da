package multirobot

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/atlasplan/atlasplan/base"
)

// PlannerAllocator builds a single-robot planner for one individual's space
// information, already wired to the given problem definition.
type PlannerAllocator func(si *base.SpaceInformation, pdef *base.ProblemDefinition) (base.Planner, error)

var _ base.Planner = (*PrioritizedPlanner)(nil)

// PrioritizedPlanner plans one robot at a time in registration order. After
// each robot is solved, its trajectory is registered with every
// lower-priority robot as time-indexed dynamic obstacles, so later robots
// treat earlier ones as moving obstacles.
type PrioritizedPlanner struct {
	msi      *SpaceInformation
	pdef     *ProblemDefinition
	allocate PlannerAllocator
	logger   golog.Logger
	clk      clock.Clock

	// speed converts path length to time when stamping trajectories.
	speed float64
}

// NewPrioritizedPlanner builds a prioritized planner. speed is the assumed
// uniform robot speed used to timestamp solution waypoints.
func NewPrioritizedPlanner(
	msi *SpaceInformation,
	allocate PlannerAllocator,
	speed float64,
	logger golog.Logger,
) (*PrioritizedPlanner, error) {
	if speed <= 0 {
		return nil, errors.Errorf("robot speed must be positive, got %g", speed)
	}
	return &PrioritizedPlanner{
		msi:      msi,
		allocate: allocate,
		logger:   logger,
		clk:      clock.New(),
		speed:    speed,
	}, nil
}

// SetProblemDefinition installs the fleet problem to solve.
func (pp *PrioritizedPlanner) SetProblemDefinition(pdef *ProblemDefinition) {
	pp.pdef = pdef
}

// SetClock replaces the wall clock, for tests.
func (pp *PrioritizedPlanner) SetClock(clk clock.Clock) {
	pp.clk = clk
}

// Solve plans every robot in priority order within the shared time budget.
// The fleet status is the weakest individual status: exact only if every
// robot solved exactly, approximate if any robot only approached its goal,
// and otherwise the status (timeout or failure) of the first robot that found
// nothing, at which point planning stops.
func (pp *PrioritizedPlanner) Solve(ctx context.Context, budget time.Duration) (base.PlannerStatus, error) {
	if pp.pdef == nil {
		return base.StatusFailure, errors.New("prioritized planner has no problem definition")
	}
	if pp.pdef.IndividualCount() != pp.msi.IndividualCount() {
		return base.StatusFailure, errors.Errorf("problem has %d individuals but space information has %d",
			pp.pdef.IndividualCount(), pp.msi.IndividualCount())
	}

	deadline := pp.clk.Now().Add(budget)
	fleetStatus := base.StatusExact
	plan := &Plan{}
	var errAll error

	for i := 0; i < pp.pdef.IndividualCount(); i++ {
		remaining := deadline.Sub(pp.clk.Now())
		if remaining <= 0 {
			return base.StatusTimeout, errAll
		}

		si, err := pp.msi.Individual(i)
		if err != nil {
			return base.StatusFailure, err
		}
		individual, err := pp.pdef.Individual(i)
		if err != nil {
			return base.StatusFailure, err
		}
		planner, err := pp.allocate(si, individual)
		if err != nil {
			return base.StatusFailure, errors.Wrapf(err, "allocating planner for robot %d", i)
		}

		status, err := planner.Solve(ctx, remaining)
		multierr.AppendInto(&errAll, err)
		if pp.logger != nil {
			pp.logger.Debugf("robot %d (%s): %s", i, si.Name(), status)
		}
		switch status {
		case base.StatusExact:
		case base.StatusApproximate:
			fleetStatus = base.StatusApproximate
		default:
			return status, errAll
		}

		sol, err := individual.BestSolution()
		if err != nil {
			return base.StatusFailure, multierr.Append(errAll, err)
		}
		traj := pp.timestamp(si, sol)
		plan.Trajectories = append(plan.Trajectories, traj)
		if sol.Approximate {
			plan.Approximate = true
		}

		// Everything planned so far becomes a moving obstacle for the robots
		// still waiting their turn.
		for later := i + 1; later < pp.msi.IndividualCount(); later++ {
			for w, st := range traj.States {
				if err := pp.msi.AddDynamicObstacleForIndividual(later, i, st, traj.Times[w]); err != nil {
					return base.StatusFailure, multierr.Append(errAll, err)
				}
			}
		}
	}

	pp.pdef.AddPlan(plan)
	return fleetStatus, errAll
}

// timestamp stamps each waypoint of sol with the time it is reached at the
// planner's uniform speed.
func (pp *PrioritizedPlanner) timestamp(si *base.SpaceInformation, sol *base.Solution) Trajectory {
	space := si.Space()
	traj := Trajectory{
		States: sol.Path,
		Times:  make([]float64, len(sol.Path)),
	}
	elapsed := 0.0
	for i := range sol.Path {
		if i > 0 {
			elapsed += space.Distance(sol.Path[i-1], sol.Path[i]) / pp.speed
		}
		traj.Times[i] = elapsed
	}
	return traj
}
