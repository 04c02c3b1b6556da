package base

import "github.com/pkg/errors"

// PlannerStatus is the outcome of a planning attempt.
type PlannerStatus int

const (
	// StatusFailure means no solution of any kind was found.
	StatusFailure PlannerStatus = iota
	// StatusTimeout means the time budget elapsed before any progress toward
	// the goal was made.
	StatusTimeout
	// StatusApproximate means the planner got closer to the goal but did not
	// reach it within tolerance.
	StatusApproximate
	// StatusExact means a path reaching the goal was found.
	StatusExact
)

func (s PlannerStatus) String() string {
	switch s {
	case StatusExact:
		return "exact solution"
	case StatusApproximate:
		return "approximate solution"
	case StatusTimeout:
		return "timeout"
	default:
		return "failure"
	}
}

// Solution is one path found by a planner, with enough metadata to rank
// competing solutions.
type Solution struct {
	// Path holds the waypoints, owned by the problem definition's space.
	Path []State
	// Approximate is set when the path does not reach the goal.
	Approximate bool
	// Difference is the remaining distance to the goal for approximate
	// solutions.
	Difference float64
	// Length is the total path length.
	Length float64
	// PlannerName records which planner produced this solution.
	PlannerName string
}

// Better reports whether s should be preferred over o: exact beats
// approximate, nearer approximations beat farther ones, and ties break on
// path length.
func (s *Solution) Better(o *Solution) bool {
	if !s.Approximate && o.Approximate {
		return true
	}
	if s.Approximate && !o.Approximate {
		return false
	}
	if s.Approximate && o.Approximate && s.Difference != o.Difference {
		return s.Difference < o.Difference
	}
	return s.Length < o.Length
}

// ProblemDefinition holds the start and goal of a single-robot query and
// collects the solutions planners find for it.
type ProblemDefinition struct {
	si        *SpaceInformation
	start     State
	goal      State
	solutions []*Solution
}

// NewProblemDefinition creates an empty problem over si.
func NewProblemDefinition(si *SpaceInformation) *ProblemDefinition {
	return &ProblemDefinition{si: si}
}

// SpaceInformation returns the space information the problem is defined over.
func (pdef *ProblemDefinition) SpaceInformation() *SpaceInformation {
	return pdef.si
}

// SetStartAndGoalStates copies start and goal into states owned by the
// problem definition.
func (pdef *ProblemDefinition) SetStartAndGoalStates(start, goal State) {
	space := pdef.si.Space()
	pdef.start = space.AllocState()
	space.CopyState(pdef.start, start)
	pdef.goal = space.AllocState()
	space.CopyState(pdef.goal, goal)
}

// Start returns the start state.
func (pdef *ProblemDefinition) Start() State {
	return pdef.start
}

// Goal returns the goal state.
func (pdef *ProblemDefinition) Goal() State {
	return pdef.goal
}

// AddSolution records a solution.
func (pdef *ProblemDefinition) AddSolution(sol *Solution) {
	pdef.solutions = append(pdef.solutions, sol)
}

// SolutionCount returns how many solutions have been recorded.
func (pdef *ProblemDefinition) SolutionCount() int {
	return len(pdef.solutions)
}

// BestSolution returns the highest-ranked recorded solution.
func (pdef *ProblemDefinition) BestSolution() (*Solution, error) {
	if len(pdef.solutions) == 0 {
		return nil, errors.New("problem definition has no solutions")
	}
	best := pdef.solutions[0]
	for _, sol := range pdef.solutions[1:] {
		if sol.Better(best) {
			best = sol
		}
	}
	return best, nil
}
