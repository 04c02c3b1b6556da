package multirobot

import (
	"github.com/pkg/errors"

	"github.com/atlasplan/atlasplan/base"
)

// ProblemDefinition holds one problem definition per robot, in priority
// order, and collects whole-fleet plans.
type ProblemDefinition struct {
	msi         *SpaceInformation
	individuals []*base.ProblemDefinition
	locked      bool
	plans       []*Plan
}

// Plan is one trajectory per robot, each a timestamped state sequence.
type Plan struct {
	Trajectories []Trajectory
	Approximate  bool
}

// Trajectory is a single robot's solution path with the time each waypoint
// is occupied.
type Trajectory struct {
	States []base.State
	Times  []float64
}

// NewProblemDefinition returns an empty problem over msi.
func NewProblemDefinition(msi *SpaceInformation) *ProblemDefinition {
	return &ProblemDefinition{msi: msi}
}

// SpaceInformation returns the multi-robot space information.
func (pdef *ProblemDefinition) SpaceInformation() *SpaceInformation {
	return pdef.msi
}

// AddIndividual registers one robot's problem definition.
func (pdef *ProblemDefinition) AddIndividual(individual *base.ProblemDefinition) error {
	if pdef.locked {
		return errors.New("multi-robot problem definition is locked")
	}
	pdef.individuals = append(pdef.individuals, individual)
	return nil
}

// Lock freezes the individual set.
func (pdef *ProblemDefinition) Lock() {
	pdef.locked = true
}

// IndividualCount returns the number of registered robot problems.
func (pdef *ProblemDefinition) IndividualCount() int {
	return len(pdef.individuals)
}

// Individual returns robot index's problem definition.
func (pdef *ProblemDefinition) Individual(index int) (*base.ProblemDefinition, error) {
	if index >= len(pdef.individuals) {
		return nil, errors.Errorf("individual index %d does not exist", index)
	}
	return pdef.individuals[index], nil
}

// AddPlan records a fleet plan.
func (pdef *ProblemDefinition) AddPlan(plan *Plan) {
	pdef.plans = append(pdef.plans, plan)
}

// BestPlan returns the best recorded fleet plan, preferring exact over
// approximate.
func (pdef *ProblemDefinition) BestPlan() (*Plan, error) {
	if len(pdef.plans) == 0 {
		return nil, errors.New("problem definition has no plans")
	}
	best := pdef.plans[0]
	for _, plan := range pdef.plans[1:] {
		if !plan.Approximate && best.Approximate {
			best = plan
		}
	}
	return best, nil
}
