// Package multirobot layers a prioritized multi-robot planning shim over the
// single-robot core: robots are planned in priority order and each solved
// trajectory is fed to the remaining robots as time-indexed dynamic
// obstacles.
package multirobot

import (
	"github.com/pkg/errors"

	"github.com/atlasplan/atlasplan/base"
)

// SpaceInformation aggregates the per-robot space informations of a
// multi-robot problem. Each individual carries a TimedChecker so other
// robots' trajectories can be registered against it as dynamic obstacles.
type SpaceInformation struct {
	individuals []*base.SpaceInformation
	checkers    []*base.TimedChecker
	locked      bool
}

// NewSpaceInformation returns an empty multi-robot space information.
func NewSpaceInformation() *SpaceInformation {
	return &SpaceInformation{}
}

// AddIndividual registers one robot's space information and its timed
// validity checker. The checker must be the one installed on si.
func (msi *SpaceInformation) AddIndividual(si *base.SpaceInformation, checker *base.TimedChecker) error {
	if msi.locked {
		return errors.New("multi-robot space information is locked")
	}
	msi.individuals = append(msi.individuals, si)
	msi.checkers = append(msi.checkers, checker)
	return nil
}

// Lock freezes the individual set; planning may begin.
func (msi *SpaceInformation) Lock() {
	msi.locked = true
}

// IndividualCount returns the number of registered robots.
func (msi *SpaceInformation) IndividualCount() int {
	return len(msi.individuals)
}

// Individual returns robot index's space information.
func (msi *SpaceInformation) Individual(index int) (*base.SpaceInformation, error) {
	if index >= len(msi.individuals) {
		return nil, errors.Errorf("individual index %d does not exist", index)
	}
	return msi.individuals[index], nil
}

// Checker returns robot index's timed validity checker.
func (msi *SpaceInformation) Checker(index int) (*base.TimedChecker, error) {
	if index >= len(msi.checkers) {
		return nil, errors.Errorf("individual index %d does not exist", index)
	}
	return msi.checkers[index], nil
}

// AddDynamicObstacleForIndividual records that robot other occupies state at
// the given time, as an obstacle for robot individual. The obstacle state is
// copied; the copy is owned by individual's checker.
func (msi *SpaceInformation) AddDynamicObstacleForIndividual(individual, other int, state base.State, t float64) error {
	checker, err := msi.Checker(individual)
	if err != nil {
		return err
	}
	otherSI, err := msi.Individual(other)
	if err != nil {
		return err
	}
	obstacle := otherSI.Space().AllocState()
	otherSI.Space().CopyState(obstacle, state)
	checker.AddObstacle(t, otherSI, obstacle)
	return nil
}

// ClearDynamicObstacles drops every registered dynamic obstacle.
func (msi *SpaceInformation) ClearDynamicObstacles() {
	for _, checker := range msi.checkers {
		checker.ClearObstacles()
	}
}
