package bitstar

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	// The number of states sampled per batch before the edge queue is
	// reprocessed.
	defaultBatchSize = 100

	// The number of nearest neighbors to consider when connecting a new
	// sample to the tree.
	defaultNeighborhoodSize = 10

	// How close, in ambient distance, a vertex must get to the goal state to
	// count as an exact solution.
	defaultGoalTolerance = 0.05
)

// PlannerOptions creates a struct controlling the running of a single
// invocation of the planner. All values are pre-set to reasonable defaults,
// but can be tweaked if needed.
type PlannerOptions struct {
	// The number of states sampled per batch.
	BatchSize int `json:"batch_size"`

	// The number of nearest neighbors to consider when adding a new sample to
	// the tree.
	NeighborhoodSize int `json:"neighborhood_size"`

	// Distance from the goal state within which the goal counts as reached.
	GoalTolerance float64 `json:"goal_tolerance"`
}

// DefaultPlannerOptions returns the default planner configuration.
func DefaultPlannerOptions() *PlannerOptions {
	return &PlannerOptions{
		BatchSize:        defaultBatchSize,
		NeighborhoodSize: defaultNeighborhoodSize,
		GoalTolerance:    defaultGoalTolerance,
	}
}

// NewPlannerOptions returns the defaults overlaid with any matching keys in
// extra.
func NewPlannerOptions(extra map[string]interface{}) (*PlannerOptions, error) {
	opts := DefaultPlannerOptions()
	jsonString, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(jsonString, opts); err != nil {
		return nil, err
	}
	return opts, opts.validate()
}

func (o *PlannerOptions) validate() error {
	if o.BatchSize < 1 {
		return errors.Errorf("batch size must be at least 1, got %d", o.BatchSize)
	}
	if o.NeighborhoodSize < 1 {
		return errors.Errorf("neighborhood size must be at least 1, got %d", o.NeighborhoodSize)
	}
	if o.GoalTolerance <= 0 {
		return errors.Errorf("goal tolerance must be positive, got %g", o.GoalTolerance)
	}
	return nil
}
