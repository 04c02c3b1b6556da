package base

import "math"

// StateValidityChecker answers whether a single state is valid.
type StateValidityChecker interface {
	IsValid(s State) bool
}

// StateValidityCheckerFn adapts a plain function to a StateValidityChecker.
type StateValidityCheckerFn func(s State) bool

// IsValid calls the wrapped function.
func (f StateValidityCheckerFn) IsValid(s State) bool {
	return f(s)
}

// PairedState is another robot's state together with the space information
// that owns it, so heterogeneous robots can be checked against each other.
type PairedState struct {
	SI    *SpaceInformation
	State State
}

// PairwiseValidityChecker additionally answers whether a state is valid with
// respect to a second robot frozen at some state of its own.
type PairwiseValidityChecker interface {
	StateValidityChecker

	// AreStatesValid reports whether the robot checked by this checker, at s,
	// is collision free with respect to the other robot at other.State.
	AreStatesValid(s State, other PairedState) bool
}

var _ PairwiseValidityChecker = (*TimedChecker)(nil)

// TimedChecker decorates a pairwise checker with a time-indexed set of
// dynamic obstacles: states of other robots keyed by discretized time. The
// time key for a query at time t is round(t * scalingFactor); that rounding
// is a contract shared with whoever populates the obstacle map.
type TimedChecker struct {
	inner         PairwiseValidityChecker
	scalingFactor float64
	obstacles     map[int][]PairedState
}

// NewTimedChecker wraps inner with an empty dynamic obstacle map.
func NewTimedChecker(inner PairwiseValidityChecker, scalingFactor float64) *TimedChecker {
	return &TimedChecker{
		inner:         inner,
		scalingFactor: scalingFactor,
		obstacles:     map[int][]PairedState{},
	}
}

// IsValid checks only the static environment.
func (tc *TimedChecker) IsValid(s State) bool {
	return tc.inner.IsValid(s)
}

// AreStatesValid defers to the wrapped checker.
func (tc *TimedChecker) AreStatesValid(s State, other PairedState) bool {
	return tc.inner.AreStatesValid(s, other)
}

// IsValidAtTime checks the static environment and then every dynamic obstacle
// recorded at the discretized time key for t. A state is invalid at time t
// iff it is statically invalid or collides with some obstacle at that key.
func (tc *TimedChecker) IsValidAtTime(s State, t float64) bool {
	if len(tc.obstacles) == 0 {
		return tc.inner.IsValid(s)
	}
	if !tc.inner.IsValid(s) {
		return false
	}
	key := int(math.Round(t * tc.scalingFactor))
	for _, other := range tc.obstacles[key] {
		if !tc.inner.AreStatesValid(s, other) {
			return false
		}
	}
	return true
}

// AddObstacle records that the robot owned by si occupies state at time t.
// The checker takes ownership of state and frees it through si on
// ClearObstacles.
func (tc *TimedChecker) AddObstacle(t float64, si *SpaceInformation, state State) {
	key := int(math.Round(t * tc.scalingFactor))
	tc.obstacles[key] = append(tc.obstacles[key], PairedState{SI: si, State: state})
}

// ClearObstacles removes all dynamic obstacles, freeing their states through
// the space information each was recorded with.
func (tc *TimedChecker) ClearObstacles() {
	for _, entries := range tc.obstacles {
		for _, other := range entries {
			other.SI.Space().FreeState(other.State)
		}
	}
	tc.obstacles = map[int][]PairedState{}
}
