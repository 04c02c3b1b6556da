// Package base contains the narrow state-space plumbing consumed by the
// sampling-based planners in this repository: opaque states, the state space
// and space information contracts, validity checking (including time-indexed
// dynamic obstacles), and planner status/problem bookkeeping.
package base

import (
	"context"
	"time"
)

// State is an opaque element of a StateSpace. Concrete spaces define their own
// state representations and hand them out through AllocState.
type State interface{}

// StateSpace is the contract a concrete space exposes to planners. States must
// only be allocated and freed through the owning space.
type StateSpace interface {
	// Dimension returns the ambient dimension of the space.
	Dimension() int

	AllocState() State
	FreeState(State)
	CopyState(dst, src State)

	// Distance returns the ambient distance between two states.
	Distance(a, b State) float64

	// EqualStates reports whether two states are indistinguishable.
	EqualStates(a, b State) bool

	// Interpolate writes the state at fraction t along the path from one
	// state toward another into out. Implementations need not be symmetric;
	// see HasSymmetricInterpolate.
	Interpolate(from, to State, t float64, out State)

	// HasSymmetricInterpolate reports whether interpolating from a to b
	// visits the same states as b to a.
	HasSymmetricInterpolate() bool

	// AllocDefaultStateSampler returns a sampler appropriate for this space.
	AllocDefaultStateSampler() StateSampler
}

// StateSampler draws states from a space. Samplers return an error when the
// space cannot produce a sample within its internal retry budget; callers are
// expected to surface that as "no solution", never to retry forever.
type StateSampler interface {
	SampleUniform(out State) error
	SampleUniformNear(out, near State, distance float64) error
}

// MotionValidator checks local motions between pairs of states.
type MotionValidator interface {
	// CheckMotion reports whether the motion from a to b is collision free.
	CheckMotion(a, b State) bool

	// CheckMotionLastValid is like CheckMotion but additionally writes the
	// last valid state along the motion into last and returns the
	// interpolation parameter of that state in [0, 1]. When the motion fails
	// for a non-geometric reason (the traversal wandered too far rather than
	// colliding), the parameter is reported as 1 and last holds the final
	// state visited.
	CheckMotionLastValid(a, b, last State) (bool, float64)
}

// Planner is the minimal planning contract shared by the single-robot and
// multi-robot planners in this repository.
type Planner interface {
	// Solve plans until a solution is found or budget elapses. The returned
	// status is never an error; genuine failures of the underlying machinery
	// are returned separately.
	Solve(ctx context.Context, budget time.Duration) (PlannerStatus, error)
}
