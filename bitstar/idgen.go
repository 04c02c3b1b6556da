package bitstar

import "sync/atomic"

// VertexID uniquely identifies a vertex within one planner run.
type VertexID uint64

// IDGenerator yields a strictly increasing stream of vertex identifiers. It
// is an injected collaborator rather than process-wide state so tests can
// reset the stream deterministically. Safe for concurrent use, which only
// matters if vertices are ever created off the planning goroutine.
type IDGenerator struct {
	next atomic.Uint64
}

// NewIDGenerator returns a generator starting at zero.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NewID returns the next identifier.
func (g *IDGenerator) NewID() VertexID {
	return VertexID(g.next.Add(1) - 1)
}
