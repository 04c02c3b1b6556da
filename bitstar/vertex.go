package bitstar

import (
	"github.com/atlasplan/atlasplan/base"
)

// Vertex is a node of the BIT* search tree: an owned state, an optional
// parent, back-references to children, and an eagerly maintained cost-to-come
// and depth. The planner owns vertices by id; children lists are non-owning
// back-references that must never outlive the child.
//
// Exactly one of root / has-parent / disconnected holds at any time. For a
// connected vertex v with parent p, v.Cost() == combine(p.Cost(), v's edge
// cost) and v.Depth() == p.Depth() + 1 after any mutation touching p's chain.
type Vertex struct {
	id    VertexID
	si    *base.SpaceInformation
	costs CostHelper
	state base.State

	isRoot   bool
	parent   *Vertex
	children []*Vertex

	edgeCost Cost
	cost     Cost
	depth    int

	isNew                     bool
	hasBeenExpandedToSamples  bool
	hasBeenExpandedToVertices bool
	isPruned                  bool
	closed                    bool
}

// NewVertex allocates a vertex with a fresh state from si's space and an id
// from ids. A root vertex starts at the identity cost; all others start
// disconnected at the infinite cost.
func NewVertex(ids *IDGenerator, si *base.SpaceInformation, costs CostHelper, root bool) *Vertex {
	v := &Vertex{
		id:       ids.NewID(),
		si:       si,
		costs:    costs,
		state:    si.Space().AllocState(),
		isRoot:   root,
		edgeCost: costs.InfiniteCost(),
		cost:     costs.InfiniteCost(),
		isNew:    true,
	}
	if root {
		v.cost = costs.IdentityCost()
	}
	return v
}

// Close releases the vertex: its state is freed through the space and the
// vertex de-registers from its parent's children list. Further use of the
// vertex is a caller bug.
func (v *Vertex) Close() {
	if v.closed {
		panic(base.NewProgrammingError("vertex %d closed twice", v.id))
	}
	if v.parent != nil && !v.parent.closed {
		v.parent.dropChild(v.id)
	}
	v.si.Space().FreeState(v.state)
	v.closed = true
}

func (v *Vertex) assertUsable() {
	if v.closed {
		panic(base.NewProgrammingError("use of closed vertex %d", v.id))
	}
	if v.isPruned {
		panic(base.NewProgrammingError("use of pruned vertex %d", v.id))
	}
}

// ID returns the vertex's immutable identifier.
func (v *Vertex) ID() VertexID {
	v.assertUsable()
	return v.id
}

// State returns the owned state.
func (v *Vertex) State() base.State {
	v.assertUsable()
	return v.state
}

// IsRoot reports whether the vertex is the tree root.
func (v *Vertex) IsRoot() bool {
	v.assertUsable()
	return v.isRoot
}

// HasParent reports whether the vertex currently has a parent.
func (v *Vertex) HasParent() bool {
	v.assertUsable()
	return v.parent != nil
}

// IsInTree reports whether the vertex is connected: root or parented.
func (v *Vertex) IsInTree() bool {
	return v.IsRoot() || v.HasParent()
}

// Depth returns the number of edges from the root. Asking a disconnected
// vertex for its depth is a caller bug.
func (v *Vertex) Depth() int {
	v.assertUsable()
	if !v.isRoot && v.parent == nil {
		panic(base.NewProgrammingError("depth of disconnected vertex %d is undefined", v.id))
	}
	return v.depth
}

// Parent returns the parent vertex. The root has no parent and a
// disconnected vertex has none either; asking in those states is a caller
// bug.
func (v *Vertex) Parent() *Vertex {
	v.assertUsable()
	if v.parent == nil {
		if v.isRoot {
			panic(base.NewProgrammingError("root vertex %d has no parent", v.id))
		}
		panic(base.NewProgrammingError("vertex %d has no parent", v.id))
	}
	return v.parent
}

// AddParent connects the vertex under newParent with the given incoming edge
// cost and recomputes cost and depth, cascading through descendants when
// cascade is set. The vertex must be neither rooted nor already parented.
func (v *Vertex) AddParent(newParent *Vertex, edgeInCost Cost, cascade bool) {
	v.assertUsable()
	if v.parent != nil {
		panic(base.NewProgrammingError("vertex %d already has a parent", v.id))
	}
	if v.isRoot {
		panic(base.NewProgrammingError("root vertex %d cannot be given a parent", v.id))
	}
	v.parent = newParent
	v.edgeCost = edgeInCost
	v.UpdateCostAndDepth(cascade)
}

// RemoveParent disconnects the vertex, setting its cost to infinity. With
// cascade set, descendant costs become infinite as well until a new parent is
// assigned.
func (v *Vertex) RemoveParent(cascade bool) {
	v.assertUsable()
	if v.parent == nil {
		panic(base.NewProgrammingError("vertex %d has no parent to remove", v.id))
	}
	if v.isRoot {
		panic(base.NewProgrammingError("root vertex %d cannot lose a parent", v.id))
	}
	v.parent = nil
	v.UpdateCostAndDepth(cascade)
}

// HasChildren reports whether any child back-references are registered.
func (v *Vertex) HasChildren() bool {
	v.assertUsable()
	return len(v.children) > 0
}

// Children returns the registered children. Encountering a closed child is a
// caller bug: the child should have de-registered itself on Close.
func (v *Vertex) Children() []*Vertex {
	v.assertUsable()
	out := make([]*Vertex, 0, len(v.children))
	for _, c := range v.children {
		if c.closed {
			panic(base.NewProgrammingError("child back-reference on vertex %d outlived the child", v.id))
		}
		out = append(out, c)
	}
	return out
}

// AddChild appends a back-reference to newChild, optionally triggering the
// child's cost and depth update.
func (v *Vertex) AddChild(newChild *Vertex, cascade bool) {
	v.assertUsable()
	v.children = append(v.children, newChild)
	if cascade {
		newChild.UpdateCostAndDepth(true)
	}
	// No else, leave the costs out of date for a later bulk update.
}

// RemoveChild removes the back-reference with oldChild's id, optionally
// triggering the removed child's cost and depth update. Removing a child that
// was never added is a caller bug.
func (v *Vertex) RemoveChild(oldChild *Vertex, cascade bool) {
	v.assertUsable()
	if !v.dropChild(oldChild.ID()) {
		panic(base.NewProgrammingError("vertex %d is not a child of vertex %d", oldChild.ID(), v.id))
	}
	if cascade {
		oldChild.UpdateCostAndDepth(true)
	}
}

// dropChild removes the back-reference with the given id by swap-and-pop,
// reporting whether it was found.
func (v *Vertex) dropChild(id VertexID) bool {
	for i, c := range v.children {
		if c.id != id {
			continue
		}
		last := len(v.children) - 1
		v.children[i] = v.children[last]
		v.children[last] = nil
		v.children = v.children[:last]
		return true
	}
	return false
}

// Cost returns the cost-to-come.
func (v *Vertex) Cost() Cost {
	v.assertUsable()
	return v.cost
}

// EdgeInCost returns the cost of the incoming edge. Meaningless, and a caller
// bug to request, without a parent.
func (v *Vertex) EdgeInCost() Cost {
	v.assertUsable()
	if v.parent == nil {
		panic(base.NewProgrammingError("vertex %d has no incoming edge", v.id))
	}
	return v.edgeCost
}

// IsNew reports whether the vertex was added in the current batch.
func (v *Vertex) IsNew() bool {
	v.assertUsable()
	return v.isNew
}

// MarkNew flags the vertex as part of the current batch.
func (v *Vertex) MarkNew() {
	v.assertUsable()
	v.isNew = true
}

// MarkOld clears the new flag.
func (v *Vertex) MarkOld() {
	v.assertUsable()
	v.isNew = false
}

// HasBeenExpandedToSamples reports whether the vertex's edges to free
// samples have been queued.
func (v *Vertex) HasBeenExpandedToSamples() bool {
	v.assertUsable()
	return v.hasBeenExpandedToSamples
}

// MarkExpandedToSamples records that edges to free samples were queued.
func (v *Vertex) MarkExpandedToSamples() {
	v.assertUsable()
	v.hasBeenExpandedToSamples = true
}

// MarkUnexpandedToSamples clears the samples-expansion flag.
func (v *Vertex) MarkUnexpandedToSamples() {
	v.assertUsable()
	v.hasBeenExpandedToSamples = false
}

// HasBeenExpandedToVertices reports whether the vertex's edges to tree
// vertices have been queued.
func (v *Vertex) HasBeenExpandedToVertices() bool {
	v.assertUsable()
	return v.hasBeenExpandedToVertices
}

// MarkExpandedToVertices records that edges to tree vertices were queued.
func (v *Vertex) MarkExpandedToVertices() {
	v.assertUsable()
	v.hasBeenExpandedToVertices = true
}

// MarkUnexpandedToVertices clears the vertices-expansion flag.
func (v *Vertex) MarkUnexpandedToVertices() {
	v.assertUsable()
	v.hasBeenExpandedToVertices = false
}

// IsPruned reports whether the vertex has been logically removed from the
// search graph. Allowed on pruned vertices.
func (v *Vertex) IsPruned() bool {
	return v.isPruned
}

// MarkPruned makes the vertex inert: every operation except IsPruned and
// MarkUnpruned becomes a caller bug.
func (v *Vertex) MarkPruned() {
	v.assertUsable()
	v.isPruned = true
}

// MarkUnpruned returns a pruned vertex to service.
func (v *Vertex) MarkUnpruned() {
	v.isPruned = false
}

// UpdateCostAndDepth is the single canonical cost propagator; every mutator
// routes through it. With cascade set, descendants are recomputed depth
// first, so a child is never observed before its parent has been updated.
func (v *Vertex) UpdateCostAndDepth(cascade bool) {
	v.assertUsable()
	switch {
	case v.isRoot:
		v.cost = v.costs.IdentityCost()
		v.depth = 0
	case v.parent == nil:
		// Disconnected. Depth is undefined; Depth panics in this state.
		v.cost = v.costs.InfiniteCost()
		v.depth = 0
	default:
		v.cost = v.costs.CombineCosts(v.parent.cost, v.edgeCost)
		v.depth = v.parent.depth + 1
	}

	if cascade {
		for _, c := range v.children {
			if c.closed {
				panic(base.NewProgrammingError("child back-reference on vertex %d outlived the child", v.id))
			}
			c.UpdateCostAndDepth(true)
		}
	}
	// No else, the caller has promised to re-run propagation later.
}
