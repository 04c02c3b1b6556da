package bitstar

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/atlasplan/atlasplan/base"
)

var _ base.Planner = (*Planner)(nil)

// Planner is a batch planner over a growing random geometric graph. Each
// iteration samples a batch of free states, connects them to the tree through
// their nearest neighbors, and rewires tree vertices whenever a cheaper
// parent appears; the vertex cost cascade keeps cost-to-come trustworthy
// throughout. It satisfies base.Planner.
type Planner struct {
	si      *base.SpaceInformation
	sampler base.StateSampler
	costs   CostHelper
	ids     *IDGenerator
	logger  golog.Logger
	clk     clock.Clock
	nCPU    int
	opts    *PlannerOptions
	pdef    *base.ProblemDefinition

	// vertices owns every vertex by id; everything else holds bare
	// back-references.
	vertices map[VertexID]*Vertex
	tree     []*Vertex
	samples  []*Vertex
	root     *Vertex
}

// NewPlanner creates a planner over si with default options and a wall
// clock.
func NewPlanner(si *base.SpaceInformation, costs CostHelper, ids *IDGenerator, logger golog.Logger) (*Planner, error) {
	return NewPlannerWithOptions(si, costs, ids, logger, clock.New(), DefaultPlannerOptions())
}

// NewPlannerWithOptions creates a planner with explicit options and clock.
// The clock is injected so tests can drive the solve deadline.
func NewPlannerWithOptions(
	si *base.SpaceInformation,
	costs CostHelper,
	ids *IDGenerator,
	logger golog.Logger,
	clk clock.Clock,
	opts *PlannerOptions,
) (*Planner, error) {
	if err := si.Setup(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = DefaultPlannerOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Planner{
		si:       si,
		sampler:  si.Space().AllocDefaultStateSampler(),
		costs:    costs,
		ids:      ids,
		logger:   logger,
		clk:      clk,
		nCPU:     runtime.NumCPU(),
		opts:     opts,
		vertices: map[VertexID]*Vertex{},
	}, nil
}

// SetProblemDefinition installs the problem to solve.
func (p *Planner) SetProblemDefinition(pdef *base.ProblemDefinition) {
	p.pdef = pdef
}

// Clear releases every vertex the planner owns. The planner can be reused
// with a fresh Solve afterward.
func (p *Planner) Clear() {
	// Close children before parents so no back-reference outlives its child.
	byDepth := make([]*Vertex, 0, len(p.vertices))
	for _, v := range p.vertices {
		byDepth = append(byDepth, v)
	}
	sort.Slice(byDepth, func(i, j int) bool {
		di, dj := 0, 0
		if byDepth[i].parent != nil {
			di = byDepth[i].depth
		}
		if byDepth[j].parent != nil {
			dj = byDepth[j].depth
		}
		return di > dj
	})
	for _, v := range byDepth {
		v.Close()
	}
	p.vertices = map[VertexID]*Vertex{}
	p.tree = nil
	p.samples = nil
	p.root = nil
}

// Solve plans from the problem's start to its goal until an exact solution
// is found or budget elapses. An approximate solution reports the remaining
// distance to the goal as its difference.
func (p *Planner) Solve(ctx context.Context, budget time.Duration) (base.PlannerStatus, error) {
	if p.pdef == nil {
		return base.StatusFailure, errors.New("planner has no problem definition")
	}
	space := p.si.Space()
	deadline := p.clk.Now().Add(budget)

	p.root = p.newVertex(true)
	space.CopyState(p.root.State(), p.pdef.Start())
	p.tree = append(p.tree, p.root)

	goal := p.pdef.Goal()
	goalVertex := p.newVertex(false)
	space.CopyState(goalVertex.State(), goal)
	bestApproach := p.root
	bestApproachDist := space.Distance(p.root.State(), goal)
	nm := &neighborManager{nCPU: p.nCPU, space: space}

	batch := 0
	for p.clk.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return base.StatusTimeout, err
		}
		batch++

		if err := p.sampleBatch(); err != nil {
			return base.StatusFailure, errors.Wrapf(err, "batch %d produced no samples", batch)
		}
		p.processBatch(ctx, deadline)

		// Track the closest approach for an approximate answer.
		if nearest := nm.nearestNeighbor(ctx, goalVertex, p.tree); nearest != nil {
			if d := space.Distance(nearest.State(), goal); d < bestApproachDist {
				bestApproachDist = d
				bestApproach = nearest
			}
		}
		if p.logger != nil {
			p.logger.Debugf("batch %d: %d tree vertices, %d free samples, goal distance %g",
				batch, len(p.tree), len(p.samples), bestApproachDist)
		}

		if bestApproachDist <= p.opts.GoalTolerance {
			p.pruneBeyond(bestApproach, goal)
			p.recordSolution(bestApproach, false, bestApproachDist)
			return base.StatusExact, nil
		}
	}

	if bestApproach != p.root || bestApproachDist <= p.opts.GoalTolerance {
		p.recordSolution(bestApproach, true, bestApproachDist)
		return base.StatusApproximate, nil
	}
	return base.StatusTimeout, nil
}

func (p *Planner) newVertex(root bool) *Vertex {
	v := NewVertex(p.ids, p.si, p.costs, root)
	p.vertices[v.ID()] = v
	return v
}

// sampleBatch draws a batch of free states. Individual sampling failures are
// tolerated; a batch where every draw failed is an error carrying the
// aggregate diagnostics.
func (p *Planner) sampleBatch() error {
	var errAll error
	drawn := 0
	for i := 0; i < p.opts.BatchSize; i++ {
		v := NewVertex(p.ids, p.si, p.costs, false)
		if err := p.sampler.SampleUniform(v.State()); err != nil {
			multierr.AppendInto(&errAll, err)
			v.Close()
			continue
		}
		if !p.si.IsValid(v.State()) {
			v.Close()
			continue
		}
		p.vertices[v.ID()] = v
		v.MarkNew()
		p.samples = append(p.samples, v)
		drawn++
	}
	if drawn == 0 && errAll != nil {
		return errAll
	}
	return nil
}

// processBatch connects free samples to the tree and rewires tree vertices
// through cheaper parents. Expansion is best first by cost-to-come.
func (p *Planner) processBatch(ctx context.Context, deadline time.Time) {
	space := p.si.Space()

	sort.Slice(p.tree, func(i, j int) bool {
		return p.costs.IsCostBetterThan(p.tree[i].Cost(), p.tree[j].Cost())
	})

	for i := 0; i < len(p.tree); i++ {
		if ctx.Err() != nil || !p.clk.Now().Before(deadline) {
			return
		}
		v := p.tree[i]
		if v.IsPruned() || v.HasBeenExpandedToSamples() {
			continue
		}

		free := p.freeSamples()
		if len(free) > 0 {
			for _, nn := range kNearestNeighbors(space, free, v, p.opts.NeighborhoodSize) {
				p.tryConnect(v, nn.vertex, nn.dist)
			}
		}
		v.MarkExpandedToSamples()

		if !v.HasBeenExpandedToVertices() {
			p.rewire(v)
			v.MarkExpandedToVertices()
		}
	}

	for _, v := range p.tree {
		if !v.IsPruned() {
			v.MarkOld()
		}
	}
}

func (p *Planner) freeSamples() []*Vertex {
	out := make([]*Vertex, 0, len(p.samples))
	for _, s := range p.samples {
		if !s.IsPruned() && !s.IsInTree() {
			out = append(out, s)
		}
	}
	return out
}

// tryConnect attempts the edge v -> sample, taking it when it is collision
// free and improves the sample's cost-to-come.
func (p *Planner) tryConnect(v, sample *Vertex, dist float64) {
	candidate := p.costs.CombineCosts(v.Cost(), Cost(dist))
	if !p.costs.IsCostBetterThan(candidate, sample.Cost()) {
		return
	}
	if !p.si.CheckMotion(v.State(), sample.State()) {
		return
	}

	wasConnected := sample.IsInTree()
	if wasConnected {
		sample.Parent().RemoveChild(sample, false)
		sample.RemoveParent(false)
	}
	sample.AddParent(v, Cost(dist), true)
	v.AddChild(sample, false)
	if !wasConnected {
		p.tree = append(p.tree, sample)
	}
}

// rewire offers v as a parent to nearby tree vertices, cascading cost updates
// through any subtree it improves.
func (p *Planner) rewire(v *Vertex) {
	space := p.si.Space()
	others := make([]*Vertex, 0, len(p.tree))
	for _, t := range p.tree {
		if t != v && !t.IsPruned() && t.IsInTree() && !t.IsRoot() {
			others = append(others, t)
		}
	}
	if len(others) == 0 {
		return
	}
	for _, nn := range kNearestNeighbors(space, others, v, p.opts.NeighborhoodSize) {
		t := nn.vertex
		if isAncestor(t, v) {
			continue
		}
		candidate := p.costs.CombineCosts(v.Cost(), Cost(nn.dist))
		if !p.costs.IsCostBetterThan(candidate, t.Cost()) {
			continue
		}
		if !p.si.CheckMotion(v.State(), t.State()) {
			continue
		}
		t.Parent().RemoveChild(t, false)
		t.RemoveParent(false)
		t.AddParent(v, Cost(nn.dist), true)
		v.AddChild(t, false)
	}
}

// isAncestor reports whether a is on v's chain to the root.
func isAncestor(a, v *Vertex) bool {
	for cur := v; cur != nil; {
		if cur == a {
			return true
		}
		if cur.IsRoot() || !cur.HasParent() {
			return false
		}
		cur = cur.Parent()
	}
	return false
}

// pruneBeyond marks every free sample that cannot beat the found solution as
// pruned. Pruned vertices stay owned by the planner but become inert.
func (p *Planner) pruneBeyond(goalVertex *Vertex, goal base.State) {
	space := p.si.Space()
	bound := p.costs.CombineCosts(goalVertex.Cost(), Cost(space.Distance(goalVertex.State(), goal)))
	pruned := 0
	for _, s := range p.samples {
		if s.IsPruned() || s.IsInTree() {
			continue
		}
		// Lower bound on any solution through s.
		heuristic := Cost(space.Distance(p.root.State(), s.State()) + space.Distance(s.State(), goal))
		if !p.costs.IsCostBetterThan(heuristic, bound) {
			s.MarkPruned()
			pruned++
		}
	}
	if p.logger != nil && pruned > 0 {
		p.logger.Debugf("pruned %d samples beyond solution cost %g", pruned, float64(bound))
	}
}

// recordSolution walks the parent chain from v and records the path.
func (p *Planner) recordSolution(v *Vertex, approximate bool, difference float64) {
	space := p.si.Space()

	var chain []*Vertex
	for cur := v; ; cur = cur.Parent() {
		chain = append(chain, cur)
		if cur.IsRoot() {
			break
		}
	}

	path := make([]base.State, 0, len(chain))
	length := 0.0
	for i := len(chain) - 1; i >= 0; i-- {
		st := space.AllocState()
		space.CopyState(st, chain[i].State())
		path = append(path, st)
		if i < len(chain)-1 {
			length += space.Distance(chain[i+1].State(), chain[i].State())
		}
	}

	sol := &base.Solution{
		Path:        path,
		Approximate: approximate,
		Length:      length,
		PlannerName: "bitstar",
	}
	if approximate {
		sol.Difference = difference
	}
	p.pdef.AddSolution(sol)
}
