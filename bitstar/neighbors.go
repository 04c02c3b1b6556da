package bitstar

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.viam.com/utils"

	"github.com/atlasplan/atlasplan/base"
)

const neighborsBeforeParallelization = 1000

type neighbor struct {
	dist   float64
	vertex *Vertex
}

// kNearestNeighbors returns the k vertices nearest to target by ambient
// state distance, closest first.
func kNearestNeighbors(space base.StateSpace, vertices []*Vertex, target *Vertex, k int) []*neighbor {
	if k > len(vertices) {
		k = len(vertices)
	}

	allCosts := make([]*neighbor, 0, len(vertices))
	for _, v := range vertices {
		allCosts = append(allCosts, &neighbor{dist: space.Distance(v.State(), target.State()), vertex: v})
	}
	sort.Slice(allCosts, func(i, j int) bool {
		return allCosts[i].dist < allCosts[j].dist
	})
	return allCosts[:k]
}

type neighborManager struct {
	nnKeys    chan *Vertex
	neighbors chan *neighbor
	nnLock    sync.RWMutex
	seedPos   *Vertex
	ready     bool
	nCPU      int
	space     base.StateSpace
}

func (nm *neighborManager) nearestNeighbor(ctx context.Context, seed *Vertex, vertices []*Vertex) *Vertex {
	if len(vertices) > neighborsBeforeParallelization {
		// If the set is large, calculate distances in parallel
		return nm.parallelNearestNeighbor(ctx, seed, vertices)
	}
	bestDist := math.Inf(1)
	var best *Vertex
	for _, v := range vertices {
		dist := nm.space.Distance(seed.State(), v.State())
		if dist < bestDist {
			bestDist = dist
			best = v
		}
	}
	return best
}

func (nm *neighborManager) parallelNearestNeighbor(ctx context.Context, seed *Vertex, vertices []*Vertex) *Vertex {
	nm.ready = false
	nm.startNNworkers(ctx)
	defer close(nm.nnKeys)
	defer close(nm.neighbors)
	nm.nnLock.Lock()
	nm.seedPos = seed
	nm.nnLock.Unlock()

	for _, v := range vertices {
		nm.nnKeys <- v
	}
	nm.nnLock.Lock()
	nm.ready = true
	nm.nnLock.Unlock()
	var best *Vertex
	bestDist := math.Inf(1)
	returned := 0
	for returned < nm.nCPU {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		select {
		case nn := <-nm.neighbors:
			returned++
			if nn.dist < bestDist {
				bestDist = nn.dist
				best = nn.vertex
			}
		default:
		}
	}
	return best
}

func (nm *neighborManager) startNNworkers(ctx context.Context) {
	nm.neighbors = make(chan *neighbor, nm.nCPU)
	nm.nnKeys = make(chan *Vertex, nm.nCPU)
	for i := 0; i < nm.nCPU; i++ {
		utils.PanicCapturingGo(func() {
			nm.nnWorker(ctx)
		})
	}
}

func (nm *neighborManager) nnWorker(ctx context.Context) {
	var best *Vertex
	bestDist := math.Inf(1)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case v := <-nm.nnKeys:
			if v != nil {
				nm.nnLock.RLock()
				dist := nm.space.Distance(nm.seedPos.State(), v.State())
				nm.nnLock.RUnlock()
				if dist < bestDist {
					bestDist = dist
					best = v
				}
			}
		default:
			nm.nnLock.RLock()
			if nm.ready {
				nm.nnLock.RUnlock()
				nm.neighbors <- &neighbor{bestDist, best}
				return
			}
			nm.nnLock.RUnlock()
		}
	}
}
