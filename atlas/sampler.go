package atlas

import "github.com/atlasplan/atlasplan/base"

// Sampler draws states from the charted regions of an atlas. It satisfies
// base.StateSampler.
type Sampler struct {
	space *Space
}

// NewSampler returns a sampler over the given atlas.
func NewSampler(space *Space) *Sampler {
	return &Sampler{space: space}
}

// SampleUniform samples a state uniformly from the known charted regions of
// the manifold.
func (sm *Sampler) SampleUniform(out base.State) error {
	return sm.space.SampleUniform(mustState(out))
}

// SampleUniformNear samples a state within distance d of near.
func (sm *Sampler) SampleUniformNear(out, near base.State, d float64) error {
	return sm.space.SampleUniformNear(mustState(out), mustState(near), d)
}
