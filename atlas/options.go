package atlas

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
)

const (
	defaultDelta                   = 0.02
	defaultEpsilon                 = 0.1
	defaultRho                     = 0.1
	defaultAlpha                   = math.Pi / 16
	defaultExploration             = 0.5
	defaultLambda                  = 2.0
	defaultProjectionTolerance     = 1e-8
	defaultProjectionMaxIterations = 200
	defaultMonteCarloThoroughness  = 3.5
	defaultSampleRetries           = 100
)

// Options controls the behavior of an atlas. All values are pre-set to
// reasonable defaults, but can be tweaked if needed.
type Options struct {
	// Delta is the step size for traversing the manifold and collision
	// checking.
	Delta float64 `json:"delta"`

	// Epsilon is the maximum permissible distance between a point in the
	// validity region of a chart and its projection onto the manifold.
	Epsilon float64 `json:"epsilon"`

	// Rho is the maximum radius for which a chart is valid. If too large, it
	// is decreased during operation of the atlas.
	Rho float64 `json:"rho"`

	// Alpha is the maximum permissible angle between a chart and the manifold
	// inside the chart's validity region. Must be in (0, pi/2).
	Alpha float64 `json:"alpha"`

	// Exploration tunes the balance of refinement (sampling within known
	// regions) and exploration (sampling on the frontier). Valid values are
	// in [0, 1), where 0 is all refinement.
	Exploration float64 `json:"exploration"`

	// Lambda bounds manifold traversal: walking from x to y gives up once the
	// accumulated distance exceeds lambda * d(x, y). Must be > 1.
	Lambda float64 `json:"lambda"`

	// ProjectionTolerance is the halt criterion for Newton projection onto
	// the manifold.
	ProjectionTolerance float64 `json:"projection_tolerance"`

	// ProjectionMaxIterations caps Newton projection.
	ProjectionMaxIterations int `json:"projection_max_iterations"`

	// MonteCarloThoroughness scales the number of samples used to estimate
	// chart measures, proportional to thoroughness^k. Has a massive
	// performance impact in higher dimensions.
	MonteCarloThoroughness float64 `json:"monte_carlo_thoroughness"`

	// SampleRetries bounds the rejection loop in uniform sampling.
	SampleRetries int `json:"sample_retries"`
}

// DefaultOptions returns the default atlas configuration.
func DefaultOptions() *Options {
	return &Options{
		Delta:                   defaultDelta,
		Epsilon:                 defaultEpsilon,
		Rho:                     defaultRho,
		Alpha:                   defaultAlpha,
		Exploration:             defaultExploration,
		Lambda:                  defaultLambda,
		ProjectionTolerance:     defaultProjectionTolerance,
		ProjectionMaxIterations: defaultProjectionMaxIterations,
		MonteCarloThoroughness:  defaultMonteCarloThoroughness,
		SampleRetries:           defaultSampleRetries,
	}
}

// NewOptions returns the defaults overlaid with any matching keys in extra.
func NewOptions(extra map[string]interface{}) (*Options, error) {
	opts := DefaultOptions()
	jsonString, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(jsonString, opts); err != nil {
		return nil, err
	}
	return opts, opts.validate()
}

func (o *Options) validate() error {
	if o.Delta <= 0 {
		return errors.Errorf("delta must be positive, got %g", o.Delta)
	}
	if o.Epsilon <= 0 {
		return errors.Errorf("epsilon must be positive, got %g", o.Epsilon)
	}
	if o.Rho <= 0 {
		return errors.Errorf("rho must be positive, got %g", o.Rho)
	}
	if o.Alpha <= 0 || o.Alpha >= math.Pi/2 {
		return errors.Errorf("alpha must be in (0, pi/2), got %g", o.Alpha)
	}
	if o.Exploration < 0 || o.Exploration >= 1 {
		return errors.Errorf("exploration must be in [0, 1), got %g", o.Exploration)
	}
	if o.Lambda <= 1 {
		return errors.Errorf("lambda must be greater than 1, got %g", o.Lambda)
	}
	if o.ProjectionTolerance <= 0 {
		return errors.Errorf("projection tolerance must be positive, got %g", o.ProjectionTolerance)
	}
	if o.ProjectionMaxIterations < 1 {
		return errors.Errorf("projection iteration cap must be at least 1, got %d", o.ProjectionMaxIterations)
	}
	if o.MonteCarloThoroughness <= 0 {
		return errors.Errorf("monte carlo thoroughness must be positive, got %g", o.MonteCarloThoroughness)
	}
	if o.SampleRetries < 1 {
		return errors.Errorf("sample retry cap must be at least 1, got %d", o.SampleRetries)
	}
	return nil
}
