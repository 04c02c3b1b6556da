package atlas

import (
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/atlasplan/atlasplan/base"
)

func TestOptionsValidation(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mangle func(o *Options)
	}{
		{"delta", func(o *Options) { o.Delta = 0 }},
		{"epsilon", func(o *Options) { o.Epsilon = -1 }},
		{"rho", func(o *Options) { o.Rho = 0 }},
		{"alpha", func(o *Options) { o.Alpha = math.Pi }},
		{"exploration", func(o *Options) { o.Exploration = 1 }},
		{"lambda", func(o *Options) { o.Lambda = 1 }},
		{"projection tolerance", func(o *Options) { o.ProjectionTolerance = 0 }},
		{"projection iterations", func(o *Options) { o.ProjectionMaxIterations = 0 }},
		{"thoroughness", func(o *Options) { o.MonteCarloThoroughness = 0 }},
		{"retries", func(o *Options) { o.SampleRetries = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mangle(opts)
			test.That(t, opts.validate(), test.ShouldNotBeNil)
		})
	}
}

func TestOptionsOverlay(t *testing.T) {
	opts, err := NewOptions(map[string]interface{}{"delta": 0.01, "lambda": 3.0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.Delta, test.ShouldEqual, 0.01)
	test.That(t, opts.Lambda, test.ShouldEqual, 3.0)
	test.That(t, opts.Rho, test.ShouldEqual, defaultRho)

	_, err = NewOptions(map[string]interface{}{"lambda": 0.5})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewChartRejectsOffManifoldOrigin(t *testing.T) {
	space := newSphereSpace(t, nil)
	_, err := space.NewChart(mat.NewVecDense(3, []float64{0, 0, 2}))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOwningChartHintPreference(t *testing.T) {
	space := newSphereSpace(t, nil)
	c1, err := space.NewChart(northPole())
	test.That(t, err, test.ShouldBeNil)

	nearby := mat.NewVecDense(3, []float64{0.05, 0, 1})
	proj, err := space.Projector().Project(nearby)
	test.That(t, err, test.ShouldBeNil)
	c2, err := space.NewChart(proj)
	test.That(t, err, test.ShouldBeNil)

	// A point on the hint's side of the shared bisector belongs to the hint.
	nearC1, err := space.Projector().Project(mat.NewVecDense(3, []float64{0.01, 0, 1}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, space.OwningChart(nearC1, c1), test.ShouldEqual, c1)

	// A wrong hint still resolves through its neighbors.
	test.That(t, space.OwningChart(nearC1, c2), test.ShouldEqual, c1)

	// Without a hint the containing chart with the nearest origin wins.
	nearC2, err := space.Projector().Project(mat.NewVecDense(3, []float64{0.045, 0, 1}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, space.OwningChart(nearC2, nil), test.ShouldEqual, c2)

	// Far from every chart there is no owner.
	test.That(t, space.OwningChart(mat.NewVecDense(3, []float64{0, 0, -1}), nil), test.ShouldBeNil)
}

func TestSampleChartEmptyAtlasPanics(t *testing.T) {
	space := newSphereSpace(t, nil)
	test.That(t, func() { space.SampleChart() }, test.ShouldPanic)
}

func TestSampleUniformStaysOnManifold(t *testing.T) {
	space := newSphereSpace(t, nil)
	_, err := space.NewChart(northPole())
	test.That(t, err, test.ShouldBeNil)

	out := space.AllocState().(*State)
	for i := 0; i < 200; i++ {
		test.That(t, space.SampleUniform(out), test.ShouldBeNil)
		test.That(t, math.Abs(mat.Norm(out.Vector(), 2)-1), test.ShouldBeLessThan, space.ProjectionTolerance())
		c := out.Chart()
		test.That(t, c, test.ShouldNotBeNil)
		test.That(t, c.InPolytope(c.PsiInverse(out.Vector())), test.ShouldBeTrue)
	}
}

func TestSampleUniformNear(t *testing.T) {
	space := newSphereSpace(t, nil)
	c, err := space.NewChart(northPole())
	test.That(t, err, test.ShouldBeNil)

	near := space.AllocState().(*State)
	near.SetRealState(northPole(), c)
	out := space.AllocState().(*State)
	for i := 0; i < 50; i++ {
		test.That(t, space.SampleUniformNear(out, near, 0.02), test.ShouldBeNil)
		test.That(t, math.Abs(mat.Norm(out.Vector(), 2)-1), test.ShouldBeLessThan, space.ProjectionTolerance())
		test.That(t, space.ambientDistance(out.Vector(), near.Vector()), test.ShouldBeLessThan, 0.05)
	}
}

func TestChartGrowthAndSamplingDistribution(t *testing.T) {
	space := newSphereSpace(t, nil)
	_, err := space.NewChart(northPole())
	test.That(t, err, test.ShouldBeNil)

	out := space.AllocState().(*State)
	const samples = 5000
	for i := 0; i < samples/2; i++ {
		test.That(t, space.SampleUniform(out), test.ShouldBeNil)
	}
	atHalf := space.ChartCount()
	for i := samples / 2; i < samples; i++ {
		test.That(t, space.SampleUniform(out), test.ShouldBeNil)
	}

	// The sphere has finite area, so chart growth is sublinear in samples:
	// the second half of the draws creates fewer charts than the first.
	test.That(t, space.ChartCount()-atHalf, test.ShouldBeLessThan, atHalf)
	test.That(t, space.ChartCount(), test.ShouldBeLessThan, samples/2)
	test.That(t, space.ChartCount(), test.ShouldBeGreaterThan, 1)

	// Empirical mean measure of sampled charts tracks the
	// measure-weighted expectation of the distribution.
	want := 0.0
	total := 0.0
	for _, c := range space.pdf.charts {
		want += c.Measure() * c.Measure()
		total += c.Measure()
	}
	want /= total

	drawn := make([]float64, 20000)
	for i := range drawn {
		drawn[i] = space.SampleChart().Measure()
	}
	got, err := stats.Mean(drawn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(got-want)/want, test.ShouldBeLessThan, 0.05)
}

func TestStateCopyIndependence(t *testing.T) {
	space := newSphereSpace(t, nil)
	c, err := space.NewChart(northPole())
	test.That(t, err, test.ShouldBeNil)

	src := space.AllocState().(*State)
	src.SetRealState(northPole(), c)
	dst := space.AllocState()

	space.CopyState(dst, src)
	test.That(t, space.EqualStates(dst, src), test.ShouldBeTrue)
	test.That(t, dst.(*State).Chart(), test.ShouldEqual, c)

	// Freeing one does not affect the other.
	space.FreeState(src)
	test.That(t, math.Abs(mat.Norm(dst.(*State).Vector(), 2)-1), test.ShouldBeLessThan, 1e-9)
	space.FreeState(dst)
}

func TestDoubleFreePanics(t *testing.T) {
	space := newSphereSpace(t, nil)
	st := space.AllocState()
	space.FreeState(st)
	test.That(t, func() { space.FreeState(st) }, test.ShouldPanic)
}

func TestSetSpaceInformation(t *testing.T) {
	space := newSphereSpace(t, nil)
	other := newSphereSpace(t, nil)

	si := base.NewSpaceInformation("robot", space)
	test.That(t, space.SetSpaceInformation(si), test.ShouldBeNil)
	test.That(t, other.SetSpaceInformation(si), test.ShouldNotBeNil)
}

func TestChartValidAt(t *testing.T) {
	space := newSphereSpace(t, nil)
	c, err := space.NewChart(northPole())
	test.That(t, err, test.ShouldBeNil)

	// Near its origin the chart tracks the manifold; a quarter sphere away
	// the tangent planes are orthogonal and far outside the alpha bound.
	near, err := space.Projector().Project(mat.NewVecDense(3, []float64{0.01, 0, 1}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, space.ChartValidAt(c, near), test.ShouldBeTrue)
	test.That(t, space.ChartValidAt(c, mat.NewVecDense(3, []float64{0, 1, 0})), test.ShouldBeFalse)
}

func TestSetRhoRefreshesMeasures(t *testing.T) {
	space := newSphereSpace(t, nil)
	c, err := space.NewChart(northPole())
	test.That(t, err, test.ShouldBeNil)
	before := c.Measure()

	test.That(t, space.SetRho(space.Rho()/2), test.ShouldBeNil)
	test.That(t, c.Measure(), test.ShouldBeLessThan, before)
	test.That(t, space.SetRho(-1), test.ShouldNotBeNil)
}
