package atlas

import "math/rand"

// chartPDF is a discrete distribution over charts weighted by measure. The
// atlas only ever adds charts and updates weights, so a flat slice with a
// running total is enough; sampling is a linear scan.
type chartPDF struct {
	charts []*Chart
	total  float64
}

func (p *chartPDF) add(c *Chart, weight float64) {
	c.pdfIndex = len(p.charts)
	c.measure = weight
	p.charts = append(p.charts, c)
	p.total += weight
}

func (p *chartPDF) update(c *Chart, weight float64) {
	p.total += weight - c.measure
	c.measure = weight
	if p.total < 0 {
		p.total = 0
	}
}

func (p *chartPDF) sample(rng *rand.Rand) *Chart {
	if p.total <= 0 {
		// All measures collapsed to zero; fall back to uniform.
		return p.charts[rng.Intn(len(p.charts))]
	}
	target := rng.Float64() * p.total
	acc := 0.0
	for _, c := range p.charts {
		acc += c.measure
		if target <= acc {
			return c
		}
	}
	return p.charts[len(p.charts)-1]
}
