package models

import (
	"fmt"
	"math"
)

// Adam implements the Adam optimizer over parameter groups. A group is a
// flat []float64 slice; models hand Step parallel lists of parameter and
// gradient groups, and updates happen in place. Weight decay follows the
// torch convention: decay*param is added to the gradient before the
// moment updates.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64

	// ClipNorm caps the global gradient norm before the update; zero
	// disables clipping.
	ClipNorm float64

	t int
	m [][]float64
	v [][]float64
}

// NewAdam creates an Adam optimizer with standard moment defaults.
func NewAdam(lr, weightDecay float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  weightDecay,
		ClipNorm:     5.0,
	}
}

// Step applies one Adam update. params and grads must be parallel lists of
// equally shaped groups; moment buffers are allocated on first use.
func (a *Adam) Step(params, grads [][]float64) error {
	if len(params) != len(grads) {
		return fmt.Errorf("parameter groups (%d) and gradient groups (%d) don't match", len(params), len(grads))
	}
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for g := range params {
			a.m[g] = make([]float64, len(params[g]))
			a.v[g] = make([]float64, len(params[g]))
		}
	}
	for g := range params {
		if len(params[g]) != len(grads[g]) || len(params[g]) != len(a.m[g]) {
			return fmt.Errorf("group %d shape mismatch", g)
		}
	}

	if a.ClipNorm > 0 {
		clipByGlobalNorm(grads, a.ClipNorm)
	}

	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for g := range params {
		p := params[g]
		gr := grads[g]
		for i := range p {
			d := gr[i] + a.WeightDecay*p[i]
			a.m[g][i] = a.Beta1*a.m[g][i] + (1-a.Beta1)*d
			a.v[g][i] = a.Beta2*a.v[g][i] + (1-a.Beta2)*d*d
			mHat := a.m[g][i] / bc1
			vHat := a.v[g][i] / bc2
			p[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
	return nil
}

// clipByGlobalNorm rescales all gradient groups so their joint L2 norm is
// at most max.
func clipByGlobalNorm(grads [][]float64, max float64) {
	var sq float64
	for _, g := range grads {
		for _, v := range g {
			sq += v * v
		}
	}
	norm := math.Sqrt(sq)
	if norm <= max || norm == 0 {
		return
	}
	scale := max / norm
	for _, g := range grads {
		for i := range g {
			g[i] *= scale
		}
	}
}
