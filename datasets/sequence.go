package datasets

import "math"

// Default normalization divisors for the per-month production channels and
// the model output scale.
const (
	DefaultGasDiv  = 1e5
	DefaultCndDiv  = 1e4
	DefaultHrsDiv  = 1e3
	DefaultGasNorm = 1e5
	SequenceDim    = 4
	TrainHorizon   = 36
	ExamHorizon    = 30
)

// ProductionSequence is one well's monthly production history encoded as a
// sequence of 4-dimensional step vectors
//
//	[gas_rate, condensate_rate, normalized_hours, rest_count]
//
// with one step per month that reported nonzero production hours. Months
// with zero hours emit no step; instead they increment a rest counter that
// is attached to the next active month and then reset. A well with no
// usable history is represented by a single all-zero step with Empty set,
// which keeps downstream batching well-defined.
type ProductionSequence struct {
	Steps [][]float64
	Empty bool
}

// Len returns the number of steps (1 for the empty placeholder).
func (s ProductionSequence) Len() int { return len(s.Steps) }

// EncodeSequence converts parallel per-month gas, condensate and hours
// arrays into a ProductionSequence. The three arrays must have equal
// length (the horizon). Divisors scale the emitted channels:
// gas/(gasDiv*hrs), cnd/(cndDiv*hrs), hrs/hrsDiv.
//
// The encoding is strictly causal: the rest count on an emitted step only
// reflects zero-hour months since the previous active month. A trailing
// run of zero-hour months increments the counter but is never emitted.
// Only the first hours entry is checked for missingness; a NaN later in
// the horizon propagates into the emitted values unchanged.
func EncodeSequence(gas, cnd, hrs []float64, gasDiv, cndDiv, hrsDiv float64) ProductionSequence {
	if len(hrs) == 0 || math.IsNaN(hrs[0]) {
		return emptySequence()
	}

	steps := make([][]float64, 0, len(hrs))
	rest := 0
	for m := range hrs {
		h := hrs[m]
		if h == 0 {
			rest++
			continue
		}
		steps = append(steps, []float64{
			gas[m] / (gasDiv * h),
			cnd[m] / (cndDiv * h),
			h / hrsDiv,
			float64(rest),
		})
		rest = 0
	}
	if len(steps) == 0 {
		return emptySequence()
	}
	return ProductionSequence{Steps: steps}
}

func emptySequence() ProductionSequence {
	return ProductionSequence{
		Steps: [][]float64{make([]float64, SequenceDim)},
		Empty: true,
	}
}
