package datasets

import (
	"fmt"
	"sort"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Sample is one well presented for batching: static features, the encoded
// production history, and the (normalized) target. Exam samples carry a
// zero placeholder target.
type Sample struct {
	Features []float64
	Seq      ProductionSequence
	Target   float64
}

// Batch groups samples for one model step. Features and Targets keep the
// original sample order. Seq is nil for feature-only batches (datasets
// whose HasSequence capability flag is false).
type Batch struct {
	Features [][]float64
	Seq      *PackedSequence
	Targets  []float64
}

// Size returns the number of samples in the batch.
func (b *Batch) Size() int { return len(b.Targets) }

// PackedSequence is a padded, length-annotated representation of a batch
// of variable-length production sequences, suitable for recurrent
// consumption. Rows are sorted by length descending (a stable sort, so
// equal-length rows keep their input order); Unsort maps each original
// sample position back to its sorted row, making the pre-sort order fully
// recoverable.
type PackedSequence struct {
	// Padded is [batch][maxLen][SequenceDim], sorted by length descending
	// and zero-filled past each row's length.
	Padded [][][]float64
	// Lengths holds the true sequence lengths in sorted (Padded) order.
	Lengths []int
	// Unsort[i] is the row in Padded holding original sample i.
	Unsort []int
}

// OrigLengths returns the sequence lengths in original sample order.
func (p *PackedSequence) OrigLengths() []int {
	out := make([]int, len(p.Unsort))
	for i, row := range p.Unsort {
		out[i] = p.Lengths[row]
	}
	return out
}

// Restore maps per-row values produced in sorted order back to the
// original sample order.
func (p *PackedSequence) Restore(sorted []float64) []float64 {
	out := make([]float64, len(p.Unsort))
	for i, row := range p.Unsort {
		out[i] = sorted[row]
	}
	return out
}

// Collate assembles a batch from samples. Sequences are packed only when
// withSequence is set; the static features and targets are stacked in the
// original order either way. Input samples do not need to be pre-sorted.
func Collate(samples []Sample, withSequence bool) (*Batch, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	dim := len(samples[0].Features)
	b := &Batch{
		Features: make([][]float64, len(samples)),
		Targets:  make([]float64, len(samples)),
	}
	for i, s := range samples {
		if len(s.Features) != dim {
			return nil, fmt.Errorf("inconsistent feature dimensions at sample %d: expected %d, got %d",
				i, dim, len(s.Features))
		}
		b.Features[i] = s.Features
		b.Targets[i] = s.Target
	}

	if withSequence {
		packed, err := packSequences(samples)
		if err != nil {
			return nil, err
		}
		b.Seq = packed
	}
	return b, nil
}

func packSequences(samples []Sample) (*PackedSequence, error) {
	order := make([]int, len(samples))
	maxLen := 0
	for i, s := range samples {
		order[i] = i
		if s.Seq.Len() == 0 {
			return nil, fmt.Errorf("sample %d has a zero-length sequence", i)
		}
		if s.Seq.Len() > maxLen {
			maxLen = s.Seq.Len()
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return samples[order[a]].Seq.Len() > samples[order[b]].Seq.Len()
	})

	p := &PackedSequence{
		Padded:  make([][][]float64, len(samples)),
		Lengths: make([]int, len(samples)),
		Unsort:  make([]int, len(samples)),
	}
	for row, orig := range order {
		seq := samples[orig].Seq
		padded := make([][]float64, maxLen)
		for t := 0; t < maxLen; t++ {
			if t < seq.Len() {
				padded[t] = seq.Steps[t]
			} else {
				padded[t] = make([]float64, SequenceDim)
			}
		}
		p.Padded[row] = padded
		p.Lengths[row] = seq.Len()
		p.Unsort[orig] = row
	}
	return p, nil
}

// Tensors converts the stacked features and targets into gomlx tensors so
// batches can feed gomlx training loops directly.
func (b *Batch) Tensors() (features, targets *tensors.Tensor, err error) {
	if b.Size() == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	features = tensors.FromAnyValue(b.Features)
	targets = tensors.FromAnyValue(b.Targets)
	return features, targets, nil
}

// Tensor converts the padded sequence block into a rank-3 gomlx tensor of
// shape [batch, maxLen, SequenceDim].
func (p *PackedSequence) Tensor() *tensors.Tensor {
	return tensors.FromAnyValue(p.Padded)
}
