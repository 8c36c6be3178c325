package datasets

import (
	"testing"
)

// seqOfLen builds a ProductionSequence with the given length whose first
// channel encodes the step index, for tracing rows through packing.
func seqOfLen(n int, tag float64) ProductionSequence {
	steps := make([][]float64, n)
	for i := range steps {
		steps[i] = []float64{tag, float64(i), 0, 0}
	}
	return ProductionSequence{Steps: steps}
}

func TestCollateStacksOriginalOrder(t *testing.T) {
	samples := []Sample{
		{Features: []float64{1, 10}, Seq: seqOfLen(2, 1), Target: 0.1},
		{Features: []float64{2, 20}, Seq: seqOfLen(5, 2), Target: 0.2},
		{Features: []float64{3, 30}, Seq: seqOfLen(3, 3), Target: 0.3},
	}
	b, err := Collate(samples, false)
	if err != nil {
		t.Fatalf("Collate failed: %v", err)
	}
	if b.Seq != nil {
		t.Fatalf("feature-only collate must not pack sequences")
	}
	for i, s := range samples {
		if b.Features[i][0] != s.Features[0] || b.Targets[i] != s.Target {
			t.Fatalf("sample %d not in original order", i)
		}
	}
}

func TestCollatePackedRoundTrip(t *testing.T) {
	samples := []Sample{
		{Features: []float64{1}, Seq: seqOfLen(2, 1), Target: 0.1},
		{Features: []float64{2}, Seq: seqOfLen(5, 2), Target: 0.2},
		{Features: []float64{3}, Seq: seqOfLen(3, 3), Target: 0.3},
		{Features: []float64{4}, Seq: seqOfLen(3, 4), Target: 0.4},
	}
	b, err := Collate(samples, true)
	if err != nil {
		t.Fatalf("Collate failed: %v", err)
	}
	p := b.Seq
	if p == nil {
		t.Fatalf("expected packed sequences")
	}

	// rows sorted by length descending, stable for ties
	wantSorted := []int{5, 3, 3, 2}
	for i, l := range p.Lengths {
		if l != wantSorted[i] {
			t.Fatalf("sorted lengths: want %v, got %v", wantSorted, p.Lengths)
		}
	}

	// unsorting restores original per-sample lengths
	orig := p.OrigLengths()
	wantOrig := []int{2, 5, 3, 3}
	for i, l := range orig {
		if l != wantOrig[i] {
			t.Fatalf("original lengths: want %v, got %v", wantOrig, orig)
		}
	}

	// each original sample's row carries its tag in channel 0
	for i := range samples {
		row := p.Padded[p.Unsort[i]]
		if row[0][0] != float64(i+1) {
			t.Fatalf("sample %d mapped to wrong packed row (tag %v)", i, row[0][0])
		}
	}

	// padding is zero-filled past the true length
	for r, row := range p.Padded {
		for tstep := p.Lengths[r]; tstep < len(row); tstep++ {
			for _, v := range row[tstep] {
				if v != 0 {
					t.Fatalf("row %d step %d not zero-padded", r, tstep)
				}
			}
		}
		if len(row) != 5 {
			t.Fatalf("all rows must be padded to max length 5, row %d has %d", r, len(row))
		}
	}

	// Restore maps sorted-order outputs back to input order
	sortedOut := []float64{10, 20, 30, 40}
	restored := p.Restore(sortedOut)
	for i := range samples {
		if restored[i] != sortedOut[p.Unsort[i]] {
			t.Fatalf("Restore mismatch at %d", i)
		}
	}
}

func TestBatchTensors(t *testing.T) {
	samples := []Sample{
		{Features: []float64{1, 2}, Seq: seqOfLen(2, 1), Target: 0.5},
		{Features: []float64{3, 4}, Seq: seqOfLen(4, 2), Target: 0.6},
	}
	b, err := Collate(samples, true)
	if err != nil {
		t.Fatalf("Collate failed: %v", err)
	}
	feat, targ, err := b.Tensors()
	if err != nil {
		t.Fatalf("Tensors failed: %v", err)
	}
	if feat == nil || targ == nil {
		t.Fatalf("expected non-nil gomlx tensors")
	}
	if b.Seq.Tensor() == nil {
		t.Fatalf("expected non-nil packed sequence tensor")
	}
}

func TestCollateRejectsRaggedFeatures(t *testing.T) {
	samples := []Sample{
		{Features: []float64{1, 2}, Seq: seqOfLen(1, 1)},
		{Features: []float64{3}, Seq: seqOfLen(1, 2)},
	}
	if _, err := Collate(samples, false); err == nil {
		t.Fatalf("expected error for inconsistent feature dimensions")
	}
}
