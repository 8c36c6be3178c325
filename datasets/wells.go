package datasets

import (
	"fmt"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Label columns of the training table. Their names carry the "mo." month
// marker, so they are never part of the static feature set.
const (
	FirstSixMonthCol = "First 6 mo. Avg. GAS (Mcf)"
	LastSixMonthCol  = "Last 6 mo. Avg. GAS (Mcf)"
)

// WellDataset indexes a preprocessed frame and presents one Sample per
// well: static features, the encoded production sequence, and (when
// labeled) the normalized target.
//
// Train selects the 36-month horizon; validation and exam datasets use the
// 30-month horizon that is actually available at prediction time. Exam
// marks unlabeled data (targets are zero placeholders). HasSequence is the
// capability flag deciding the batch-assembly strategy: it is fixed at
// construction and never inferred from a model's type.
type WellDataset struct {
	frame       *Frame
	featureCols []string

	Train       bool
	Exam        bool
	HasSequence bool

	// Normalization divisors; zero values fall back to the defaults.
	GasDiv, CndDiv, HrsDiv, GasNorm float64

	// BatchSize and cursor drive the gomlx-style Yield iteration.
	BatchSize int
	cursor    int
}

// NewWellDataset wraps a preprocessed frame. featureCols is the ordered
// list of static feature columns; every name must exist in the frame.
func NewWellDataset(frame *Frame, featureCols []string, train, exam, hasSequence bool) (*WellDataset, error) {
	for _, c := range featureCols {
		if !frame.Has(c) {
			return nil, fmt.Errorf("feature column %q not found in frame", c)
		}
	}
	return &WellDataset{
		frame:       frame,
		featureCols: featureCols,
		Train:       train,
		Exam:        exam,
		HasSequence: hasSequence,
		GasDiv:      DefaultGasDiv,
		CndDiv:      DefaultCndDiv,
		HrsDiv:      DefaultHrsDiv,
		GasNorm:     DefaultGasNorm,
		BatchSize:   4,
	}, nil
}

// Len returns the number of wells.
func (d *WellDataset) Len() int { return d.frame.Rows() }

// FeatureColumns returns the ordered static feature column names.
func (d *WellDataset) FeatureColumns() []string { return d.featureCols }

// FeatureDim returns the static feature vector width.
func (d *WellDataset) FeatureDim() int { return len(d.featureCols) }

// Horizon returns the number of history months read per well.
func (d *WellDataset) Horizon() int {
	if d.Train {
		return TrainHorizon
	}
	return ExamHorizon
}

// At returns the Sample for one well by positional index.
func (d *WellDataset) At(i int) (Sample, error) {
	if i < 0 || i >= d.Len() {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", i, d.Len())
	}

	features := make([]float64, len(d.featureCols))
	for j, name := range d.featureCols {
		vals, err := d.frame.Floats(name)
		if err != nil {
			return Sample{}, fmt.Errorf("feature column %q: %w", name, err)
		}
		features[j] = vals[i]
	}

	gas, cnd, hrs, err := d.history(i)
	if err != nil {
		return Sample{}, err
	}
	seq := EncodeSequence(gas, cnd, hrs, d.GasDiv, d.CndDiv, d.HrsDiv)

	target := 0.0
	if !d.Exam {
		target, err = d.target(i, seq.Empty)
		if err != nil {
			return Sample{}, err
		}
	}

	return Sample{Features: features, Seq: seq, Target: target}, nil
}

// history gathers the per-month gas/condensate/hours arrays over the
// dataset's horizon.
func (d *WellDataset) history(i int) (gas, cnd, hrs []float64, err error) {
	h := d.Horizon()
	gas = make([]float64, h)
	cnd = make([]float64, h)
	hrs = make([]float64, h)
	for m := 1; m <= h; m++ {
		g, err := d.frame.Floats(monthColumn("GAS", m))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("history month %d: %w", m, err)
		}
		c, err := d.frame.Floats(monthColumn("CND", m))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("history month %d: %w", m, err)
		}
		r, err := d.frame.Floats(monthColumn("HRS", m))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("history month %d: %w", m, err)
		}
		gas[m-1] = g[i]
		cnd[m-1] = c[i]
		hrs[m-1] = r[i]
	}
	return gas, cnd, hrs, nil
}

// target selects the label column by the history-length rule: wells with
// no usable history fall back to the first-6-month average, all others use
// the last-6-month average. The value is normalized by GasNorm.
func (d *WellDataset) target(i int, empty bool) (float64, error) {
	col := LastSixMonthCol
	if empty {
		col = FirstSixMonthCol
	}
	vals, err := d.frame.Floats(col)
	if err != nil {
		return 0, fmt.Errorf("target column: %w", err)
	}
	v := vals[i]
	if math.IsNaN(v) {
		return 0, fmt.Errorf("target %q missing for row %d", col, i)
	}
	return v / d.GasNorm, nil
}

// Assemble fetches the given rows and collates them into a Batch using the
// dataset's sequence-batching capability.
func (d *WellDataset) Assemble(indices []int) (*Batch, error) {
	samples := make([]Sample, len(indices))
	for j, idx := range indices {
		s, err := d.At(idx)
		if err != nil {
			return nil, err
		}
		samples[j] = s
	}
	return Collate(samples, d.HasSequence)
}

// Name identifies the dataset for the gomlx train.Dataset interface and
// for checkpoint file naming.
func (d *WellDataset) Name() string {
	if d.HasSequence {
		return "sequence"
	}
	return "feature"
}

// Yield returns the next batch as gomlx tensors: inputs are the stacked
// static features (plus the padded sequence block for sequence datasets),
// labels are the targets. Iteration is sequential over the dataset in row
// order; Restart resets it.
func (d *WellDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= d.Len() {
		return nil, nil, nil, fmt.Errorf("dataset exhausted; call Restart")
	}
	end := d.cursor + d.BatchSize
	if end > d.Len() {
		end = d.Len()
	}
	indices := make([]int, 0, end-d.cursor)
	for i := d.cursor; i < end; i++ {
		indices = append(indices, i)
	}
	d.cursor = end

	batch, err := d.Assemble(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	feat, targ, err := batch.Tensors()
	if err != nil {
		return nil, nil, nil, err
	}
	inputs = []*tensors.Tensor{feat}
	if batch.Seq != nil {
		inputs = append(inputs, batch.Seq.Tensor())
	}
	labels = []*tensors.Tensor{targ}
	return nil, inputs, labels, nil
}

// Restart resets the Yield cursor for a new epoch.
func (d *WellDataset) Restart() error {
	d.cursor = 0
	return nil
}
