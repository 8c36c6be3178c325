package datasets

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// PipelineConfig carries everything the preprocessing pipeline needs. It
// is passed by value; the pipeline holds no process-wide state.
type PipelineConfig struct {
	// Norm maps a column name to its divisor. A named column absent from
	// the frame is a fatal data-quality error.
	Norm map[string]float64

	// Numeric and Categorical list the static columns to impute (mean /
	// mode respectively). Categorical columns are one-hot encoded.
	Numeric     []string
	Categorical []string

	// Remove lists columns dropped before any other step. Optional.
	Remove []string

	// Ratio is the validation fraction of the train/validation split.
	Ratio float64

	// Seed drives the split sampling; a fixed seed makes the pipeline
	// idempotent.
	Seed int64

	// HasSequence marks the produced datasets as requiring sequence
	// batching.
	HasSequence bool

	// Augment is a pure frame transform applied after normalization;
	// nil means identity. Reserved for deriving or elongating records.
	Augment func(*Frame) (*Frame, error)
}

// Preprocess runs the full training pipeline on a raw table: drop excluded
// columns, impute, one-hot encode, normalize, augment, then split into
// train and validation datasets (floor(rows*Ratio) rows sampled uniformly
// without replacement as validation, both partitions re-indexed
// contiguously).
func Preprocess(raw *Frame, cfg PipelineConfig) (train, valid *WellDataset, err error) {
	f, err := transform(raw, cfg)
	if err != nil {
		return nil, nil, err
	}

	features := featureColumns(f)
	trainRows, validRows := splitRows(f.Rows(), cfg.Ratio, cfg.Seed)

	trainFrame, err := f.Select(trainRows)
	if err != nil {
		return nil, nil, fmt.Errorf("train partition: %w", err)
	}
	validFrame, err := f.Select(validRows)
	if err != nil {
		return nil, nil, fmt.Errorf("validation partition: %w", err)
	}

	train, err = NewWellDataset(trainFrame, features, true, false, cfg.HasSequence)
	if err != nil {
		return nil, nil, err
	}
	valid, err = NewWellDataset(validFrame, features, false, false, cfg.HasSequence)
	if err != nil {
		return nil, nil, err
	}
	return train, valid, nil
}

// ExamDataset aligns a raw exam table with the training table's encoding.
// The exam rows are stacked on top of the train rows, the combined frame
// runs through the same transform (so the one-hot column universe is
// identical), then only the exam rows are kept and re-indexed. Columns
// whose name contains a currency marker ($) are train-only decision fields
// and are stripped so they can never reach exam feature vectors.
func ExamDataset(trainRaw, examRaw *Frame, cfg PipelineConfig) (*WellDataset, error) {
	combined, err := Concat(examRaw, trainRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to align exam with train table: %w", err)
	}
	f, err := transform(combined, cfg)
	if err != nil {
		return nil, err
	}

	examRows := make([]int, examRaw.Rows())
	for i := range examRows {
		examRows[i] = i
	}
	examFrame, err := f.Select(examRows)
	if err != nil {
		return nil, fmt.Errorf("exam partition: %w", err)
	}
	examFrame = examFrame.DropMatching("$")

	return NewWellDataset(examFrame, featureColumns(examFrame), false, true, cfg.HasSequence)
}

// transform applies steps 1-5 of the pipeline: drop, impute, one-hot,
// normalize, augment. The input frame is never modified.
func transform(raw *Frame, cfg PipelineConfig) (*Frame, error) {
	f := raw.Clone()
	if len(cfg.Remove) > 0 {
		f = f.Drop(cfg.Remove...)
	}
	if err := impute(f, cfg.Numeric, cfg.Categorical); err != nil {
		return nil, err
	}
	if err := oneHot(f, cfg.Categorical); err != nil {
		return nil, err
	}
	if err := normalize(f, cfg.Norm); err != nil {
		return nil, err
	}
	if cfg.Augment != nil {
		out, err := cfg.Augment(f)
		if err != nil {
			return nil, fmt.Errorf("augmentation hook: %w", err)
		}
		f = out
	}
	return f, nil
}

// impute fills missing numeric cells with the column mean and missing
// categorical cells with the column mode. A column that is entirely
// missing has no defined mean/mode and is a data-quality error.
func impute(f *Frame, numeric, categorical []string) error {
	for _, name := range numeric {
		if !f.Has(name) {
			continue
		}
		vals, err := f.Floats(name)
		if err != nil {
			return fmt.Errorf("impute %q: %w", name, err)
		}
		mean, ok := columnMean(vals)
		if !ok {
			return fmt.Errorf("cannot impute column %q: all values missing", name)
		}
		filled := append([]float64(nil), vals...)
		for i, v := range filled {
			if math.IsNaN(v) {
				filled[i] = mean
			}
		}
		f.setColumn(NumericColumn(name, filled))
	}
	for _, name := range categorical {
		if !f.Has(name) {
			continue
		}
		vals, err := f.Strings(name)
		if err != nil {
			return fmt.Errorf("impute %q: %w", name, err)
		}
		mode, ok := columnMode(vals)
		if !ok {
			return fmt.Errorf("cannot impute column %q: all values missing", name)
		}
		filled := append([]string(nil), vals...)
		for i, v := range filled {
			if v == "" {
				filled[i] = mode
			}
		}
		f.setColumn(StringColumn(name, filled))
	}
	return nil
}

// oneHot replaces each categorical column with one indicator column per
// observed category, named COL_value. Categories are sorted so the column
// layout is deterministic and identical across train and exam encodings.
func oneHot(f *Frame, categorical []string) error {
	for _, name := range categorical {
		if !f.Has(name) {
			continue
		}
		vals, err := f.Strings(name)
		if err != nil {
			return fmt.Errorf("one-hot %q: %w", name, err)
		}
		f.removeColumn(name)
		for _, cat := range sortedCategories(vals) {
			ind := make([]float64, len(vals))
			for i, v := range vals {
				if v == cat {
					ind[i] = 1
				}
			}
			f.setColumn(NumericColumn(fmt.Sprintf("%s_%s", name, cat), ind))
		}
	}
	return nil
}

// normalize divides each configured column by its divisor. A configured
// column missing from the frame is a fatal error, not a silent skip.
func normalize(f *Frame, norm map[string]float64) error {
	for name, div := range norm {
		if !f.Has(name) {
			return fmt.Errorf("normalization field %q not present in frame", name)
		}
		vals, err := f.Floats(name)
		if err != nil {
			return fmt.Errorf("normalize %q: %w", name, err)
		}
		scaled := make([]float64, len(vals))
		for i, v := range vals {
			scaled[i] = v / div
		}
		f.setColumn(NumericColumn(name, scaled))
	}
	return nil
}

// featureColumns selects the static modeling features: every numeric
// column whose name references no month marker. This excludes the raw
// per-month history columns (consumed only by the sequence encoder) and
// the "mo."-labeled aggregate columns.
func featureColumns(f *Frame) []string {
	var out []string
	for _, c := range f.cols {
		if !c.Numeric {
			continue
		}
		if strings.Contains(c.Name, "MONTH") || strings.Contains(c.Name, "mo.") {
			continue
		}
		out = append(out, c.Name)
	}
	return out
}

// splitRows samples floor(n*ratio) distinct validation rows uniformly at
// random; the remainder is train. Row order within each partition follows
// the original table order.
func splitRows(n int, ratio float64, seed int64) (train, valid []int) {
	nValid := int(float64(n) * ratio)
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	isValid := make([]bool, n)
	for _, i := range perm[:nValid] {
		isValid[i] = true
	}
	for i := 0; i < n; i++ {
		if isValid[i] {
			valid = append(valid, i)
		} else {
			train = append(train, i)
		}
	}
	return train, valid
}
