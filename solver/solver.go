// Package solver reconciles raw per-well model predictions into the final
// submission. Its contract is fixed — an ordered prediction list (one or
// more model passes over the exam table, concatenated) plus the raw exam
// table in, a submission CSV out — while the reconciliation itself stays
// deliberately simple: per-well averaging across model passes, a
// nonnegativity clamp, and an optional proportional rescale against an
// aggregate production cap.
package solver

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/Noofbiz/wellCast/datasets"
)

// Allocator holds the reconciled per-well values for one exam table.
type Allocator struct {
	// Cap, when positive, is the aggregate production constraint: if the
	// reconciled total exceeds it, all values are scaled down
	// proportionally so the total meets the cap exactly.
	Cap float64

	values []float64
}

// New reconciles predictions against the exam table. The prediction list
// must hold a whole number of passes over the table (its length a multiple
// of the row count, in row order within each pass); passes are averaged
// per well and negatives are clamped to zero.
func New(predictions []float64, exam *datasets.Frame) (*Allocator, error) {
	rows := exam.Rows()
	if rows == 0 {
		return nil, fmt.Errorf("exam table has no rows")
	}
	if len(predictions) == 0 || len(predictions)%rows != 0 {
		return nil, fmt.Errorf("prediction count %d is not a multiple of exam rows %d", len(predictions), rows)
	}

	passes := len(predictions) / rows
	values := make([]float64, rows)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for p := 0; p < passes; p++ {
			sum += predictions[p*rows+i]
		}
		v := sum / float64(passes)
		if v < 0 {
			v = 0
		}
		values[i] = v
	}
	return &Allocator{values: values}, nil
}

// Values returns the reconciled per-well predictions in exam row order,
// after applying the aggregate cap if one is set.
func (a *Allocator) Values() []float64 {
	out := append([]float64(nil), a.values...)
	if a.Cap > 0 {
		total := floats.Sum(out)
		if total > a.Cap {
			floats.Scale(a.Cap/total, out)
		}
	}
	return out
}

// Export writes the submission CSV: one row per exam well, positional
// index and predicted gas production.
func (a *Allocator) Export(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create submission file %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"WELL", "PRED_GAS"}); err != nil {
		return fmt.Errorf("failed to write submission header: %w", err)
	}
	for i, v := range a.Values() {
		rec := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(v, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write submission row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush submission file: %w", err)
	}
	return nil
}
