package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
)

// Frame is an in-memory table loaded from a well-production CSV. Rows are
// addressed positionally (wells carry no identifier column); columns are
// typed either numeric (float64, NaN marks a missing cell) or string (""
// marks a missing cell). Type detection happens once at load: a column is
// numeric when every non-empty cell parses as a float.
//
// All pipeline operations (Drop, Select, Concat, imputation, one-hot
// encoding, normalization) produce new frames or work on private clones;
// a loaded frame is never mutated in place.
type Frame struct {
	cols  []Column
	index map[string]int
	rows  int
}

// Column is a single typed column of a Frame.
type Column struct {
	Name    string
	Numeric bool
	Floats  []float64 // populated when Numeric
	Strings []string  // populated when !Numeric
}

// NumericColumn builds a numeric column; useful for constructing frames in
// augmentation hooks and tests.
func NumericColumn(name string, vals []float64) Column {
	return Column{Name: name, Numeric: true, Floats: vals}
}

// StringColumn builds a categorical (string) column.
func StringColumn(name string, vals []string) Column {
	return Column{Name: name, Strings: vals}
}

// NewFrame assembles a frame from columns. All columns must have the same
// length and distinct names.
func NewFrame(cols ...Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int)}
	for i, c := range cols {
		n := len(c.Floats)
		if !c.Numeric {
			n = len(c.Strings)
		}
		if i == 0 {
			f.rows = n
		} else if n != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, n, f.rows)
		}
		if _, ok := f.index[c.Name]; ok {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		f.index[c.Name] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// LoadCSV reads a CSV file from disk into a Frame.
func LoadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()
	f, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", path, err)
	}
	return f, nil
}

// ReadCSV parses CSV data with a header row into a Frame.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	cells := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("row has %d fields, header has %d", len(record), len(header))
		}
		for i, cell := range record {
			cells[i] = append(cells[i], strings.TrimSpace(cell))
		}
	}

	cols := make([]Column, len(header))
	for i, name := range names {
		cols[i] = typeColumn(name, cells[i])
	}
	return NewFrame(cols...)
}

// typeColumn decides numeric vs string for one column of raw cells.
func typeColumn(name string, cells []string) Column {
	numeric := true
	for _, c := range cells {
		if c == "" {
			continue
		}
		if _, err := parseFloat64(c); err != nil {
			numeric = false
			break
		}
	}
	if !numeric {
		vals := make([]string, len(cells))
		copy(vals, cells)
		return StringColumn(name, vals)
	}
	vals := make([]float64, len(cells))
	for i, c := range cells {
		if c == "" {
			vals[i] = math.NaN()
			continue
		}
		v, _ := parseFloat64(c)
		vals[i] = v
	}
	return NumericColumn(name, vals)
}

// Rows returns the number of rows.
func (f *Frame) Rows() int { return f.rows }

// ColumnNames returns column names in frame order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, error) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, fmt.Errorf("column %q not found", name)
	}
	return f.cols[i], nil
}

// Floats returns the values of a numeric column.
func (f *Frame) Floats(name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if !c.Numeric {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	return c.Floats, nil
}

// Strings returns the values of a string column.
func (f *Frame) Strings(name string) ([]string, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Numeric {
		return nil, fmt.Errorf("column %q is not a string column", name)
	}
	return c.Strings, nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	cols := make([]Column, len(f.cols))
	for i, c := range f.cols {
		nc := Column{Name: c.Name, Numeric: c.Numeric}
		if c.Numeric {
			nc.Floats = append([]float64(nil), c.Floats...)
		} else {
			nc.Strings = append([]string(nil), c.Strings...)
		}
		cols[i] = nc
	}
	out, _ := NewFrame(cols...)
	return out
}

// Drop returns a copy of the frame without the named columns. Names not
// present are ignored, matching the optional remove-features list.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var cols []Column
	for _, c := range f.Clone().cols {
		if skip[c.Name] {
			continue
		}
		cols = append(cols, c)
	}
	out, _ := NewFrame(cols...)
	return out
}

// DropMatching returns a copy of the frame without any column whose name
// contains the given substring.
func (f *Frame) DropMatching(substr string) *Frame {
	var names []string
	for _, c := range f.cols {
		if strings.Contains(c.Name, substr) {
			names = append(names, c.Name)
		}
	}
	return f.Drop(names...)
}

// Select returns a new frame containing the given rows, re-indexed
// contiguously in the order provided.
func (f *Frame) Select(rows []int) (*Frame, error) {
	for _, r := range rows {
		if r < 0 || r >= f.rows {
			return nil, fmt.Errorf("row %d out of range [0, %d)", r, f.rows)
		}
	}
	cols := make([]Column, len(f.cols))
	for i, c := range f.cols {
		nc := Column{Name: c.Name, Numeric: c.Numeric}
		if c.Numeric {
			nc.Floats = make([]float64, len(rows))
			for j, r := range rows {
				nc.Floats[j] = c.Floats[r]
			}
		} else {
			nc.Strings = make([]string, len(rows))
			for j, r := range rows {
				nc.Strings[j] = c.Strings[r]
			}
		}
		cols[i] = nc
	}
	return NewFrame(cols...)
}

// Concat stacks b's rows under a's. The column set is the union of both
// frames; cells absent from one side are missing (NaN / ""). A column typed
// differently on the two sides is an error. Column order: a's columns first,
// then b's extras in b's order.
func Concat(a, b *Frame) (*Frame, error) {
	names := a.ColumnNames()
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range b.ColumnNames() {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}

	total := a.rows + b.rows
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		ca, okA := a.index[name]
		cb, okB := b.index[name]
		var colA, colB *Column
		if okA {
			colA = &a.cols[ca]
		}
		if okB {
			colB = &b.cols[cb]
		}
		if colA != nil && colB != nil && colA.Numeric != colB.Numeric {
			return nil, fmt.Errorf("column %q typed differently in the two frames", name)
		}
		numeric := (colA != nil && colA.Numeric) || (colA == nil && colB.Numeric)
		if numeric {
			vals := make([]float64, 0, total)
			vals = appendFloats(vals, colA, a.rows)
			vals = appendFloats(vals, colB, b.rows)
			cols = append(cols, NumericColumn(name, vals))
		} else {
			vals := make([]string, 0, total)
			vals = appendStrings(vals, colA, a.rows)
			vals = appendStrings(vals, colB, b.rows)
			cols = append(cols, StringColumn(name, vals))
		}
	}
	return NewFrame(cols...)
}

func appendFloats(dst []float64, c *Column, n int) []float64 {
	if c == nil {
		for i := 0; i < n; i++ {
			dst = append(dst, math.NaN())
		}
		return dst
	}
	return append(dst, c.Floats...)
}

func appendStrings(dst []string, c *Column, n int) []string {
	if c == nil {
		for i := 0; i < n; i++ {
			dst = append(dst, "")
		}
		return dst
	}
	return append(dst, c.Strings...)
}

// setColumn replaces or appends a column in place (internal pipeline use).
func (f *Frame) setColumn(c Column) {
	if i, ok := f.index[c.Name]; ok {
		f.cols[i] = c
		return
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
}

// removeColumn drops a column in place (internal pipeline use).
func (f *Frame) removeColumn(name string) {
	i, ok := f.index[name]
	if !ok {
		return
	}
	f.cols = append(f.cols[:i], f.cols[i+1:]...)
	delete(f.index, name)
	for n, j := range f.index {
		if j > i {
			f.index[n] = j - 1
		}
	}
}

// sortedCategories returns the distinct non-missing values of a string
// column in sorted order. Sorting keeps one-hot column layout deterministic
// across runs and across train/exam encodings.
func sortedCategories(vals []string) []string {
	set := make(map[string]bool)
	for _, v := range vals {
		if v == "" {
			continue
		}
		set[v] = true
	}
	cats := make([]string, 0, len(set))
	for v := range set {
		cats = append(cats, v)
	}
	sort.Strings(cats)
	return cats
}
