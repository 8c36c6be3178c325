package datasets

import (
	"math"
	"strings"
	"testing"
)

// makeRawFrame builds a raw 36-month table with n rows: VAL carries the
// row index (with optional NaN holes), OPERATOR cycles through ops.
func makeRawFrame(t *testing.T, n int, ops []string, nanRows ...int) *Frame {
	t.Helper()
	vals := make([]float64, n)
	operators := make([]string, n)
	for i := range vals {
		vals[i] = float64(i)
		operators[i] = ops[i%len(ops)]
	}
	for _, r := range nanRows {
		vals[r] = math.NaN()
	}
	return makeWellFrame(t, vals, operators,
		constVec(n, 5), constVec(n, 50), constVec(n, 5),
		constVec(n, 1e5), constVec(n, 2e5))
}

func pipelineConfig() PipelineConfig {
	return PipelineConfig{
		Norm:        map[string]float64{"VAL": 10},
		Numeric:     []string{"VAL"},
		Categorical: []string{"OPERATOR"},
		Ratio:       0.25,
		Seed:        7,
	}
}

func TestPreprocessSplitSizes(t *testing.T) {
	raw := makeRawFrame(t, 20, []string{"a", "b"})
	trainDS, validDS, err := Preprocess(raw, pipelineConfig())
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if validDS.Len() != 5 {
		t.Fatalf("validation size: want floor(20*0.25)=5, got %d", validDS.Len())
	}
	if trainDS.Len()+validDS.Len() != 20 {
		t.Fatalf("partitions must cover the table: %d + %d != 20", trainDS.Len(), validDS.Len())
	}
	if !trainDS.Train || validDS.Train {
		t.Fatalf("partition roles mismatch")
	}
}

func TestPreprocessPartitionsDisjoint(t *testing.T) {
	raw := makeRawFrame(t, 16, []string{"a"})
	cfg := pipelineConfig()
	cfg.Norm = nil // keep VAL values identifiable
	trainDS, validDS, err := Preprocess(raw, cfg)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	seen := make(map[float64]bool)
	collect := func(ds *WellDataset) {
		for i := 0; i < ds.Len(); i++ {
			s, err := ds.At(i)
			if err != nil {
				t.Fatalf("At failed: %v", err)
			}
			v := s.Features[indexOf(t, ds.FeatureColumns(), "VAL")]
			if seen[v] {
				t.Fatalf("row %v appears in both partitions", v)
			}
			seen[v] = true
		}
	}
	collect(trainDS)
	collect(validDS)
	if len(seen) != 16 {
		t.Fatalf("expected all 16 rows covered, got %d", len(seen))
	}
}

func indexOf(t *testing.T, cols []string, name string) int {
	t.Helper()
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	t.Fatalf("column %q not in feature list %v", name, cols)
	return -1
}

func TestPreprocessIdempotentUnderSeed(t *testing.T) {
	raw := makeRawFrame(t, 12, []string{"a", "b", "c"})
	cfg := pipelineConfig()

	t1, v1, err := Preprocess(raw, cfg)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	t2, v2, err := Preprocess(raw, cfg)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if t1.Len() != t2.Len() || v1.Len() != v2.Len() {
		t.Fatalf("partition sizes differ between identical runs")
	}
	for i := 0; i < v1.Len(); i++ {
		a, _ := v1.At(i)
		b, _ := v2.At(i)
		for j := range a.Features {
			if a.Features[j] != b.Features[j] {
				t.Fatalf("validation row %d differs between identical runs", i)
			}
		}
	}
}

func TestPreprocessImputesAndNormalizes(t *testing.T) {
	raw := makeRawFrame(t, 4, []string{"a"}, 3) // VAL = [0,1,2,NaN]
	cfg := pipelineConfig()
	cfg.Ratio = 0 // keep every row in train, in table order

	trainDS, _, err := Preprocess(raw, cfg)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	idx := indexOf(t, trainDS.FeatureColumns(), "VAL")
	s, err := trainDS.At(3)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	// mean(0,1,2)=1, then normalized by 10
	if !almostEqual(s.Features[idx], 0.1) {
		t.Fatalf("imputed+normalized VAL: want 0.1, got %v", s.Features[idx])
	}
}

func TestPreprocessOneHotColumns(t *testing.T) {
	raw := makeRawFrame(t, 6, []string{"b", "a"})
	trainDS, _, err := Preprocess(raw, pipelineConfig())
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	cols := trainDS.FeatureColumns()
	ia := indexOf(t, cols, "OPERATOR_a")
	ib := indexOf(t, cols, "OPERATOR_b")
	if ia > ib {
		t.Fatalf("one-hot columns must be in sorted category order: %v", cols)
	}
	for _, c := range cols {
		if strings.Contains(c, "MONTH") || strings.Contains(c, "mo.") {
			t.Fatalf("month-marked column %q leaked into features", c)
		}
	}
}

func TestPreprocessAllMissingColumnFatal(t *testing.T) {
	raw := makeRawFrame(t, 3, []string{"a"}, 0, 1, 2)
	if _, _, err := Preprocess(raw, pipelineConfig()); err == nil {
		t.Fatalf("expected data-quality error for all-missing column")
	}
}

func TestPreprocessMissingNormFieldFatal(t *testing.T) {
	raw := makeRawFrame(t, 3, []string{"a"})
	cfg := pipelineConfig()
	cfg.Norm = map[string]float64{"NOT_THERE": 10}
	if _, _, err := Preprocess(raw, cfg); err == nil {
		t.Fatalf("expected error for normalization field absent from frame")
	}
}

func TestPreprocessAugmentHook(t *testing.T) {
	raw := makeRawFrame(t, 4, []string{"a"})
	cfg := pipelineConfig()
	called := false
	cfg.Augment = func(f *Frame) (*Frame, error) {
		called = true
		return f, nil
	}
	if _, _, err := Preprocess(raw, cfg); err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if !called {
		t.Fatalf("augmentation hook was not applied")
	}
}

func TestExamDatasetAlignment(t *testing.T) {
	trainRaw := makeRawFrame(t, 8, []string{"a", "b"})
	// train-only decision field
	trainRaw.setColumn(NumericColumn("PRICE $ PER MCF", constVec(8, 2.5)))

	// exam table: 30-month horizon, no labels, categories subset of train
	examCols := []Column{
		NumericColumn("VAL", []float64{100, 200}),
		StringColumn("OPERATOR", []string{"b", "a"}),
	}
	for m := 1; m <= ExamHorizon; m++ {
		examCols = append(examCols,
			NumericColumn(monthColumn("GAS", m), constVec(2, 0)),
			NumericColumn(monthColumn("CND", m), constVec(2, 0)),
			NumericColumn(monthColumn("HRS", m), []float64{3, 0}),
		)
	}
	examRaw, err := NewFrame(examCols...)
	if err != nil {
		t.Fatalf("exam frame: %v", err)
	}

	cfg := pipelineConfig()
	trainDS, _, err := Preprocess(trainRaw, cfg)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	examDS, err := ExamDataset(trainRaw, examRaw, cfg)
	if err != nil {
		t.Fatalf("ExamDataset failed: %v", err)
	}
	if !examDS.Exam || examDS.Train {
		t.Fatalf("exam dataset flags wrong")
	}
	if examDS.Len() != 2 {
		t.Fatalf("exam dataset must keep only the exam rows, got %d", examDS.Len())
	}

	// feature sets identical modulo the dropped decision columns
	want := make(map[string]bool)
	for _, c := range trainDS.FeatureColumns() {
		if !strings.Contains(c, "$") {
			want[c] = true
		}
	}
	got := make(map[string]bool)
	for _, c := range examDS.FeatureColumns() {
		if strings.Contains(c, "$") {
			t.Fatalf("decision column %q reached exam features", c)
		}
		got[c] = true
	}
	if len(got) != len(want) {
		t.Fatalf("feature sets differ: train %v, exam %v", want, got)
	}
	for c := range want {
		if !got[c] {
			t.Fatalf("exam features missing %q", c)
		}
	}

	// exam rows keep their own values and order
	s, err := examDS.At(0)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	idx := indexOf(t, examDS.FeatureColumns(), "VAL")
	if !almostEqual(s.Features[idx], 10) { // 100 / norm divisor 10
		t.Fatalf("exam row 0 VAL: want 10, got %v", s.Features[idx])
	}
}
