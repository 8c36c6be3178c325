package train

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Noofbiz/wellCast/datasets"
)

// loopDataset builds a minimal labeled dataset: VAL holds the row index,
// both label columns are zero (so the normalized target is zero), and
// every well has one active month.
func loopDataset(t *testing.T, n int, train, exam bool) *datasets.WellDataset {
	t.Helper()
	vals := make([]float64, n)
	zeros := make([]float64, n)
	active := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
		active[i] = 5
	}

	cols := []datasets.Column{
		datasets.NumericColumn("VAL", vals),
		datasets.NumericColumn(datasets.FirstSixMonthCol, zeros),
		datasets.NumericColumn(datasets.LastSixMonthCol, zeros),
	}
	horizon := datasets.ExamHorizon
	if train {
		horizon = datasets.TrainHorizon
	}
	for m := 1; m <= horizon; m++ {
		h := zeros
		if m == 1 {
			h = active
		}
		cols = append(cols,
			datasets.NumericColumn(fmt.Sprintf("GAS_MONTH_%d", m), zeros),
			datasets.NumericColumn(fmt.Sprintf("CND_MONTH_%d", m), zeros),
			datasets.NumericColumn(fmt.Sprintf("HRS_MONTH_%d", m), h),
		)
	}

	f, err := datasets.NewFrame(cols...)
	require.NoError(t, err)
	ds, err := datasets.NewWellDataset(f, []string{"VAL"}, train, exam, false)
	require.NoError(t, err)
	return ds
}

// scriptModel emits its current parameter for every sample. Each Backward
// advances the parameter to the next scripted value, so per-epoch
// validation losses follow the script exactly (targets are zero).
type scriptModel struct {
	param  float64
	script []float64
	step   int
}

func (m *scriptModel) Name() string { return "script" }

func (m *scriptModel) OutputScale() float64 { return 1 }

func (m *scriptModel) Forward(b *datasets.Batch) ([]float64, error) {
	out := make([]float64, b.Size())
	for i := range out {
		out[i] = m.param
	}
	return out, nil
}

func (m *scriptModel) Backward([]float64) error {
	if m.step < len(m.script) {
		m.param = m.script[m.step]
		m.step++
	}
	return nil
}

func (m *scriptModel) MarshalParams() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.param, 'g', -1, 64)), nil
}

func (m *scriptModel) UnmarshalParams(data []byte) error {
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	m.param = v
	return nil
}

func TestTrainEarlyStopsAndRestoresBest(t *testing.T) {
	trainDS := loopDataset(t, 2, true, false)
	validDS := loopDataset(t, 2, false, false)

	// valid losses per epoch: 1, 4, 4 -> improvement, then patience runs out
	m := &scriptModel{param: 9, script: []float64{1, 2, 2}}
	cfg := Config{
		MaxEpoch:  10,
		BatchSize: 4,
		Patience:  2,
		Seed:      1,
		SaveDir:   t.TempDir(),
	}

	hist, err := Train(m, trainDS, validDS, cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	require.Equal(t, 3, hist.Epochs, "stop after patience non-improving epochs")
	require.Equal(t, []float64{1, 4, 4}, hist.ValidLoss)
	require.Equal(t, 1.0, hist.BestValid, "metric comes from the restored best checkpoint")
	require.Equal(t, 1.0, m.param, "model must carry the best parameters after Train")

	if _, err := os.Stat(CheckpointPath(cfg.SaveDir, trainDS)); err != nil {
		t.Fatalf("checkpoint file missing: %v", err)
	}
}

func TestTrainHonorsEpochCeiling(t *testing.T) {
	trainDS := loopDataset(t, 2, true, false)
	validDS := loopDataset(t, 2, false, false)

	m := &scriptModel{param: 9, script: []float64{3, 2, 1, 0.5}}
	cfg := Config{
		MaxEpoch:  2,
		BatchSize: 4,
		Patience:  50,
		Seed:      1,
		SaveDir:   t.TempDir(),
	}

	calls := 0
	hist, err := Train(m, trainDS, validDS, cfg, zerolog.Nop(), func(epoch int, trainLoss, validLoss float64) {
		calls++
	})
	require.NoError(t, err)
	require.Equal(t, 2, hist.Epochs)
	require.Equal(t, 2, calls, "hook runs once per epoch")
	require.Equal(t, 4.0, hist.BestValid)
}

func TestTrainEmptyDatasetIsError(t *testing.T) {
	trainDS := loopDataset(t, 0, true, false)
	validDS := loopDataset(t, 2, false, false)
	m := &scriptModel{param: 1, script: []float64{1}}
	cfg := Config{MaxEpoch: 1, BatchSize: 4, Patience: 1, SaveDir: t.TempDir()}
	_, err := Train(m, trainDS, validDS, cfg, zerolog.Nop(), nil)
	require.Error(t, err)
}

// echoModel predicts each well's first static feature.
type echoModel struct{}

func (echoModel) Name() string { return "echo" }

func (echoModel) OutputScale() float64 { return datasets.DefaultGasNorm }

func (echoModel) Backward([]float64) error { return nil }

func (echoModel) Forward(b *datasets.Batch) ([]float64, error) {
	out := make([]float64, b.Size())
	for i := range out {
		out[i] = b.Features[i][0]
	}
	return out, nil
}

func (echoModel) MarshalParams() ([]byte, error) { return nil, nil }

func (echoModel) UnmarshalParams([]byte) error { return nil }

func TestEvaluateOrderAndScale(t *testing.T) {
	ds := loopDataset(t, 10, false, true)
	cfg := Config{BatchSize: 4}

	preds, err := Evaluate(echoModel{}, ds, cfg)
	require.NoError(t, err)
	require.Len(t, preds, 10)
	for i, p := range preds {
		require.Equal(t, float64(i)*datasets.DefaultGasNorm, p,
			"prediction %d must stay in row order, de-normalized", i)
	}
}

func TestCheckpointPathFollowsCapability(t *testing.T) {
	feat := loopDataset(t, 1, true, false)
	require.Equal(t,
		filepath.Join("run", "best_params_feature.pkl"),
		CheckpointPath("run", feat))

	seq := loopDataset(t, 1, true, false)
	seq.HasSequence = true
	require.Equal(t,
		filepath.Join("run", "best_params_sequence.pkl"),
		CheckpointPath("run", seq))
}
