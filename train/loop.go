package train

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Noofbiz/wellCast/datasets"
	"github.com/Noofbiz/wellCast/models"
)

// Model is the contract the training and evaluation loops require from a
// regressor. Forward caches whatever Backward needs; Backward consumes
// dLoss/dOutput per sample and applies one optimizer step. OutputScale is
// the constant multiplying raw outputs back into production units.
type Model interface {
	Name() string
	Forward(b *datasets.Batch) ([]float64, error)
	Backward(grad []float64) error
	OutputScale() float64
	models.ParamMarshaler
	models.ParamUnmarshaler
}

// History records one training run for reporting and plotting.
type History struct {
	TrainLoss []float64
	ValidLoss []float64
	BestValid float64
	Epochs    int
}

// EpochHook is called after each epoch with the epoch index and the two
// mean losses; the CLI uses it to drive a progress bar. May be nil.
type EpochHook func(epoch int, trainLoss, validLoss float64)

// CheckpointPath derives the parameter file location for a dataset's
// batching capability: sequence datasets train the sequence model.
func CheckpointPath(saveDir string, ds *datasets.WellDataset) string {
	return filepath.Join(saveDir, fmt.Sprintf("best_params_%s.pkl", ds.Name()))
}

// process runs one full pass over the dataset in batches. When update is
// set, each batch is followed by a backward pass and an optimizer step.
// The returned loss is the summed squared error divided by the dataset
// size. Batch order is shuffled through rng when one is provided.
func process(m Model, ds *datasets.WellDataset, batchSize int, rng *rand.Rand, update bool) (float64, error) {
	n := ds.Len()
	if n == 0 {
		return 0, fmt.Errorf("dataset has no examples")
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if rng != nil {
		rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	total := 0.0
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batch, err := ds.Assemble(indices[start:end])
		if err != nil {
			return 0, fmt.Errorf("assemble batch: %w", err)
		}

		out, err := m.Forward(batch)
		if err != nil {
			return 0, fmt.Errorf("forward pass: %w", err)
		}

		grad := make([]float64, len(out))
		for i, o := range out {
			diff := o - batch.Targets[i]
			total += diff * diff
			grad[i] = 2 * diff
		}

		if update {
			if err := m.Backward(grad); err != nil {
				return 0, fmt.Errorf("backward pass: %w", err)
			}
		}
	}
	return total / float64(n), nil
}

// Train runs the full training loop: per epoch a gradient pass over the
// train partition and an update-free pass over the validation partition,
// an early-stopping scheduler deciding checkpointing and termination, and
// a final restore of the best checkpoint whose validation loss becomes the
// run's reported metric.
func Train(m Model, trainDS, validDS *datasets.WellDataset, cfg Config, lg zerolog.Logger, hook EpochHook) (*History, error) {
	lg.Info().
		Str("model", m.Name()).
		Int("train", trainDS.Len()).
		Int("valid", validDS.Len()).
		Msg("starting training")

	paramPath := CheckpointPath(cfg.SaveDir, trainDS)
	rng := rand.New(rand.NewSource(cfg.Seed))
	sched := NewScheduler(cfg.Patience)
	hist := &History{}
	stopped := false

	for epoch := 0; epoch < cfg.MaxEpoch && !stopped; epoch++ {
		trainLoss, err := process(m, trainDS, cfg.BatchSize, rng, true)
		if err != nil {
			return nil, fmt.Errorf("epoch %d train pass: %w", epoch, err)
		}
		validLoss, err := process(m, validDS, cfg.BatchSize, rng, false)
		if err != nil {
			return nil, fmt.Errorf("epoch %d validation pass: %w", epoch, err)
		}

		hist.TrainLoss = append(hist.TrainLoss, trainLoss)
		hist.ValidLoss = append(hist.ValidLoss, validLoss)
		hist.Epochs = epoch + 1

		lg.Info().
			Int("epoch", epoch).
			Float64("train_rmse", math.Sqrt(trainLoss)).
			Float64("valid_rmse", math.Sqrt(validLoss)).
			Msg("epoch complete")
		if hook != nil {
			hook(epoch, trainLoss, validLoss)
		}

		switch sched.Observe(validLoss) {
		case Improved:
			if err := models.SaveParams(paramPath, m); err != nil {
				return nil, fmt.Errorf("checkpoint save: %w", err)
			}
			lg.Info().Str("path", paramPath).Msg("best model so far, parameters saved")
		case ShouldStop:
			lg.Info().
				Int("patience", cfg.Patience).
				Msg("epochs without improvement, early stopping")
			stopped = true
		}
	}

	// The run's metric comes from the best checkpoint, not the last
	// epoch. A missing or corrupt checkpoint is fatal.
	if err := models.LoadParams(paramPath, m); err != nil {
		return nil, fmt.Errorf("restore best checkpoint: %w", err)
	}
	best, err := process(m, validDS, cfg.BatchSize, nil, false)
	if err != nil {
		return nil, fmt.Errorf("final validation pass: %w", err)
	}
	hist.BestValid = best
	lg.Info().Float64("best_valid_rmse", math.Sqrt(best)).Msg("training finished")
	return hist, nil
}

// Evaluate runs inference-only forward passes over the dataset in fixed
// row order and returns one de-normalized prediction per row, concatenated
// across batches in iteration order.
func Evaluate(m Model, ds *datasets.WellDataset, cfg Config) ([]float64, error) {
	n := ds.Len()
	preds := make([]float64, 0, n)
	for start := 0; start < n; start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > n {
			end = n
		}
		indices := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			indices = append(indices, i)
		}
		batch, err := ds.Assemble(indices)
		if err != nil {
			return nil, fmt.Errorf("assemble batch: %w", err)
		}
		out, err := m.Forward(batch)
		if err != nil {
			return nil, fmt.Errorf("forward pass: %w", err)
		}
		for _, o := range out {
			preds = append(preds, o*m.OutputScale())
		}
	}
	return preds, nil
}
