package train

// Config carries the hyperparameters of one training run. It is a plain
// value passed into Train, Evaluate and the preprocessing call sites; no
// package-level mutable state is involved.
type Config struct {
	// MaxEpoch is the epoch ceiling when early stopping never triggers.
	MaxEpoch int

	// BatchSize for both training and evaluation batches.
	BatchSize int

	// Patience is the number of consecutive non-improving epochs allowed
	// before early stopping.
	Patience int

	// Ratio is the validation fraction of the train/validation split.
	Ratio float64

	// LearningRate and WeightDecay are forwarded to model constructors.
	LearningRate float64
	WeightDecay  float64

	// Seed drives batch shuffling (and, at the call site, the split).
	Seed int64

	// SaveDir is the run directory receiving checkpoints, logs and plots.
	SaveDir string
}

// DefaultConfig returns the standard competition run configuration.
func DefaultConfig() Config {
	return Config{
		MaxEpoch:     400,
		BatchSize:    4,
		Patience:     50,
		Ratio:        0.2,
		LearningRate: 1e-4,
		WeightDecay:  5e-4,
		Seed:         1,
		SaveDir:      "saved_params",
	}
}

// Debug shrinks the run for quick smoke tests.
func (c Config) Debug() Config {
	c.MaxEpoch = 5
	c.Patience = 1
	return c
}
