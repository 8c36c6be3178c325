// Command wellcast trains the two production-forecast regressors (static
// feature MLP and sequence LSTM) on a well-production table, predicts the
// exam table with both, and hands the concatenated predictions to the
// allocation solver for the submission file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/wellCast/datasets"
	"github.com/Noofbiz/wellCast/models"
	"github.com/Noofbiz/wellCast/solver"
	"github.com/Noofbiz/wellCast/train"
)

// defaultLoaderYAML is written next to the run artifacts when the user did
// not provide a --loader path, so the configuration actually used is
// always available on disk.
const defaultLoaderYAML = `norm_factor_dict:
  SURFACE_LATITUDE: 100
  SURFACE_LONGITUDE: 100
  TOTAL_DEPTH: 10000
remove_features: []
numeric_features:
  - SURFACE_LATITUDE
  - SURFACE_LONGITUDE
  - TOTAL_DEPTH
categorical_features:
  - OPERATOR
  - COUNTY
`

// loaderConfig mirrors the loader YAML document.
type loaderConfig struct {
	NormFactors         map[string]float64 `yaml:"norm_factor_dict"`
	RemoveFeatures      []string           `yaml:"remove_features"`
	NumericFeatures     []string           `yaml:"numeric_features"`
	CategoricalFeatures []string           `yaml:"categorical_features"`
}

func main() {
	trainPath := flag.String("train", "datasets/trainSet.csv", "path to the labeled training CSV")
	examPath := flag.String("exam", "datasets/examSet.csv", "path to the unlabeled exam CSV")
	loaderPath := flag.String("loader", "", "path to the loader YAML (defaults to an embedded document)")
	outDir := flag.String("out", "saved_params", "directory receiving run artifacts")
	seed := flag.Int64("seed", 1, "random seed for splits, shuffling and weight init")
	debug := flag.Bool("debug", false, "shrink the run for a quick smoke test")
	flag.Parse()

	cfg := train.DefaultConfig()
	cfg.Seed = *seed
	if *debug {
		cfg = cfg.Debug()
		cfg.SaveDir = filepath.Join(*outDir, "debug")
	} else {
		cfg.SaveDir = filepath.Join(*outDir, time.Now().Format("20060102_150405"))
	}
	if err := os.MkdirAll(cfg.SaveDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create run directory: %v\n", err)
		os.Exit(1)
	}

	lg, logClose, err := openLogger(filepath.Join(cfg.SaveDir, "train_log.txt"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log sink: %v\n", err)
		os.Exit(1)
	}
	defer logClose()

	loader, err := loadLoaderConfig(*loaderPath, cfg.SaveDir)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to load loader configuration")
	}

	lg.Info().Bool("debug", *debug).Int("max_epoch", cfg.MaxEpoch).
		Int("batch_size", cfg.BatchSize).Float64("learning_rate", cfg.LearningRate).
		Msg("run configured")

	pipe := datasets.PipelineConfig{
		Norm:        loader.NormFactors,
		Numeric:     loader.NumericFeatures,
		Categorical: loader.CategoricalFeatures,
		Remove:      loader.RemoveFeatures,
		Ratio:       cfg.Ratio,
		Seed:        cfg.Seed,
	}

	trainFrame, err := datasets.LoadCSV(*trainPath)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to load training table")
	}

	// Feature-model datasets, then sequence-model datasets over the same
	// table; the capability flag set here decides batching downstream.
	featTrain, featValid, err := datasets.Preprocess(trainFrame, pipe)
	if err != nil {
		lg.Fatal().Err(err).Msg("preprocessing failed")
	}
	seqPipe := pipe
	seqPipe.HasSequence = true
	seqTrain, seqValid, err := datasets.Preprocess(trainFrame, seqPipe)
	if err != nil {
		lg.Fatal().Err(err).Msg("preprocessing failed")
	}
	lg.Info().Int("feature_rows", featTrain.Len()+featValid.Len()).
		Int("features", featTrain.FeatureDim()).
		Msg("data loading completed")

	mlp, err := models.NewFeatureMLP(models.MLPConfig{
		InputDim:     featTrain.FeatureDim(),
		LearningRate: cfg.LearningRate,
		WeightDecay:  cfg.WeightDecay,
		Seed:         cfg.Seed,
	})
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to build feature model")
	}
	lstm, err := models.NewLSTMNet(models.LSTMConfig{
		FeatureDim:   seqTrain.FeatureDim(),
		LearningRate: cfg.LearningRate,
		WeightDecay:  cfg.WeightDecay,
		Seed:         cfg.Seed,
	})
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to build sequence model")
	}

	if err := trainOne(mlp, featTrain, featValid, cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("feature model training failed")
	}
	if err := trainOne(lstm, seqTrain, seqValid, cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("sequence model training failed")
	}

	// Exam predictions with both models, in exam row order.
	lg.Info().Msg("making predictions")
	examFrame, err := datasets.LoadCSV(*examPath)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to load exam table")
	}
	featExam, err := datasets.ExamDataset(trainFrame, examFrame, pipe)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to build exam feature dataset")
	}
	seqExam, err := datasets.ExamDataset(trainFrame, examFrame, seqPipe)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to build exam sequence dataset")
	}

	featPreds, err := train.Evaluate(mlp, featExam, cfg)
	if err != nil {
		lg.Fatal().Err(err).Msg("feature model evaluation failed")
	}
	seqPreds, err := train.Evaluate(lstm, seqExam, cfg)
	if err != nil {
		lg.Fatal().Err(err).Msg("sequence model evaluation failed")
	}

	alloc, err := solver.New(append(featPreds, seqPreds...), examFrame)
	if err != nil {
		lg.Fatal().Err(err).Msg("allocation failed")
	}
	submission := filepath.Join(cfg.SaveDir, "submission.csv")
	if err := alloc.Export(submission); err != nil {
		lg.Fatal().Err(err).Msg("failed to export submission")
	}
	lg.Info().Str("path", submission).Msg("submission file successfully exported")
}

// trainOne runs the training loop for one model/dataset pairing with a
// console progress bar and writes its loss-curve plot.
func trainOne(m train.Model, trainDS, validDS *datasets.WellDataset, cfg train.Config, lg zerolog.Logger) error {
	lg.Info().Str("model", m.Name()).Str("data", trainDS.Name()).Msg("training model")

	bar := progressbar.Default(int64(cfg.MaxEpoch), m.Name())
	hist, err := train.Train(m, trainDS, validDS, cfg, lg, func(int, float64, float64) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	plotPath := filepath.Join(cfg.SaveDir, fmt.Sprintf("loss_%s.png", trainDS.Name()))
	if err := train.PlotHistory(hist, m.Name()+" loss", plotPath); err != nil {
		return fmt.Errorf("loss plot: %w", err)
	}
	lg.Info().Str("path", plotPath).Msg("loss curves written")
	return nil
}

// openLogger builds the run logger: console plus an append-only log file.
// A stale log file from a previous run at the same path is removed first.
func openLogger(path string) (zerolog.Logger, func(), error) {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("remove stale log %s: %w", path, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("open log %s: %w", path, err)
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	lg := zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
	return lg, func() { file.Close() }, nil
}

// loadLoaderConfig reads the loader YAML; without a path it falls back to
// the embedded default and writes a copy into the run directory.
func loadLoaderConfig(path, saveDir string) (*loaderConfig, error) {
	data := []byte(defaultLoaderYAML)
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read loader config %s: %w", path, err)
		}
	} else {
		if err := os.WriteFile(filepath.Join(saveDir, "loader.yml"), data, 0644); err != nil {
			return nil, fmt.Errorf("write default loader config: %w", err)
		}
	}
	var cfg loaderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse loader config: %w", err)
	}
	return &cfg, nil
}
