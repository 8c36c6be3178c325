package models

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Noofbiz/wellCast/datasets"
)

// MLPConfig holds configurable hyperparameters for the static-feature
// regressor.
type MLPConfig struct {
	// InputDim is the static feature vector width. Required.
	InputDim int

	// HiddenSizes lists the hidden layer widths. Default: [64, 32].
	HiddenSizes []int

	// LearningRate and WeightDecay for the Adam optimizer. Defaults:
	// 1e-4 and 5e-4.
	LearningRate float64
	WeightDecay  float64

	// Seed controls weight initialization. If zero, a time-based seed is
	// used.
	Seed int64
}

// FeatureMLP is a small fully connected regressor over a well's static
// features: hidden ReLU layers and a linear scalar output. The trainer is
// self-contained (explicit forward caches and backprop) so training runs
// deterministically with no external deep-learning runtime.
type FeatureMLP struct {
	Config MLPConfig

	// layerSizes includes input size, hidden sizes, then the output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1.
	weights [][][]float64

	// biases[l] is a vector of length out for layer l -> l+1.
	biases [][]float64

	opt *Adam

	// caches from the last Forward, consumed by Backward.
	lastInputs  [][]float64
	lastPreActs [][][]float64
	lastActs    [][][]float64
}

// NewFeatureMLP creates the model with initialized weights.
func NewFeatureMLP(cfg MLPConfig) (*FeatureMLP, error) {
	if cfg.InputDim <= 0 {
		return nil, fmt.Errorf("input dimension must be positive, got %d", cfg.InputDim)
	}
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64, 32}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 1e-4
	}
	if cfg.WeightDecay == 0 {
		cfg.WeightDecay = 5e-4
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	m := &FeatureMLP{
		Config: cfg,
		opt:    NewAdam(cfg.LearningRate, cfg.WeightDecay),
	}

	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.InputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, 1)
	m.layerSizes = sizes

	rng := rand.New(rand.NewSource(cfg.Seed))
	L := len(sizes) - 1
	m.weights = make([][][]float64, L)
	m.biases = make([][]float64, L)
	for l := 0; l < L; l++ {
		in := sizes[l]
		out := sizes[l+1]
		mat := make([][]float64, out)
		for j := 0; j < out; j++ {
			row := make([]float64, in)
			for i := 0; i < in; i++ {
				// Xavier/Glorot uniform initialization heuristic
				limit := math.Sqrt(6.0 / float64(in+out))
				row[i] = (rng.Float64()*2.0 - 1.0) * limit * 0.5
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float64, out)
	}

	return m, nil
}

// Name identifies the model in logs.
func (m *FeatureMLP) Name() string { return "FeatureMLP" }

// OutputScale is the de-normalization constant for predictions.
func (m *FeatureMLP) OutputScale() float64 { return datasets.DefaultGasNorm }

// forwardSingle runs one input vector through the net, returning the
// pre-activation and activation vectors per layer (activations[0] is the
// input itself).
func (m *FeatureMLP) forwardSingle(input []float64) (preActs, acts [][]float64, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, fmt.Errorf("input has dimension %d, model expects %d", len(input), m.layerSizes[0])
	}
	L := len(m.weights)
	acts = make([][]float64, L+1)
	acts[0] = input
	preActs = make([][]float64, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		outDim := len(m.biases[l])
		pre := make([]float64, outDim)
		for j := 0; j < outDim; j++ {
			sum := m.biases[l][j]
			row := m.weights[l][j]
			for i := range inVec {
				sum += row[i] * inVec[i]
			}
			pre[j] = sum
		}
		preActs[l] = pre

		// ReLU on hidden layers, linear output
		act := make([]float64, outDim)
		copy(act, pre)
		if l < L-1 {
			for i := range act {
				if act[i] < 0 {
					act[i] = 0
				}
			}
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// Forward computes per-sample scalar outputs for a batch and caches the
// activations for a following Backward.
func (m *FeatureMLP) Forward(b *datasets.Batch) ([]float64, error) {
	out := make([]float64, b.Size())
	m.lastInputs = b.Features
	m.lastPreActs = make([][][]float64, b.Size())
	m.lastActs = make([][][]float64, b.Size())
	for i, in := range b.Features {
		pre, acts, err := m.forwardSingle(in)
		if err != nil {
			return nil, err
		}
		m.lastPreActs[i] = pre
		m.lastActs[i] = acts
		out[i] = acts[len(acts)-1][0]
	}
	return out, nil
}

// Backward backpropagates dLoss/dOutput for each sample of the last
// Forward batch, accumulates summed gradients, and applies one optimizer
// step.
func (m *FeatureMLP) Backward(grad []float64) error {
	if m.lastActs == nil {
		return fmt.Errorf("Backward called before Forward")
	}
	if len(grad) != len(m.lastActs) {
		return fmt.Errorf("gradient length %d does not match batch size %d", len(grad), len(m.lastActs))
	}

	L := len(m.weights)
	gradW := make([][][]float64, L)
	gradB := make([][]float64, L)
	for l := 0; l < L; l++ {
		outDim := len(m.biases[l])
		inDim := len(m.weights[l][0])
		gradW[l] = make([][]float64, outDim)
		for j := 0; j < outDim; j++ {
			gradW[l][j] = make([]float64, inDim)
		}
		gradB[l] = make([]float64, outDim)
	}

	for ex := range m.lastActs {
		acts := m.lastActs[ex]
		preacts := m.lastPreActs[ex]
		delta := []float64{grad[ex]}

		for l := L - 1; l >= 0; l-- {
			inAct := acts[l]
			for j := range delta {
				gradB[l][j] += delta[j]
				for i := range inAct {
					gradW[l][j][i] += delta[j] * inAct[i]
				}
			}
			if l > 0 {
				prevLen := len(m.weights[l][0])
				newDelta := make([]float64, prevLen)
				for i := 0; i < prevLen; i++ {
					sum := 0.0
					for j := range delta {
						sum += m.weights[l][j][i] * delta[j]
					}
					if preacts[l-1][i] <= 0 {
						sum = 0
					}
					newDelta[i] = sum
				}
				delta = newDelta
			}
		}
	}

	params, grads := m.groups(gradW, gradB)
	return m.opt.Step(params, grads)
}

// groups flattens weights/biases and their gradients into parallel Adam
// parameter groups. Weight rows share backing arrays with the model so
// updates apply in place.
func (m *FeatureMLP) groups(gradW [][][]float64, gradB [][]float64) (params, grads [][]float64) {
	for l := range m.weights {
		for j := range m.weights[l] {
			params = append(params, m.weights[l][j])
			grads = append(grads, gradW[l][j])
		}
		params = append(params, m.biases[l])
		grads = append(grads, gradB[l])
	}
	return params, grads
}

// mlpParams is the serialized checkpoint layout.
type mlpParams struct {
	LayerSizes []int
	Weights    [][][]float64
	Biases     [][]float64
}

// MarshalParams encodes the current parameters as a msgpack blob.
func (m *FeatureMLP) MarshalParams() ([]byte, error) {
	return msgpack.Marshal(mlpParams{
		LayerSizes: m.layerSizes,
		Weights:    m.weights,
		Biases:     m.biases,
	})
}

// UnmarshalParams restores parameters from a msgpack blob. The layer
// layout must match the model's configuration.
func (m *FeatureMLP) UnmarshalParams(data []byte) error {
	var p mlpParams
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode MLP parameters: %w", err)
	}
	if len(p.LayerSizes) != len(m.layerSizes) {
		return fmt.Errorf("checkpoint has %d layers, model expects %d", len(p.LayerSizes), len(m.layerSizes))
	}
	for i, s := range p.LayerSizes {
		if s != m.layerSizes[i] {
			return fmt.Errorf("checkpoint layer %d has size %d, model expects %d", i, s, m.layerSizes[i])
		}
	}
	m.weights = p.Weights
	m.biases = p.Biases
	return nil
}
