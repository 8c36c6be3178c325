package models

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Noofbiz/wellCast/datasets"
)

// LSTMConfig holds configurable hyperparameters for the sequence
// regressor.
type LSTMConfig struct {
	// FeatureDim is the static feature vector width concatenated with the
	// final hidden state. Required.
	FeatureDim int

	// Hidden is the LSTM hidden size. Default: 32.
	Hidden int

	// LearningRate and WeightDecay for the Adam optimizer. Defaults:
	// 1e-4 and 5e-4.
	LearningRate float64
	WeightDecay  float64

	// Seed controls weight initialization. If zero, a time-based seed is
	// used.
	Seed int64
}

// LSTMNet is the sequence-based regressor: a single LSTM layer consumes a
// well's encoded production history step by step, and the final hidden
// state concatenated with the static features feeds a linear head
// producing the scalar output. Forward reads the packed batch directly;
// per-sample gate caches support full backpropagation through time.
//
// Gate layout inside the stacked weight matrices is [input, forget, cell,
// output], each block of size Hidden.
type LSTMNet struct {
	Config LSTMConfig

	// wx is [4*Hidden][SequenceDim], wh is [4*Hidden][Hidden], b has
	// length 4*Hidden.
	wx [][]float64
	wh [][]float64
	b  []float64

	// head: wOut has length Hidden+FeatureDim, bOut is the scalar bias.
	wOut []float64
	bOut []float64

	opt *Adam

	// caches from the last Forward, consumed by Backward.
	lastBatch *datasets.Batch
	lastRuns  []*lstmRun
}

// lstmRun caches one sample's unrolled forward pass.
type lstmRun struct {
	steps [][]float64 // input steps, length T
	h     [][]float64 // hidden states, h[0] is the zero initial state
	c     [][]float64 // cell states, c[0] is the zero initial state
	gi    [][]float64 // input gate activations per step
	gf    [][]float64 // forget gate activations per step
	gg    [][]float64 // cell candidate activations per step
	govr  [][]float64 // output gate activations per step
	tc    [][]float64 // tanh(c_t) per step
}

// NewLSTMNet creates the model with initialized weights.
func NewLSTMNet(cfg LSTMConfig) (*LSTMNet, error) {
	if cfg.FeatureDim <= 0 {
		return nil, fmt.Errorf("feature dimension must be positive, got %d", cfg.FeatureDim)
	}
	if cfg.Hidden == 0 {
		cfg.Hidden = 32
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

	m := &LSTMNet{
		Config: cfg,
		opt:    NewAdam(cfg.LearningRate, cfg.WeightDecay),
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	H := cfg.Hidden
	m.wx = randMatrix(rng, 4*H, datasets.SequenceDim)
	m.wh = randMatrix(rng, 4*H, H)
	m.b = make([]float64, 4*H)
	// forget gate bias starts open
	for j := H; j < 2*H; j++ {
		m.b[j] = 1.0
	}
	m.wOut = randRow(rng, H+cfg.FeatureDim)
	m.bOut = make([]float64, 1)

	return m, nil
}

func randMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	mat := make([][]float64, rows)
	for j := range mat {
		mat[j] = randRow(rng, cols)
	}
	return mat
}

func randRow(rng *rand.Rand, cols int) []float64 {
	limit := math.Sqrt(6.0 / float64(cols))
	row := make([]float64, cols)
	for i := range row {
		row[i] = (rng.Float64()*2.0 - 1.0) * limit * 0.5
	}
	return row
}

// Name identifies the model in logs.
func (m *LSTMNet) Name() string { return "LSTMNet" }

// OutputScale is the de-normalization constant for predictions.
func (m *LSTMNet) OutputScale() float64 { return datasets.DefaultGasNorm }

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

// forwardSample unrolls the LSTM over one sample's true-length steps.
func (m *LSTMNet) forwardSample(steps [][]float64) *lstmRun {
	H := m.Config.Hidden
	T := len(steps)
	run := &lstmRun{
		steps: steps,
		h:     make([][]float64, T+1),
		c:     make([][]float64, T+1),
		gi:    make([][]float64, T),
		gf:    make([][]float64, T),
		gg:    make([][]float64, T),
		govr:  make([][]float64, T),
		tc:    make([][]float64, T),
	}
	run.h[0] = make([]float64, H)
	run.c[0] = make([]float64, H)

	for t := 0; t < T; t++ {
		x := steps[t]
		hPrev := run.h[t]
		cPrev := run.c[t]

		gi := make([]float64, H)
		gf := make([]float64, H)
		gg := make([]float64, H)
		govr := make([]float64, H)
		h := make([]float64, H)
		c := make([]float64, H)
		tc := make([]float64, H)

		for j := 0; j < H; j++ {
			zi := gateSum(m.wx[j], m.wh[j], m.b[j], x, hPrev)
			zf := gateSum(m.wx[H+j], m.wh[H+j], m.b[H+j], x, hPrev)
			zg := gateSum(m.wx[2*H+j], m.wh[2*H+j], m.b[2*H+j], x, hPrev)
			zo := gateSum(m.wx[3*H+j], m.wh[3*H+j], m.b[3*H+j], x, hPrev)

			gi[j] = sigmoid(zi)
			gf[j] = sigmoid(zf)
			gg[j] = math.Tanh(zg)
			govr[j] = sigmoid(zo)

			c[j] = gf[j]*cPrev[j] + gi[j]*gg[j]
			tc[j] = math.Tanh(c[j])
			h[j] = govr[j] * tc[j]
		}

		run.gi[t] = gi
		run.gf[t] = gf
		run.gg[t] = gg
		run.govr[t] = govr
		run.tc[t] = tc
		run.h[t+1] = h
		run.c[t+1] = c
	}
	return run
}

func gateSum(wx, wh []float64, b float64, x, h []float64) float64 {
	sum := b
	for i := range x {
		sum += wx[i] * x[i]
	}
	for i := range h {
		sum += wh[i] * h[i]
	}
	return sum
}

// Forward computes per-sample scalar outputs for a packed batch and caches
// the unrolled runs for a following Backward.
func (m *LSTMNet) Forward(b *datasets.Batch) ([]float64, error) {
	if b.Seq == nil {
		return nil, fmt.Errorf("batch has no packed sequences; LSTMNet requires a sequence dataset")
	}
	H := m.Config.Hidden
	out := make([]float64, b.Size())
	m.lastBatch = b
	m.lastRuns = make([]*lstmRun, b.Size())

	for i := 0; i < b.Size(); i++ {
		if len(b.Features[i]) != m.Config.FeatureDim {
			return nil, fmt.Errorf("sample %d has %d features, model expects %d",
				i, len(b.Features[i]), m.Config.FeatureDim)
		}
		row := b.Seq.Unsort[i]
		steps := b.Seq.Padded[row][:b.Seq.Lengths[row]]
		run := m.forwardSample(steps)
		m.lastRuns[i] = run

		hT := run.h[len(run.steps)]
		sum := m.bOut[0]
		for j := 0; j < H; j++ {
			sum += m.wOut[j] * hT[j]
		}
		for j, f := range b.Features[i] {
			sum += m.wOut[H+j] * f
		}
		out[i] = sum
	}
	return out, nil
}

// Backward backpropagates dLoss/dOutput through the head and the unrolled
// LSTM for every sample of the last Forward batch, accumulates summed
// gradients, and applies one optimizer step.
func (m *LSTMNet) Backward(grad []float64) error {
	if m.lastRuns == nil {
		return fmt.Errorf("Backward called before Forward")
	}
	if len(grad) != len(m.lastRuns) {
		return fmt.Errorf("gradient length %d does not match batch size %d", len(grad), len(m.lastRuns))
	}

	H := m.Config.Hidden
	dWx := zeroMatrix(4*H, datasets.SequenceDim)
	dWh := zeroMatrix(4*H, H)
	dB := make([]float64, 4*H)
	dWOut := make([]float64, len(m.wOut))
	dBOut := make([]float64, 1)

	for ex, run := range m.lastRuns {
		g := grad[ex]
		T := len(run.steps)
		hT := run.h[T]

		// head gradients
		dBOut[0] += g
		for j := 0; j < H; j++ {
			dWOut[j] += g * hT[j]
		}
		for j, f := range m.lastBatch.Features[ex] {
			dWOut[H+j] += g * f
		}

		// backprop through time
		dh := make([]float64, H)
		dc := make([]float64, H)
		for j := 0; j < H; j++ {
			dh[j] = g * m.wOut[j]
		}

		for t := T - 1; t >= 0; t-- {
			x := run.steps[t]
			hPrev := run.h[t]
			cPrev := run.c[t]
			dhPrev := make([]float64, H)
			dcPrev := make([]float64, H)

			for j := 0; j < H; j++ {
				do := dh[j] * run.tc[t][j]
				dcj := dc[j] + dh[j]*run.govr[t][j]*(1-run.tc[t][j]*run.tc[t][j])

				di := dcj * run.gg[t][j]
				df := dcj * cPrev[j]
				dg := dcj * run.gi[t][j]
				dcPrev[j] = dcj * run.gf[t][j]

				dzi := di * run.gi[t][j] * (1 - run.gi[t][j])
				dzf := df * run.gf[t][j] * (1 - run.gf[t][j])
				dzg := dg * (1 - run.gg[t][j]*run.gg[t][j])
				dzo := do * run.govr[t][j] * (1 - run.govr[t][j])

				rows := [4]int{j, H + j, 2*H + j, 3*H + j}
				dzs := [4]float64{dzi, dzf, dzg, dzo}
				for k := 0; k < 4; k++ {
					r := rows[k]
					dz := dzs[k]
					dB[r] += dz
					for i := range x {
						dWx[r][i] += dz * x[i]
					}
					for i := range hPrev {
						dWh[r][i] += dz * hPrev[i]
						dhPrev[i] += dz * m.wh[r][i]
					}
				}
			}
			dh = dhPrev
			dc = dcPrev
		}
	}

	params, grads := m.groups(dWx, dWh, dB, dWOut, dBOut)
	return m.opt.Step(params, grads)
}

func zeroMatrix(rows, cols int) [][]float64 {
	mat := make([][]float64, rows)
	for j := range mat {
		mat[j] = make([]float64, cols)
	}
	return mat
}

// groups flattens parameters and their gradients into parallel Adam
// groups; weight rows share backing arrays with the model so updates
// apply in place.
func (m *LSTMNet) groups(dWx, dWh [][]float64, dB, dWOut, dBOut []float64) (params, grads [][]float64) {
	for j := range m.wx {
		params = append(params, m.wx[j])
		grads = append(grads, dWx[j])
	}
	for j := range m.wh {
		params = append(params, m.wh[j])
		grads = append(grads, dWh[j])
	}
	params = append(params, m.b, m.wOut, m.bOut)
	grads = append(grads, dB, dWOut, dBOut)
	return params, grads
}

// lstmParams is the serialized checkpoint layout.
type lstmParams struct {
	Hidden     int
	FeatureDim int
	Wx         [][]float64
	Wh         [][]float64
	B          []float64
	WOut       []float64
	BOut       []float64
}

// MarshalParams encodes the current parameters as a msgpack blob.
func (m *LSTMNet) MarshalParams() ([]byte, error) {
	return msgpack.Marshal(lstmParams{
		Hidden:     m.Config.Hidden,
		FeatureDim: m.Config.FeatureDim,
		Wx:         m.wx,
		Wh:         m.wh,
		B:          m.b,
		WOut:       m.wOut,
		BOut:       m.bOut,
	})
}

// UnmarshalParams restores parameters from a msgpack blob. The hidden and
// feature dimensions must match the model's configuration.
func (m *LSTMNet) UnmarshalParams(data []byte) error {
	var p lstmParams
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode LSTM parameters: %w", err)
	}
	if p.Hidden != m.Config.Hidden || p.FeatureDim != m.Config.FeatureDim {
		return fmt.Errorf("checkpoint dimensions (hidden=%d, features=%d) do not match model (hidden=%d, features=%d)",
			p.Hidden, p.FeatureDim, m.Config.Hidden, m.Config.FeatureDim)
	}
	m.wx = p.Wx
	m.wh = p.Wh
	m.b = p.B
	m.wOut = p.WOut
	m.bOut = p.BOut
	return nil
}
