package train

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 400, cfg.MaxEpoch)
	require.Equal(t, 4, cfg.BatchSize)
	require.Equal(t, 50, cfg.Patience)
	require.Equal(t, 0.2, cfg.Ratio)
	require.Equal(t, 1e-4, cfg.LearningRate)
	require.Equal(t, 5e-4, cfg.WeightDecay)
}

func TestDebugShrinksRun(t *testing.T) {
	base := DefaultConfig()
	dbg := base.Debug()
	require.Equal(t, 5, dbg.MaxEpoch)
	require.Equal(t, 1, dbg.Patience)
	require.Equal(t, 400, base.MaxEpoch, "Debug must not mutate the receiver")
	require.Equal(t, base.BatchSize, dbg.BatchSize)
}
