package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdamMinimizesQuadratic(t *testing.T) {
	opt := NewAdam(0.1, 0)
	params := [][]float64{{5.0, -3.0}}

	for i := 0; i < 500; i++ {
		grads := [][]float64{{2 * params[0][0], 2 * params[0][1]}}
		require.NoError(t, opt.Step(params, grads))
	}
	require.Less(t, math.Abs(params[0][0]), 1e-2)
	require.Less(t, math.Abs(params[0][1]), 1e-2)
}

func TestAdamClipsGlobalNorm(t *testing.T) {
	opt := NewAdam(0.1, 0)
	opt.ClipNorm = 1.0
	grads := [][]float64{{300, 400}} // norm 500
	params := [][]float64{{0, 0}}
	require.NoError(t, opt.Step(params, grads))

	norm := math.Hypot(grads[0][0], grads[0][1])
	require.InDelta(t, 1.0, norm, 1e-9)
}

func TestAdamRejectsMismatchedGroups(t *testing.T) {
	opt := NewAdam(0.1, 0)
	err := opt.Step([][]float64{{1, 2}}, [][]float64{{1, 2}, {3}})
	require.Error(t, err)

	opt2 := NewAdam(0.1, 0)
	err = opt2.Step([][]float64{{1, 2}}, [][]float64{{1}})
	require.Error(t, err)
}
