package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepMovesAgainstGradient(t *testing.T) {
	p := NewParam("xyz", 1, []float32{1, 1}, 0.1)
	o := NewAdam(DefaultOptions(), p)

	grad := p.ZeroGrad()
	grad[0] = 2
	grad[1] = -2
	o.Step()

	// The first Adam step moves each value by lr in the opposite direction
	// of the gradient sign.
	assert.InDelta(t, 0.9, p.Data[0], 1e-5)
	assert.InDelta(t, 1.1, p.Data[1], 1e-5)
	require.NotNil(t, o.State(p))
	assert.Equal(t, 1, o.State(p).Step)
}

func TestStepSkipsParamsWithoutGradient(t *testing.T) {
	p := NewParam("xyz", 1, []float32{1}, 0.1)
	o := NewAdam(DefaultOptions(), p)
	o.Step()

	assert.Equal(t, []float32{1}, p.Data)
	assert.Nil(t, o.State(p))
}

func TestReplaceZeroesState(t *testing.T) {
	p := NewParam("opacity", 1, []float32{1, 2}, 0.1)
	o := NewAdam(DefaultOptions(), p)
	p.ZeroGrad()[0] = 1
	o.Step()

	np, err := o.Replace("opacity", []float32{-4, -4})
	require.NoError(t, err)
	assert.Same(t, np, o.Param("opacity"))
	assert.Equal(t, []float32{0, 0}, o.State(np).ExpAvg)

	_, err = o.Replace("missing", nil)
	require.ErrorIs(t, err, ErrUnknownParam)
}

func TestExportRestore(t *testing.T) {
	o, _, _, _ := makeOptimizer()
	stepOnce(o)

	restored, err := Restore(DefaultOptions(), o.Export())
	require.NoError(t, err)

	for _, p := range o.Params() {
		rp := restored.Param(p.Name)
		require.NotNil(t, rp)
		assert.Equal(t, p.Data, rp.Data)
		assert.Equal(t, p.Structural, rp.Structural)
		assert.Equal(t, o.State(p).ExpAvgSq, restored.State(rp).ExpAvgSq)
	}
}
