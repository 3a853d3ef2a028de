package splat

import (
	"fmt"
	"math"

	"github.com/DYH200009/GRAPE/config"
	"github.com/DYH200009/GRAPE/types"
)

// AccumulateGradients adds the gradient statistics of one render step.
// screenGrad holds 2 values (the screen-space xy gradient) per primitive and
// positionGrad 3 values per primitive; visible selects the primitives that
// contributed to the step. A nil positionGrad falls back to the gradient
// buffer of the position param; if that is empty too only the screen-space
// statistic is accumulated.
func (m *Model) AccumulateGradients(screenGrad, positionGrad []float32, visible []bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.len()
	if positionGrad == nil && len(m.xyz.Grad) == 3*n {
		positionGrad = m.xyz.Grad
	}
	if len(visible) != n {
		return fmt.Errorf("%w: visibility mask has %d entries; store has %d primitives", ErrLength, len(visible), n)
	}
	if len(screenGrad) != 2*n {
		return fmt.Errorf("%w: screen gradient has %d values; expected %d", ErrLength, len(screenGrad), 2*n)
	}
	if positionGrad != nil && len(positionGrad) != 3*n {
		return fmt.Errorf("%w: position gradient has %d values; expected %d", ErrLength, len(positionGrad), 3*n)
	}

	for i, vis := range visible {
		if !vis {
			continue
		}
		m.screenGradAccum[i] += types.XY(screenGrad[2*i], screenGrad[2*i+1]).Len()
		if positionGrad != nil {
			for c := 0; c < 3; c++ {
				m.positionGradAccum[3*i+c] += positionGrad[3*i+c]
			}
		}
		m.denom[i]++
	}
	return nil
}

// ObserveRadii keeps the running max of the screen-space radius of every
// visible primitive.
func (m *Model) ObserveRadii(radii []float32, visible []bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.len()
	if len(radii) != n || len(visible) != n {
		return fmt.Errorf("%w: got %d radii and %d visibility entries for %d primitives", ErrLength, len(radii), len(visible), n)
	}
	for i, vis := range visible {
		if vis && radii[i] > m.maxRadii[i] {
			m.maxRadii[i] = radii[i]
		}
	}
	return nil
}

// Average the accumulated statistics. It returns the scalar gradient that
// is compared against the densification threshold and the mean position
// gradient used to nudge planar clones. Degenerate values become zero.
func (m *Model) averageGradients() ([]float32, []types.Vec3) {
	n := m.len()
	grads := make([]float32, n)
	offsets := make([]types.Vec3, n)

	for i := 0; i < n; i++ {
		d := m.denom[i]
		offset := types.Vec3At(m.positionGradAccum, i).Mul(1 / d)
		for c := 0; c < 3; c++ {
			if !types.IsFinite(offset[c]) {
				offset[c] = 0
			}
		}
		offsets[i] = offset

		var g float32
		switch m.opts.Densify.Gradient {
		case config.ScreenGradient:
			g = float32(math.Abs(float64(m.screenGradAccum[i] / d)))
		default:
			g = offset.Len()
		}
		if !types.IsFinite(g) {
			g = 0
		}
		grads[i] = g
	}
	return grads, offsets
}
