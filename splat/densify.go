package splat

import (
	"time"

	"github.com/DYH200009/GRAPE/optim"
	"github.com/DYH200009/GRAPE/types"
)

// Shrink factor applied to the scale of split children on top of the fan-out.
const splitScaleFactor = 0.8

// DensifyAndPrune runs one population update cycle:
//
//   - stable ids are reset to 0..N-1 and the modified id list is cleared
//   - the accumulated gradient statistics are averaged and reset
//   - small primitives with a large gradient are cloned
//   - large primitives with a large gradient are split
//   - transparent (and, if maxScreenSize > 0, oversized) primitives are pruned
//   - normals (and optionally types) are re-estimated for the new population
//
// Calling it on an empty store is a no-op.
func (m *Model) DensifyAndPrune(gradThreshold, minOpacity, extent, maxScreenSize float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	before := m.len()
	m.resetStableIDs()
	m.modifiedIDs = nil
	if before == 0 {
		m.logger.Debug("empty population; skipping densification")
		return nil
	}

	grads, offsets := m.averageGradients()
	m.resetStats(before)

	cloned, err := m.densifyAndClone(grads, offsets, gradThreshold, extent)
	if err != nil {
		return err
	}
	split, err := m.densifyAndSplit(grads, gradThreshold, extent)
	if err != nil {
		return err
	}
	pruned, err := m.prune(minOpacity, extent, maxScreenSize)
	if err != nil {
		return err
	}
	m.maxRadii = make([]float32, m.len())

	if err = m.refreshSpatial(); err != nil {
		return err
	}
	if m.classifier != nil {
		m.classifier.Decay()
	}

	m.logger.Noticef(
		"densify: %d -> %d primitives (cloned %d, split %d, pruned %d) in %d ms",
		before, m.len(), cloned, split, pruned, time.Since(start).Nanoseconds()/1e6,
	)
	return nil
}

// Clone every primitive whose averaged gradient reaches the threshold and
// whose largest scale is at most percentDense*extent. Planar clones are
// nudged along the mean position gradient; volumetric clones are exact
// copies.
func (m *Model) densifyAndClone(grads []float32, offsets []types.Vec3, threshold, extent float32) (int, error) {
	limit := m.opts.Densify.PercentDense * extent

	var selected []int
	for i, g := range grads {
		if g >= threshold && m.scale(i).MaxComponent() <= limit {
			selected = append(selected, i)
		}
	}
	if len(selected) == 0 {
		return 0, nil
	}

	rows := m.gather(selected)
	pos := rows.params[ParamPosition]
	for j, src := range selected {
		if m.kinds[src] == Planar {
			types.PutVec3(pos, j, types.Vec3At(pos, j).Add(offsets[src]))
		}
	}

	if err := m.extend(rows); err != nil {
		return 0, err
	}
	m.modifiedIDs = append(m.modifiedIDs, rows.stableIDs...)
	return len(selected), nil
}

// Replace every primitive whose averaged gradient reaches the threshold and
// whose largest scale exceeds percentDense*extent with fan-out children.
// grads only covers the primitives that existed before cloning; clones are
// never split in the same cycle.
func (m *Model) densifyAndSplit(grads []float32, threshold, extent float32) (int, error) {
	n := m.len()
	fanOut := m.opts.Densify.SplitFanOut
	limit := m.opts.Densify.PercentDense * extent

	selected := make([]bool, n)
	for i := 0; i < n; i++ {
		var g float32
		if i < len(grads) {
			g = grads[i]
		}
		selected[i] = g >= threshold && m.scale(i).MaxComponent() > limit
	}
	parents := optim.MaskIndices(selected)
	if len(parents) == 0 {
		return 0, nil
	}

	// Children are laid out in fan-out major order: all first children,
	// then all second children and so on.
	repeated := make([]int, 0, len(parents)*fanOut)
	for rep := 0; rep < fanOut; rep++ {
		repeated = append(repeated, parents...)
	}
	rows := m.gather(repeated)

	pos := rows.params[ParamPosition]
	scaling := rows.params[ParamScaling]
	logShrink := types.Log(splitScaleFactor * float32(fanOut))
	for j, src := range repeated {
		s := m.scale(src)
		sample := types.XYZ(
			float32(m.rng.NormFloat64())*s[0],
			float32(m.rng.NormFloat64())*s[1],
			float32(m.rng.NormFloat64())*s[2],
		)
		types.PutVec3(pos, j, m.quat(src).Mat3().MulVec3(sample).Add(m.position(src)))
		// log(s/shrink) evaluated in raw space so tiny scales stay finite.
		raw := types.Vec3At(m.scaling.Data, src)
		types.PutVec3(scaling, j, types.XYZ(raw[0]-logShrink, raw[1]-logShrink, raw[2]-logShrink))
	}

	if err := m.extend(rows); err != nil {
		return 0, err
	}
	for _, src := range parents {
		m.modifiedIDs = append(m.modifiedIDs, m.stableIDs[src])
	}

	keep := make([]bool, m.len())
	for i := range keep {
		keep[i] = i >= n || !selected[i]
	}
	if err := m.filter(keep); err != nil {
		return 0, err
	}
	return len(parents), nil
}
