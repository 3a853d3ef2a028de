package splat

import "github.com/DYH200009/GRAPE/types"

// Primitives whose largest world-space scale exceeds this fraction of the
// scene extent are pruned when screen-size pruning is enabled.
const maxWorldSizeFactor = 0.1

// Remove primitives with opacity below minOpacity. If maxScreenSize > 0,
// primitives whose max screen radius exceeds maxScreenSize or whose largest
// scale exceeds 0.1*extent are removed too.
func (m *Model) prune(minOpacity, extent, maxScreenSize float32) (int, error) {
	n := m.len()
	keep := make([]bool, n)
	removed := 0
	for i := 0; i < n; i++ {
		remove := types.Sigmoid(m.opacity.Data[i]) < minOpacity
		if maxScreenSize > 0 {
			remove = remove ||
				m.maxRadii[i] > maxScreenSize ||
				m.scale(i).MaxComponent() > maxWorldSizeFactor*extent
		}
		keep[i] = !remove
		if remove {
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := m.filter(keep); err != nil {
		return 0, err
	}
	return removed, nil
}

// Prune runs a standalone pruning pass and re-estimates normals when the
// population changed. It returns the number of removed primitives.
func (m *Model) Prune(minOpacity, extent, maxScreenSize float32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed, err := m.prune(minOpacity, extent, maxScreenSize)
	if err != nil || removed == 0 {
		return removed, err
	}
	m.logger.Infof("pruned %d primitives; %d left", removed, m.len())
	return removed, m.refreshSpatial()
}
