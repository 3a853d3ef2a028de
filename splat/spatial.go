package splat

import (
	"github.com/DYH200009/GRAPE/spatial"
)

// Drop the cached kNN index. Called after every structural change.
func (m *Model) invalidateIndex() {
	m.indexMu.Lock()
	m.index = nil
	m.indexMu.Unlock()
}

// Get the kNN index over the current positions, building it if needed. The
// caller must hold m.mu.
func (m *Model) spatialIndex() *spatial.Index {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	if m.index == nil {
		m.index = spatial.NewIndex(m.positions(), m.opts.Workers)
	}
	return m.index
}

// KNearest returns, for every primitive, the indices of its k nearest
// primitives starting with the primitive itself. The lists are computed
// once per k until the next structural change; callers get their own copy.
func (m *Model) KNearest(k int) ([][]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shared, err := m.spatialIndex().KNearest(k)
	if err != nil {
		return nil, err
	}
	out := make([][]int, len(shared))
	for i, list := range shared {
		out[i] = append([]int(nil), list...)
	}
	return out, nil
}

// EstimateNormals recomputes the normal of every primitive from a plane fit
// through its nearest neighbors and, if enabled, re-derives the primitive
// types.
func (m *Model) EstimateNormals() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshSpatial()
}

// Re-estimate normals for the current population. The previous normals are
// used as orientation hints so that normals keep their side across cycles.
func (m *Model) refreshSpatial() error {
	n := m.len()
	if n == 0 {
		return nil
	}

	ix := m.spatialIndex()
	neighbors, err := ix.KNearest(m.opts.NormalNeighbors)
	if err != nil {
		return err
	}
	points := ix.Points()
	normals, err := spatial.EstimateNormals(points, neighbors, m.normalVecs(), m.opts.Workers)
	if err != nil {
		return err
	}
	for i, normal := range normals {
		m.normals[3*i] = normal[0]
		m.normals[3*i+1] = normal[1]
		m.normals[3*i+2] = normal[2]
	}

	if m.classifier == nil {
		return nil
	}
	neighbors, err = ix.KNearest(m.opts.Classify.K)
	if err != nil {
		return err
	}
	planar := m.classifier.Classify(points, normals, neighbors)
	count := 0
	for i, isPlanar := range planar {
		m.kinds[i] = Volumetric
		if isPlanar {
			m.kinds[i] = Planar
			count++
		}
	}
	m.logger.Infof("classified %d of %d primitives as planar (distance threshold %g)", count, n, m.classifier.Threshold())
	return nil
}
