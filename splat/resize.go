package splat

import (
	"fmt"

	"github.com/DYH200009/GRAPE/optim"
)

// A batch of primitive rows to append to the store. params holds an entry
// for every structural optimizer param.
type rowSet struct {
	params    map[string][]float32
	kinds     []Kind
	normals   []float32
	scores    []float32
	stableIDs []int32
}

func (r *rowSet) count() int {
	return len(r.kinds)
}

// Copy the rows at the given indices into a new row set. Indices may repeat.
func (m *Model) gather(indices []int) rowSet {
	r := rowSet{
		params:    make(map[string][]float32),
		kinds:     optim.GatherRows(m.kinds, 1, indices),
		normals:   optim.GatherRows(m.normals, 3, indices),
		scores:    optim.GatherRows(m.scores, 1, indices),
		stableIDs: optim.GatherRows(m.stableIDs, 1, indices),
	}
	for _, p := range m.optimizer.Params() {
		if p.Structural {
			r.params[p.Name] = optim.GatherRows(p.Data, p.Stride, indices)
		}
	}
	return r
}

// Append rows to every per-primitive array. Densification statistics for
// the new rows start at zero. Nothing is modified if the row set is
// inconsistent.
func (m *Model) extend(r rowSet) error {
	count := r.count()
	if len(r.normals) != 3*count || len(r.scores) != count || len(r.stableIDs) != count {
		return fmt.Errorf("%w: extend rows disagree on count %d", ErrLength, count)
	}
	if count == 0 {
		return nil
	}
	if _, err := m.optimizer.Extend(r.params); err != nil {
		return err
	}

	m.bind()
	m.kinds = optim.AppendRows(m.kinds, r.kinds)
	m.normals = optim.AppendRows(m.normals, r.normals)
	m.scores = optim.AppendRows(m.scores, r.scores)
	m.stableIDs = optim.AppendRows(m.stableIDs, r.stableIDs)
	m.screenGradAccum = optim.PadRows(m.screenGradAccum, count, 1)
	m.positionGradAccum = optim.PadRows(m.positionGradAccum, count, 3)
	m.denom = optim.PadRows(m.denom, count, 1)
	m.maxRadii = optim.PadRows(m.maxRadii, count, 1)
	m.invalidateIndex()
	return nil
}

// Keep the primitives whose mask entry is true.
func (m *Model) filter(keep []bool) error {
	if len(keep) != m.len() {
		return fmt.Errorf("%w: mask has %d entries; store has %d primitives", ErrLength, len(keep), m.len())
	}
	if _, err := m.optimizer.Filter(keep); err != nil {
		return err
	}

	m.bind()
	m.kinds = optim.FilterRows(m.kinds, 1, keep)
	m.normals = optim.FilterRows(m.normals, 3, keep)
	m.scores = optim.FilterRows(m.scores, 1, keep)
	m.stableIDs = optim.FilterRows(m.stableIDs, 1, keep)
	m.screenGradAccum = optim.FilterRows(m.screenGradAccum, 1, keep)
	m.positionGradAccum = optim.FilterRows(m.positionGradAccum, 3, keep)
	m.denom = optim.FilterRows(m.denom, 1, keep)
	m.maxRadii = optim.FilterRows(m.maxRadii, 1, keep)
	m.invalidateIndex()
	return nil
}

// Filter applies a keep mask to every per-primitive array and to the
// optimizer momentum state. A mask whose length differs from Len fails with
// ErrLength and leaves the store untouched.
func (m *Model) Filter(keep []bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(keep)
}
