package spatial

import (
	"sort"
	"sync"
	"time"

	"github.com/DYH200009/GRAPE/log"
	"github.com/DYH200009/GRAPE/types"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// A neighbor returned by a nearest neighbor query.
type Neighbor struct {
	Index int

	// Squared euclidean distance to the query point.
	Dist2 float64
}

// Index is an exact k-nearest-neighbor index over a fixed set of points. It
// is rebuilt from scratch whenever the point set changes. KNearest results
// are memoized per distinct k.
type Index struct {
	logger  log.Logger
	points  []types.Vec3
	tree    *kdtree.Tree
	workers int

	mu   sync.Mutex
	memo map[int][][]int
}

// Build a new index over points. The points slice is copied. The workers
// param controls the fan-out used by KNearest; values < 1 select one worker
// per available CPU.
func NewIndex(points []types.Vec3, workers int) *Index {
	ix := &Index{
		logger:  log.New("knn index"),
		points:  append([]types.Vec3(nil), points...),
		workers: workers,
		memo:    make(map[int][][]int),
	}

	if len(points) == 0 {
		return ix
	}

	start := time.Now()
	list := make(entries, len(points))
	for index, p := range points {
		list[index] = entry{
			pos:   [3]float64{float64(p[0]), float64(p[1]), float64(p[2])},
			index: index,
		}
	}
	ix.tree = kdtree.New(list, false)
	ix.logger.Debugf("built kd-tree over %d points in %d ms", len(points), time.Since(start).Nanoseconds()/1e6)
	return ix
}

// Number of indexed points.
func (ix *Index) Len() int {
	return len(ix.points)
}

// Points returns the indexed point positions.
func (ix *Index) Points() []types.Vec3 {
	return ix.points
}

// Query returns up to k indexed points closest to q sorted by increasing
// distance. Ties are broken by index.
func (ix *Index) Query(q types.Vec3, k int) []Neighbor {
	return ix.query(q, k, -1)
}

func (ix *Index) query(q types.Vec3, k int, self int) []Neighbor {
	if ix.tree == nil || k <= 0 {
		return nil
	}
	k = min(k, len(ix.points))

	keeper := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(keeper, entry{pos: [3]float64{float64(q[0]), float64(q[1]), float64(q[2])}, index: -1})

	out := make([]Neighbor, 0, k)
	for _, c := range keeper.Heap {
		// Skip the sentinel that the keeper starts with.
		if c.Comparable == nil {
			continue
		}
		out = append(out, Neighbor{Index: c.Comparable.(entry).index, Dist2: c.Dist})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Dist2 != out[j].Dist2 {
			return out[i].Dist2 < out[j].Dist2
		}
		if out[i].Index == self || out[j].Index == self {
			return out[i].Index == self
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// KNearest returns, for every indexed point, the indices of its k nearest
// indexed points. Each list starts with the point itself. When fewer than k
// points are indexed the lists are shorter. Results are memoized per k and
// shared between callers, so they must not be modified.
func (ix *Index) KNearest(k int) ([][]int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if cached, found := ix.memo[k]; found {
		return cached, nil
	}

	out := make([][]int, len(ix.points))
	err := forEachBlock(len(ix.points), ix.workers, func(start, end int) error {
		for index := start; index < end; index++ {
			neighbors := ix.query(ix.points[index], k, index)
			list := make([]int, len(neighbors))
			for i, n := range neighbors {
				list[i] = n.Index
			}
			out[index] = list
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ix.memo[k] = out
	return out, nil
}

// entry adapts an indexed point to the kdtree.Comparable interface.
type entry struct {
	pos   [3]float64
	index int
}

func (e entry) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(entry)
	return e.pos[d] - q.pos[d]
}

func (e entry) Dims() int {
	return 3
}

func (e entry) Distance(c kdtree.Comparable) float64 {
	q := c.(entry)
	dx, dy, dz := e.pos[0]-q.pos[0], e.pos[1]-q.pos[1], e.pos[2]-q.pos[2]
	return dx*dx + dy*dy + dz*dz
}

// entries implements kdtree.Interface.
type entries []entry

func (p entries) Index(i int) kdtree.Comparable         { return p[i] }
func (p entries) Len() int                              { return len(p) }
func (p entries) Pivot(d kdtree.Dim) int                { return plane{entries: p, Dim: d}.Pivot() }
func (p entries) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts entries along a single dimension.
type plane struct {
	kdtree.Dim
	entries
}

func (p plane) Less(i, j int) bool {
	return p.entries[i].pos[p.Dim] < p.entries[j].pos[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.entries = p.entries[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.entries[i], p.entries[j] = p.entries[j], p.entries[i]
}
