package spatial

import "github.com/DYH200009/GRAPE/types"

// MeanNeighborDistance returns, for every indexed point, the mean squared
// distance to its k nearest other points. Points without any other point in
// the index get a zero distance.
func (ix *Index) MeanNeighborDistance(k int) ([]float32, error) {
	out := make([]float32, len(ix.points))
	err := forEachBlock(len(ix.points), ix.workers, func(start, end int) error {
		for index := start; index < end; index++ {
			neighbors := ix.query(ix.points[index], k+1, index)

			var sum float64
			count := 0
			for _, n := range neighbors {
				if n.Index == index {
					continue
				}
				if count == k {
					break
				}
				sum += n.Dist2
				count++
			}
			if count > 0 {
				out[index] = float32(sum / float64(count))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Distance between two points.
func Distance(a, b types.Vec3) float32 {
	return a.Sub(b).Len()
}
