package spatial

import (
	"math"

	"github.com/DYH200009/GRAPE/types"
)

// Options for the normal-agreement classifier.
type ClassifierOptions struct {
	// Number of neighbors (including the point itself) inspected per point.
	K int

	// Max angle in radians between the normal of a point and the normals of
	// its neighbors for the neighborhood to count as smooth.
	MaxAngle float64

	// Initial summed-distance threshold below which a smooth neighborhood is
	// marked as planar.
	DistanceThreshold float32

	// Amount subtracted from the threshold after every pass.
	DistanceDecay float32

	// Lower bound for the decayed threshold.
	MinDistance float32
}

// Default classifier options.
func DefaultClassifierOptions() ClassifierOptions {
	return ClassifierOptions{
		K:                 4,
		MaxAngle:          0.03,
		DistanceThreshold: 0.03,
		DistanceDecay:     0.0002,
		MinDistance:       0.001,
	}
}

// Classifier marks points that sit in smooth, dense neighborhoods as planar.
// The distance threshold tightens with every Decay call down to
// opts.MinDistance.
type Classifier struct {
	opts      ClassifierOptions
	threshold float32
}

// Create a new classifier.
func NewClassifier(opts ClassifierOptions) *Classifier {
	return &Classifier{
		opts:      opts,
		threshold: opts.DistanceThreshold,
	}
}

// Current summed-distance threshold.
func (c *Classifier) Threshold() float32 {
	return c.threshold
}

// Override the current summed-distance threshold, e.g. when resuming from
// a checkpoint.
func (c *Classifier) SetThreshold(threshold float32) {
	c.threshold = threshold
}

// Classify returns a mask with the planar points set. neighbors must come
// from an index over points queried with k >= opts.K; only the first K
// entries of each list are inspected.
func (c *Classifier) Classify(points, normals []types.Vec3, neighbors [][]int) []bool {
	planar := make([]bool, len(points))
	minCos := float32(math.Cos(c.opts.MaxAngle))

	for _, list := range neighbors {
		if len(list) > c.opts.K {
			list = list[:c.opts.K]
		}
		if len(list) == 0 {
			continue
		}

		origin := list[0]
		var distance float32
		smooth := true
		for _, n := range list {
			distance += Distance(points[origin], points[n])

			cos := normals[origin].Dot(normals[n])
			if cos < 0 {
				cos = -cos
			}
			if cos < minCos {
				smooth = false
				break
			}
		}

		if smooth && distance < c.threshold {
			for _, n := range list {
				planar[n] = true
			}
		}
	}

	return planar
}

// Decay tightens the distance threshold by one step. It is applied once per
// densification cycle.
func (c *Classifier) Decay() {
	if c.threshold > c.opts.MinDistance {
		c.threshold -= c.opts.DistanceDecay
	}
	if c.threshold < c.opts.MinDistance {
		c.threshold = c.opts.MinDistance
	}
}
