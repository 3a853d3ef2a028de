package splat

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/DYH200009/GRAPE/types"
	"github.com/olekukonko/tablewriter"
)

// Summary statistics over the current population.
type Summary struct {
	Primitives int
	Volumetric int
	Planar     int

	ActiveSHDegree int
	MaxSHDegree    int

	MinOpacity  float32
	MeanOpacity float32
	MaxOpacity  float32

	// Largest physical scale axis over all primitives.
	MaxScale float32

	// Axis aligned bounds of the primitive centers.
	Min types.Vec3
	Max types.Vec3
}

// Summarize the population.
func (m *Model) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary()
}

func (m *Model) summary() Summary {
	s := Summary{
		Primitives:     m.len(),
		ActiveSHDegree: m.activeSHDegree,
		MaxSHDegree:    m.maxSHDegree,
	}
	if s.Primitives == 0 {
		return s
	}

	inf := float32(math.Inf(1))
	s.MinOpacity = inf
	s.Min = types.XYZ(inf, inf, inf)
	s.Max = types.XYZ(-inf, -inf, -inf)

	var opSum float64
	for i := 0; i < s.Primitives; i++ {
		if m.kinds[i] == Planar {
			s.Planar++
		} else {
			s.Volumetric++
		}

		op := types.Sigmoid(m.opacity.Data[i])
		opSum += float64(op)
		if op < s.MinOpacity {
			s.MinOpacity = op
		}
		if op > s.MaxOpacity {
			s.MaxOpacity = op
		}
		if sc := m.scale(i).MaxComponent(); sc > s.MaxScale {
			s.MaxScale = sc
		}

		p := m.position(i)
		s.Min = types.MinVec3(s.Min, p)
		s.Max = types.MaxVec3(s.Max, p)
	}
	s.MeanOpacity = float32(opSum / float64(s.Primitives))
	return s
}

// Build a tabular representation of the model statistics and memory use.
func (m *Model) Stats() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.summary()
	var rest []float32
	if m.featuresRest != nil {
		rest = m.featuresRest.Data
	}
	var momentum []float32
	for _, p := range m.optimizer.Params() {
		if st := m.optimizer.State(p); st != nil {
			momentum = append(momentum, st.ExpAvg...)
			momentum = append(momentum, st.ExpAvgSq...)
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Group", "Attribute", "Value", "Size"})
	table.Append([]string{"Population", "---", fmt.Sprint(s.Primitives), ""})
	table.Append([]string{"", "Volumetric", fmt.Sprint(s.Volumetric), ""})
	table.Append([]string{"", "Planar", fmt.Sprint(s.Planar), ""})
	table.Append([]string{"", "SH degree", fmt.Sprintf("%d / %d", s.ActiveSHDegree, s.MaxSHDegree), ""})
	table.Append([]string{" ", " ", " ", " "})
	table.Append([]string{"Appearance", "---", "", fmtSize(m.featuresDC.Data, rest, m.opacity.Data)})
	table.Append([]string{"", "Features (DC)", "", fmtSize(m.featuresDC.Data)})
	table.Append([]string{"", "Features (rest)", "", fmtSize(rest)})
	table.Append([]string{"", "Opacity", fmt.Sprintf("%.3f / %.3f / %.3f", s.MinOpacity, s.MeanOpacity, s.MaxOpacity), fmtSize(m.opacity.Data)})
	table.Append([]string{" ", " ", " ", " "})
	table.Append([]string{"Geometry", "---", "", fmtSize(m.xyz.Data, m.scaling.Data, m.rotation.Data, m.normals)})
	table.Append([]string{"", "Positions", fmt.Sprintf("%v - %v", fmtVec(s.Min), fmtVec(s.Max)), fmtSize(m.xyz.Data)})
	table.Append([]string{"", "Scaling", fmt.Sprintf("max %.4f", s.MaxScale), fmtSize(m.scaling.Data)})
	table.Append([]string{"", "Rotation", "", fmtSize(m.rotation.Data)})
	table.Append([]string{"", "Normals", "", fmtSize(m.normals)})
	table.Append([]string{" ", " ", " ", " "})
	table.Append([]string{"Bookkeeping", "---", "", fmtSize(m.kinds, m.scores, m.stableIDs, m.screenGradAccum, m.positionGradAccum, m.denom, m.maxRadii)})
	table.Append([]string{"", "Types/scores/ids", "", fmtSize(m.kinds, m.scores, m.stableIDs)})
	table.Append([]string{"", "Gradient stats", "", fmtSize(m.screenGradAccum, m.positionGradAccum, m.denom, m.maxRadii)})
	table.Append([]string{"", "Optimizer state", "", fmtSize(momentum)})
	table.SetFooter([]string{"Total", " ", " ", strings.TrimLeft(fmtSize(
		m.featuresDC.Data, rest, m.opacity.Data, m.xyz.Data, m.scaling.Data, m.rotation.Data, m.normals,
		m.kinds, m.scores, m.stableIDs, m.screenGradAccum, m.positionGradAccum, m.denom, m.maxRadii, momentum,
	), " ")})

	table.Render()
	return buf.String()
}

func fmtVec(v types.Vec3) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v[0], v[1], v[2])
}

// Sum the total space used by a set of slices and return back a formatted
// value with the appropriate byte/kb/mb unit.
func fmtSize(items ...interface{}) string {
	var totalBytes float32 = 0.0
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(t.Elem().Size()) * v.Len())
	}

	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
