package optim

import "fmt"

// A serializable copy of a param together with its moment state.
type ParamSnapshot struct {
	Name       string
	Stride     int
	LR         float32
	Structural bool
	Data       []float32

	HasState bool
	Step     int
	ExpAvg   []float32
	ExpAvgSq []float32
}

// Export a deep copy of every tracked param and its state.
func (o *Adam) Export() []ParamSnapshot {
	out := make([]ParamSnapshot, 0, len(o.groups))
	for _, p := range o.groups {
		ps := ParamSnapshot{
			Name:       p.Name,
			Stride:     p.Stride,
			LR:         p.LR,
			Structural: p.Structural,
			Data:       append([]float32(nil), p.Data...),
		}
		if st := o.state[p]; st != nil {
			ps.HasState = true
			ps.Step = st.Step
			ps.ExpAvg = append([]float32(nil), st.ExpAvg...)
			ps.ExpAvgSq = append([]float32(nil), st.ExpAvgSq...)
		}
		out = append(out, ps)
	}
	return out
}

// Restore builds an optimizer from exported snapshots.
func Restore(opts Options, snapshots []ParamSnapshot) (*Adam, error) {
	o := NewAdam(opts)
	for _, ps := range snapshots {
		if ps.Stride != 0 && len(ps.Data)%ps.Stride != 0 {
			return nil, fmt.Errorf("%w: %q", ErrStride, ps.Name)
		}
		p := &Param{
			Name:       ps.Name,
			Stride:     ps.Stride,
			LR:         ps.LR,
			Structural: ps.Structural,
			Data:       append([]float32(nil), ps.Data...),
		}
		o.groups = append(o.groups, p)
		if !ps.HasState {
			continue
		}
		if len(ps.ExpAvg) != len(ps.Data) || len(ps.ExpAvgSq) != len(ps.Data) {
			return nil, fmt.Errorf("%w: %q", ErrStateLength, ps.Name)
		}
		o.state[p] = &State{
			Step:     ps.Step,
			ExpAvg:   append([]float32(nil), ps.ExpAvg...),
			ExpAvgSq: append([]float32(nil), ps.ExpAvgSq...),
		}
	}
	return o, nil
}
