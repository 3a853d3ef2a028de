package optim

import (
	"fmt"
	"math"
)

// Adam hyper-parameters.
type Options struct {
	Beta1 float64
	Beta2 float64
	Eps   float64
}

// Default Adam hyper-parameters. The tiny epsilon matches what splat
// training pipelines use for their raw attribute groups.
func DefaultOptions() Options {
	return Options{
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-15,
	}
}

// Adam is a gradient descent optimizer that keeps per-param first and second
// moment estimates. State is keyed by param identity; structural operations
// always install a new *Param and move the (resized) state over to it.
type Adam struct {
	opts   Options
	groups []*Param
	state  map[*Param]*State
}

// Create a new optimizer tracking the given params.
func NewAdam(opts Options, params ...*Param) *Adam {
	o := &Adam{
		opts:  opts,
		state: make(map[*Param]*State),
	}
	o.groups = append(o.groups, params...)
	return o
}

// Get the currently tracked param with the given name or nil.
func (o *Adam) Param(name string) *Param {
	for _, p := range o.groups {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Get all tracked params in registration order.
func (o *Adam) Params() []*Param {
	out := make([]*Param, len(o.groups))
	copy(out, o.groups)
	return out
}

// Get the moment state for a param or nil if the optimizer has not stepped
// it yet.
func (o *Adam) State(p *Param) *State {
	return o.state[p]
}

// Update the learning rate of a named param.
func (o *Adam) SetLR(name string, lr float32) error {
	p := o.Param(name)
	if p == nil {
		return fmt.Errorf("%w %q", ErrUnknownParam, name)
	}
	p.LR = lr
	return nil
}

// Apply a single Adam update to every param that carries a gradient.
func (o *Adam) Step() {
	b1, b2, eps := o.opts.Beta1, o.opts.Beta2, o.opts.Eps

	for _, p := range o.groups {
		if p.Grad == nil || len(p.Grad) != len(p.Data) {
			continue
		}

		st := o.state[p]
		if st == nil {
			st = newState(len(p.Data))
			o.state[p] = st
		}
		st.Step++
		b1Corr := 1.0 - math.Pow(b1, float64(st.Step))
		b2Corr := 1.0 - math.Pow(b2, float64(st.Step))
		lr := float64(p.LR)

		for j, g32 := range p.Grad {
			g := float64(g32)
			m := b1*float64(st.ExpAvg[j]) + (1-b1)*g
			v := b2*float64(st.ExpAvgSq[j]) + (1-b2)*g*g
			st.ExpAvg[j] = float32(m)
			st.ExpAvgSq[j] = float32(v)

			mhat := m / b1Corr
			vhat := v / b2Corr
			p.Data[j] -= float32(lr * mhat / (math.Sqrt(vhat) + eps))
		}
	}
}

// Replace the data of a named param. The new data is installed as a new
// param identity with zeroed moment estimates (when the old param had any).
func (o *Adam) Replace(name string, data []float32) (*Param, error) {
	for index, p := range o.groups {
		if p.Name != name {
			continue
		}
		if p.Stride != 0 && len(data)%p.Stride != 0 {
			return nil, fmt.Errorf("%w: %q expects rows of %d values; got %d values", ErrStride, name, p.Stride, len(data))
		}

		np := &Param{Name: p.Name, Stride: p.Stride, Data: data, LR: p.LR, Structural: p.Structural}
		if st := o.state[p]; st != nil {
			o.state[np] = &State{
				Step:     st.Step,
				ExpAvg:   make([]float32, len(data)),
				ExpAvgSq: make([]float32, len(data)),
			}
			delete(o.state, p)
		}
		o.groups[index] = np
		return np, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownParam, name)
}
