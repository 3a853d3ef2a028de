package optim

import "fmt"

// Filter keeps the rows selected by mask in every structural param. Moment
// state, when present, is filtered with the same mask so that state row j
// still describes surviving row j. The filtered arrays are installed as new
// param identities and returned keyed by name.
//
// The mask length must match the row count of every structural param;
// otherwise nothing is modified and ErrMaskLength is returned.
func (o *Adam) Filter(mask []bool) (map[string]*Param, error) {
	for _, p := range o.groups {
		if !p.Structural {
			continue
		}
		if p.Rows() != len(mask) || len(p.Data) != len(mask)*p.Stride {
			return nil, fmt.Errorf("%w: %q has %d rows; mask has %d entries", ErrMaskLength, p.Name, p.Rows(), len(mask))
		}
	}

	out := make(map[string]*Param, len(o.groups))
	for index, p := range o.groups {
		if !p.Structural {
			continue
		}

		np := &Param{
			Name:       p.Name,
			Stride:     p.Stride,
			Data:       FilterRows(p.Data, p.Stride, mask),
			LR:         p.LR,
			Structural: true,
		}
		if st := o.state[p]; st != nil {
			o.state[np] = &State{
				Step:     st.Step,
				ExpAvg:   FilterRows(st.ExpAvg, p.Stride, mask),
				ExpAvgSq: FilterRows(st.ExpAvgSq, p.Stride, mask),
			}
			delete(o.state, p)
		}
		o.groups[index] = np
		out[np.Name] = np
	}
	return out, nil
}

// Extend appends rows to every structural param. The values map must supply
// an entry for every structural param and all entries must describe the same
// number of rows. Moment state, when present, is padded with zeros for the
// appended rows. The extended arrays are installed as new param identities
// and returned keyed by name.
//
// On any precondition failure nothing is modified.
func (o *Adam) Extend(values map[string][]float32) (map[string]*Param, error) {
	count := -1
	structural := 0
	for _, p := range o.groups {
		if !p.Structural {
			continue
		}
		structural++

		rows, found := values[p.Name]
		if !found {
			return nil, fmt.Errorf("%w %q", ErrMissingParam, p.Name)
		}
		if len(rows)%p.Stride != 0 {
			return nil, fmt.Errorf("%w: %q expects rows of %d values; got %d values", ErrStride, p.Name, p.Stride, len(rows))
		}
		n := len(rows) / p.Stride
		if count == -1 {
			count = n
		} else if n != count {
			return nil, fmt.Errorf("%w: %q has %d rows; expected %d", ErrRowCount, p.Name, n, count)
		}
	}
	if len(values) != structural {
		for name := range values {
			if p := o.Param(name); p == nil || !p.Structural {
				return nil, fmt.Errorf("%w %q", ErrUnknownParam, name)
			}
		}
	}

	out := make(map[string]*Param, len(o.groups))
	for index, p := range o.groups {
		if !p.Structural {
			continue
		}

		rows := values[p.Name]
		np := &Param{
			Name:       p.Name,
			Stride:     p.Stride,
			Data:       AppendRows(p.Data, rows),
			LR:         p.LR,
			Structural: true,
		}
		if st := o.state[p]; st != nil {
			o.state[np] = &State{
				Step:     st.Step,
				ExpAvg:   PadRows(st.ExpAvg, len(rows)/p.Stride, p.Stride),
				ExpAvgSq: PadRows(st.ExpAvgSq, len(rows)/p.Stride, p.Stride),
			}
			delete(o.state, p)
		}
		o.groups[index] = np
		out[np.Name] = np
	}
	return out, nil
}
