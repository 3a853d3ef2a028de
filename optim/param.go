package optim

// A named optimizable array. The array is interpreted as a sequence of rows,
// each Stride values wide; structural params have one row per primitive.
type Param struct {
	Name   string
	Stride int

	Data []float32

	// Gradient written by the renderer. A nil Grad means no gradient is
	// available and the param is skipped by the optimizer step.
	Grad []float32

	// Learning rate.
	LR float32

	// Structural params are resized together with the population. Global
	// scalars are tracked but never filtered or extended.
	Structural bool
}

// Create a new structural param.
func NewParam(name string, stride int, data []float32, lr float32) *Param {
	return &Param{
		Name:       name,
		Stride:     stride,
		Data:       data,
		LR:         lr,
		Structural: true,
	}
}

// Create a new global param that is excluded from resize operations.
func NewGlobalParam(name string, data []float32, lr float32) *Param {
	return &Param{
		Name:   name,
		Stride: len(data),
		Data:   data,
		LR:     lr,
	}
}

// Number of rows in this param.
func (p *Param) Rows() int {
	if p.Stride == 0 {
		return 0
	}
	return len(p.Data) / p.Stride
}

// Row returns a view to the values of a single row.
func (p *Param) Row(index int) []float32 {
	return p.Data[index*p.Stride : (index+1)*p.Stride]
}

// Allocate (or clear) the gradient buffer and return it.
func (p *Param) ZeroGrad() []float32 {
	if len(p.Grad) != len(p.Data) {
		p.Grad = make([]float32, len(p.Data))
		return p.Grad
	}
	for i := range p.Grad {
		p.Grad[i] = 0
	}
	return p.Grad
}

// Adam moment estimates for a single param.
type State struct {
	Step     int
	ExpAvg   []float32
	ExpAvgSq []float32
}

func newState(size int) *State {
	return &State{
		ExpAvg:   make([]float32, size),
		ExpAvgSq: make([]float32, size),
	}
}
