package extract

import "fmt"

// Tensor is the dense result of an extraction, shaped [T, s0, s1, s2]:
// one box-sized slot per time key, in time key list order.
type Tensor struct {
	Variable string
	TimeKeys []string
	Box      Box // normalized
	Data     []float64

	shape [4]int
}

// NewTensor allocates a zeroed tensor for the given time keys and box.
func NewTensor(variable string, timeKeys []string, box Box) (*Tensor, error) {
	box = box.Normalize()
	s := box.Shape()
	n := uint64(len(timeKeys))
	for _, d := range s {
		if d != 0 && n > maxElements/d {
			return nil, fmt.Errorf("tensor of %d x %v elements is too large", len(timeKeys), s)
		}
		n *= d
	}
	return &Tensor{
		Variable: variable,
		TimeKeys: timeKeys,
		Box:      box,
		Data:     make([]float64, n),
		shape:    [4]int{len(timeKeys), int(s[0]), int(s[1]), int(s[2])},
	}, nil
}

// maxElements bounds the allocation at 2^48 values.
const maxElements = 1 << 48

// Shape returns [T, s0, s1, s2].
func (t *Tensor) Shape() [4]int {
	return t.shape
}

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// SlotLen returns the number of elements in one time slot.
func (t *Tensor) SlotLen() int {
	return t.shape[1] * t.shape[2] * t.shape[3]
}

// Slot returns the row-major data of time slot ti. The slice aliases Data.
func (t *Tensor) Slot(ti int) []float64 {
	n := t.SlotLen()
	return t.Data[ti*n : (ti+1)*n : (ti+1)*n]
}

// At returns the value at time slot ti and box-relative position (i, j, k).
func (t *Tensor) At(ti, i, j, k int) float64 {
	return t.Data[((ti*t.shape[1]+i)*t.shape[2]+j)*t.shape[3]+k]
}
