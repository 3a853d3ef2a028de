package optim

// FilterRows returns a new slice holding the rows of data (each stride
// values wide) whose mask entry is true. The caller must ensure that
// len(mask)*stride == len(data).
func FilterRows[T any](data []T, stride int, mask []bool) []T {
	out := make([]T, 0, CountTrue(mask)*stride)
	for row, keep := range mask {
		if keep {
			out = append(out, data[row*stride:(row+1)*stride]...)
		}
	}
	return out
}

// AppendRows returns a new slice containing data followed by rows. The
// result never aliases either input.
func AppendRows[T any](data, rows []T) []T {
	out := make([]T, 0, len(data)+len(rows))
	out = append(out, data...)
	return append(out, rows...)
}

// PadRows returns a new slice containing data followed by count zero-valued
// rows of the given stride.
func PadRows[T any](data []T, count, stride int) []T {
	out := make([]T, len(data)+count*stride)
	copy(out, data)
	return out
}

// GatherRows collects the rows at the given indices, in order.
func GatherRows[T any](data []T, stride int, indices []int) []T {
	out := make([]T, 0, len(indices)*stride)
	for _, row := range indices {
		out = append(out, data[row*stride:(row+1)*stride]...)
	}
	return out
}

// CountTrue returns the number of set entries in mask.
func CountTrue(mask []bool) int {
	count := 0
	for _, v := range mask {
		if v {
			count++
		}
	}
	return count
}

// MaskIndices returns the indices of the set entries in mask.
func MaskIndices(mask []bool) []int {
	out := make([]int, 0, CountTrue(mask))
	for index, v := range mask {
		if v {
			out = append(out, index)
		}
	}
	return out
}
