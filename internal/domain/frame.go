package domain

import "math"

// Frame is a bounded bar history with indicator columns aligned to Bars by index.
type Frame struct {
	Bars    []Bar
	Columns map[string][]float64
}

// Len returns the number of rows in the frame.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Bars)
}

// Last returns the most recent bar. It panics on an empty frame.
func (f *Frame) Last() Bar {
	return f.Bars[len(f.Bars)-1]
}

// Value returns the named column at row i from the end (0 = latest).
// The second result is false when the column is missing, out of range, or NaN.
func (f *Frame) Value(column string, back int) (float64, bool) {
	if f == nil {
		return 0, false
	}
	col, ok := f.Columns[column]
	if !ok {
		return 0, false
	}
	idx := len(col) - 1 - back
	if idx < 0 || idx >= len(col) {
		return 0, false
	}
	v := col[idx]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Latest is shorthand for Value(column, 0).
func (f *Frame) Latest(column string) (float64, bool) {
	return f.Value(column, 0)
}
