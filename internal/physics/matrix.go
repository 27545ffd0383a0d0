package physics

import "fmt"

// Matrix is the type interaction table: Get(i, j) is how strongly a particle
// of type i is attracted to (positive) or repelled by (negative) type j.
type Matrix struct {
	size   int
	values []float64
}

// NewMatrix returns a zero matrix of the given size. Size must be at least 1.
func NewMatrix(size int) *Matrix {
	if size < 1 {
		panic(fmt.Sprintf("physics: matrix size must be positive, got %d", size))
	}
	return &Matrix{size: size, values: make([]float64, size*size)}
}

func (m *Matrix) Size() int { return m.size }

// Get returns the coefficient of type i towards type j. It panics if either
// index is outside [0, Size).
func (m *Matrix) Get(i, j int) float64 {
	return m.values[m.index(i, j)]
}

// Set stores the coefficient of type i towards type j. It panics if either
// index is outside [0, Size).
func (m *Matrix) Set(i, j int, v float64) {
	m.values[m.index(i, j)] = v
}

func (m *Matrix) index(i, j int) int {
	if uint(i) >= uint(m.size) || uint(j) >= uint(m.size) {
		panic(fmt.Sprintf("physics: matrix index (%d, %d) out of range for size %d", i, j, m.size))
	}
	return i*m.size + j
}

// Rows returns a copy of the matrix as nested slices.
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, m.size)
	for i := range rows {
		rows[i] = append([]float64(nil), m.values[i*m.size:(i+1)*m.size]...)
	}
	return rows
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{size: m.size, values: append([]float64(nil), m.values...)}
}

// Equal reports whether both matrices have the same size and coefficients.
func (m *Matrix) Equal(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.size != o.size {
		return false
	}
	for i, v := range m.values {
		if o.values[i] != v {
			return false
		}
	}
	return true
}
