// Package matrix provides the dense numeric primitives used by the neural network.
//
// A Dense is an immutable value: every operation allocates a new matrix and
// never writes into its operands, so a layer can hold on to a previous layer's
// activation without worrying that a later step will change it underneath.
//
// # Shape Errors
//
// Operations that combine two matrices (Mul, Add, Sub, Hadamard) check shapes
// and return an error wrapping ErrShape instead of panicking. Single-matrix
// operations (Transpose, Scale, Map) cannot fail.
package matrix

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
)

// ErrShape is returned when operand shapes are incompatible.
var ErrShape = errors.New("matrix shape mismatch")

// Dense is a row-major matrix of float64 values with an explicit shape.
type Dense struct {
	rows int
	cols int
	data []float64
}

// Shape describes matrix dimensions as rows × cols.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d×%d)", s.Rows, s.Cols)
}

// New returns a zero-filled rows×cols matrix.
func New(rows, cols int) Dense {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("matrix: negative dimensions %dx%d", rows, cols))
	}
	return Dense{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// FromRows builds a matrix from nested rows. The input is copied.
// Every row must have the same length.
func FromRows(rows [][]float64) (Dense, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	cols := len(rows[0])
	m := New(len(rows), cols)
	for r, row := range rows {
		if len(row) != cols {
			return Dense{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, r, len(row), cols)
		}
		copy(m.data[r*cols:(r+1)*cols], row)
	}
	return m, nil
}

// Column reshapes a flat vector into an n×1 column matrix. The input is copied.
func Column(values []float64) Dense {
	m := New(len(values), 1)
	copy(m.data, values)
	return m
}

// Random returns a rows×cols matrix with entries drawn uniformly from [lo, hi).
func Random(rows, cols int, lo, hi float64, rng *rand.Rand) Dense {
	m := New(rows, cols)
	span := hi - lo
	for i := range m.data {
		m.data[i] = lo + rng.Float64()*span
	}
	return m
}

// Rows returns the number of rows.
func (m Dense) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m Dense) Cols() int { return m.cols }

// Shape returns the matrix dimensions.
func (m Dense) Shape() Shape { return Shape{Rows: m.rows, Cols: m.cols} }

// At returns the element at row r, column c. It panics when out of range,
// matching slice indexing.
func (m Dense) At(r, c int) float64 {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		panic(fmt.Sprintf("matrix: index (%d,%d) out of range %s", r, c, m.Shape()))
	}
	return m.data[r*m.cols+c]
}

// Clone returns a deep copy.
func (m Dense) Clone() Dense {
	out := Dense{rows: m.rows, cols: m.cols, data: make([]float64, len(m.data))}
	copy(out.data, m.data)
	return out
}

// ToRows returns the matrix as freshly allocated nested rows.
func (m Dense) ToRows() [][]float64 {
	out := make([][]float64, m.rows)
	for r := 0; r < m.rows; r++ {
		row := make([]float64, m.cols)
		copy(row, m.data[r*m.cols:(r+1)*m.cols])
		out[r] = row
	}
	return out
}

// Values returns the elements in row-major order. For a column vector this is
// the vector itself.
func (m Dense) Values() []float64 {
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out
}

// Mul returns the matrix product a·b.
func Mul(a, b Dense) (Dense, error) {
	if a.cols != b.rows {
		return Dense{}, fmt.Errorf("%w: cannot multiply %s by %s", ErrShape, a.Shape(), b.Shape())
	}
	out := New(a.rows, b.cols)
	for r := 0; r < a.rows; r++ {
		for k := 0; k < a.cols; k++ {
			av := a.data[r*a.cols+k]
			if av == 0 {
				continue
			}
			for c := 0; c < b.cols; c++ {
				out.data[r*out.cols+c] += av * b.data[k*b.cols+c]
			}
		}
	}
	return out, nil
}

// Add returns a + b element-wise.
func Add(a, b Dense) (Dense, error) {
	return zipWith(a, b, "add", func(x, y float64) float64 { return x + y })
}

// Sub returns a − b element-wise.
func Sub(a, b Dense) (Dense, error) {
	return zipWith(a, b, "subtract", func(x, y float64) float64 { return x - y })
}

// Hadamard returns the element-wise product of a and b.
func Hadamard(a, b Dense) (Dense, error) {
	return zipWith(a, b, "multiply element-wise", func(x, y float64) float64 { return x * y })
}

func zipWith(a, b Dense, op string, fn func(x, y float64) float64) (Dense, error) {
	if a.rows != b.rows || a.cols != b.cols {
		return Dense{}, fmt.Errorf("%w: cannot %s %s and %s", ErrShape, op, a.Shape(), b.Shape())
	}
	out := New(a.rows, a.cols)
	for i := range a.data {
		out.data[i] = fn(a.data[i], b.data[i])
	}
	return out, nil
}

// Scale multiplies every element by k.
func (m Dense) Scale(k float64) Dense {
	return m.Map(func(x float64) float64 { return x * k })
}

// Map applies fn to every element.
func (m Dense) Map(fn func(float64) float64) Dense {
	out := New(m.rows, m.cols)
	for i, v := range m.data {
		out.data[i] = fn(v)
	}
	return out
}

// Transpose returns the cols×rows transpose.
func (m Dense) Transpose() Dense {
	out := New(m.cols, m.rows)
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			out.data[c*out.cols+r] = m.data[r*m.cols+c]
		}
	}
	return out
}

// ArgMax returns the row-major index of the largest element, taking the first
// occurrence on ties. It returns -1 for an empty matrix.
func (m Dense) ArgMax() int {
	if len(m.data) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(m.data); i++ {
		if m.data[i] > m.data[best] {
			best = i
		}
	}
	return best
}

// Mean returns the average of all elements, or 0 for an empty matrix.
func (m Dense) Mean() float64 {
	if len(m.data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.data {
		sum += v
	}
	return sum / float64(len(m.data))
}

// MarshalJSON encodes the matrix as nested rows.
func (m Dense) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToRows())
}

// UnmarshalJSON decodes nested rows.
func (m *Dense) UnmarshalJSON(b []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(b, &rows); err != nil {
		return err
	}
	d, err := FromRows(rows)
	if err != nil {
		return err
	}
	*m = d
	return nil
}
