package matrix

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
)

func mustRows(t *testing.T, rows [][]float64) Dense {
	t.Helper()
	m, err := FromRows(rows)
	if err != nil {
		t.Fatalf("FromRows failed: %v", err)
	}
	return m
}

func equalRows(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func TestFromRows_Ragged(t *testing.T) {
	_, err := FromRows([][]float64{{1, 2}, {3}})
	if !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestFromRows_CopiesInput(t *testing.T) {
	src := [][]float64{{1, 2}, {3, 4}}
	m := mustRows(t, src)
	src[0][0] = 99
	if m.At(0, 0) != 1 {
		t.Errorf("matrix aliased its input: At(0,0) = %v", m.At(0, 0))
	}
}

func TestColumn(t *testing.T) {
	m := Column([]float64{1, 2, 3})
	if m.Shape() != (Shape{Rows: 3, Cols: 1}) {
		t.Fatalf("unexpected shape %s", m.Shape())
	}
	if m.At(2, 0) != 3 {
		t.Errorf("At(2,0) = %v, want 3", m.At(2, 0))
	}
}

func TestMul(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	b := mustRows(t, [][]float64{{7, 8}, {9, 10}, {11, 12}})

	got, err := Mul(a, b)
	if err != nil {
		t.Fatalf("Mul failed: %v", err)
	}
	want := [][]float64{{58, 64}, {139, 154}}
	if !equalRows(got.ToRows(), want) {
		t.Errorf("Mul = %v, want %v", got.ToRows(), want)
	}
}

func TestMul_ShapeMismatch(t *testing.T) {
	a := New(2, 3)
	b := New(2, 3)
	if _, err := Mul(a, b); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestElementwise(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2}, {3, 4}})
	b := mustRows(t, [][]float64{{5, 6}, {7, 8}})

	tests := []struct {
		name string
		fn   func(Dense, Dense) (Dense, error)
		want [][]float64
	}{
		{"add", Add, [][]float64{{6, 8}, {10, 12}}},
		{"sub", Sub, [][]float64{{-4, -4}, {-4, -4}}},
		{"hadamard", Hadamard, [][]float64{{5, 12}, {21, 32}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(a, b)
			if err != nil {
				t.Fatalf("%s failed: %v", tt.name, err)
			}
			if !equalRows(got.ToRows(), tt.want) {
				t.Errorf("got %v, want %v", got.ToRows(), tt.want)
			}
		})
	}

	if _, err := Add(a, New(3, 2)); !errors.Is(err, ErrShape) {
		t.Errorf("Add with mismatched shapes: expected ErrShape, got %v", err)
	}
}

func TestOperationsDoNotMutateOperands(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2}, {3, 4}})
	before := a.ToRows()

	_ = a.Scale(10)
	_ = a.Map(func(x float64) float64 { return -x })
	_ = a.Transpose()
	_, _ = Add(a, a)

	if !equalRows(a.ToRows(), before) {
		t.Errorf("operand mutated: %v, want %v", a.ToRows(), before)
	}
}

func TestTranspose(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	got := a.Transpose()
	want := [][]float64{{1, 4}, {2, 5}, {3, 6}}
	if !equalRows(got.ToRows(), want) {
		t.Errorf("Transpose = %v, want %v", got.ToRows(), want)
	}
}

func TestArgMax(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   int
	}{
		{"single max", []float64{0.1, 0.9, 0.3}, 1},
		{"first on ties", []float64{0.7, 0.2, 0.7}, 0},
		{"last element", []float64{0.1, 0.2, 0.3}, 2},
		{"empty", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Column(tt.values).ArgMax(); got != tt.want {
				t.Errorf("ArgMax = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRandom_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := Random(20, 30, -1, 1, rng)
	for _, v := range m.Values() {
		if v < -1 || v >= 1 {
			t.Fatalf("value %v outside [-1, 1)", v)
		}
	}
}

func TestJSON(t *testing.T) {
	a := mustRows(t, [][]float64{{0.5, -1.25}, {3, 4}})
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(b) != `[[0.5,-1.25],[3,4]]` {
		t.Errorf("unexpected encoding %s", b)
	}

	var back Dense
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !equalRows(back.ToRows(), a.ToRows()) {
		t.Errorf("decoded %v, want %v", back.ToRows(), a.ToRows())
	}
}

func TestValues(t *testing.T) {
	m := mustRows(t, [][]float64{{1, 2}, {3, 4}})

	got := m.Values()
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values = %v, want %v", got, want)
		}
	}

	got[0] = 99
	if m.At(0, 0) != 1 {
		t.Error("Values exposed the matrix storage")
	}
}

func TestMean(t *testing.T) {
	if got := mustRows(t, [][]float64{{1, 2}, {3, 6}}).Mean(); got != 3 {
		t.Errorf("Mean = %v, want 3", got)
	}
	if got := New(0, 0).Mean(); got != 0 {
		t.Errorf("empty Mean = %v, want 0", got)
	}
}
