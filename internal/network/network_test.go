package network

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ironsheep/alpr-mcp/internal/matrix"
)

func newTestNetwork(t *testing.T, input int, hidden []int, outputs []string) *Network {
	t.Helper()
	n, err := New(input, hidden, outputs, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return n
}

func TestNew_Shapes(t *testing.T) {
	n := newTestNetwork(t, 4, []int{3}, []string{"A", "B"})

	shapes := n.Shapes()
	if len(shapes) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(shapes))
	}

	want := []LayerShape{
		{Weights: matrix.Shape{Rows: 3, Cols: 4}, Bias: matrix.Shape{Rows: 3, Cols: 1}},
		{Weights: matrix.Shape{Rows: 2, Cols: 3}, Bias: matrix.Shape{Rows: 2, Cols: 1}},
	}
	for i := range want {
		if shapes[i] != want[i] {
			t.Errorf("layer %d: got weights %s bias %s, want weights %s bias %s",
				i, shapes[i].Weights, shapes[i].Bias, want[i].Weights, want[i].Bias)
		}
	}
}

func TestNew_InitRanges(t *testing.T) {
	n := newTestNetwork(t, 10, []int{8, 6}, []string{"A", "B", "C"})

	s := n.State()
	for i, w := range s.Weights {
		for _, row := range w {
			for _, v := range row {
				if v < -1 || v >= 1 {
					t.Fatalf("layer %d weight %v outside [-1, 1)", i, v)
				}
			}
		}
	}
	for i, b := range s.Bias {
		for _, row := range b {
			for _, v := range row {
				if v < 0 || v >= 1 {
					t.Fatalf("layer %d bias %v outside [0, 1)", i, v)
				}
			}
		}
	}
}

func TestNew_LayersIndependent(t *testing.T) {
	// Two equally shaped layers must not receive the same random sequence.
	n := newTestNetwork(t, 3, []int{3, 3}, []string{"A", "B", "C"})
	w := n.State().Weights
	if w[1][0][0] == w[2][0][0] && w[1][1][1] == w[2][1][1] {
		t.Error("layers 1 and 2 were initialized from the same sequence")
	}
}

func TestNew_InvalidTopology(t *testing.T) {
	tests := []struct {
		name    string
		input   int
		hidden  []int
		outputs []string
	}{
		{"zero input", 0, []int{3}, []string{"A"}},
		{"empty hidden layer", 4, []int{0}, []string{"A"}},
		{"no outputs", 4, []int{3}, nil},
		{"duplicate labels", 4, []int{3}, []string{"A", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.input, tt.hidden, tt.outputs, nil)
			if !errors.Is(err, ErrInvalidTopology) {
				t.Errorf("expected ErrInvalidTopology, got %v", err)
			}
		})
	}
}

func TestFeedforward_OutputRange(t *testing.T) {
	n := newTestNetwork(t, 6, []int{5, 4}, []string{"A", "B", "C"})

	acts, err := n.Feedforward([]float64{0, 1, 0.5, 1, 0, 0.25})
	if err != nil {
		t.Fatalf("Feedforward failed: %v", err)
	}
	if acts.Output.Rows() != 3 || acts.Output.Cols() != 1 {
		t.Fatalf("output shape %s, want (3×1)", acts.Output.Shape())
	}
	for _, v := range acts.Output.Values() {
		if v <= 0 || v >= 1 {
			t.Errorf("output %v outside (0, 1)", v)
		}
	}
	if len(acts.Hidden) != 2 {
		t.Errorf("expected 2 hidden activations, got %d", len(acts.Hidden))
	}
	if acts.Input.Rows() != 6 || acts.Input.Cols() != 1 {
		t.Errorf("input not reshaped to a column: %s", acts.Input.Shape())
	}
}

func TestFeedforward_InputSize(t *testing.T) {
	n := newTestNetwork(t, 4, []int{3}, []string{"A", "B"})
	if _, err := n.Feedforward([]float64{1, 2}); !errors.Is(err, ErrInputSize) {
		t.Errorf("expected ErrInputSize, got %v", err)
	}
}

func TestTarget(t *testing.T) {
	n := newTestNetwork(t, 4, []int{3}, []string{"A", "B"})

	target, err := n.Target("A")
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	got := target.ToRows()
	if len(got) != 2 || got[0][0] != 1 || got[1][0] != 0 {
		t.Errorf("Target(A) = %v, want [[1] [0]]", got)
	}
}

func TestTrain_UnknownLabel(t *testing.T) {
	n := newTestNetwork(t, 4, []int{3}, []string{"A", "B"})
	before := n.State()

	_, err := n.Train([]float64{1, 0, 1, 0}, "Z", 0.5)
	if !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
	if !statesEqual(before, n.State()) {
		t.Error("network changed after rejected training step")
	}
}

// TestTrain_UsesPreStepWeights recomputes one step by hand on a tiny fixed
// network and checks every updated weight and bias.
func TestTrain_UsesPreStepWeights(t *testing.T) {
	state := State{
		Weights: [][][]float64{
			{{0.15, 0.20}, {0.25, 0.30}},
			{{0.40, 0.45}, {0.50, 0.55}},
		},
		Bias:    [][][]float64{{{0.35}, {0.35}}, {{0.60}, {0.60}}},
		Outputs: []string{"A", "B"},
	}
	n, err := FromState(state)
	if err != nil {
		t.Fatalf("FromState failed: %v", err)
	}

	input := []float64{0.05, 0.10}
	rate := 0.5
	sig := func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

	w0, b0 := state.Weights[0], state.Bias[0]
	w1, b1 := state.Weights[1], state.Bias[1]

	h := make([]float64, 2)
	for r := 0; r < 2; r++ {
		h[r] = sig(w0[r][0]*input[0] + w0[r][1]*input[1] + b0[r][0])
	}
	o := make([]float64, 2)
	for r := 0; r < 2; r++ {
		o[r] = sig(w1[r][0]*h[0] + w1[r][1]*h[1] + b1[r][0])
	}
	target := []float64{1, 0}

	outCorr := make([]float64, 2)
	var wantErr float64
	for r := 0; r < 2; r++ {
		e := target[r] - o[r]
		wantErr += e * e / 2
		outCorr[r] = e * o[r] * (1 - o[r])
	}
	hidCorr := make([]float64, 2)
	for c := 0; c < 2; c++ {
		// Uses the original output weights, not the updated ones.
		e := w1[0][c]*outCorr[0] + w1[1][c]*outCorr[1]
		hidCorr[c] = e * h[c] * (1 - h[c])
	}

	gotErr, err := n.Train(input, "A", rate)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if math.Abs(gotErr-wantErr) > 1e-12 {
		t.Errorf("error = %v, want %v", gotErr, wantErr)
	}

	got := n.State()
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			want1 := w1[r][c] + rate*outCorr[r]*h[c]
			if math.Abs(got.Weights[1][r][c]-want1) > 1e-12 {
				t.Errorf("output weight (%d,%d) = %v, want %v", r, c, got.Weights[1][r][c], want1)
			}
			want0 := w0[r][c] + rate*hidCorr[r]*input[c]
			if math.Abs(got.Weights[0][r][c]-want0) > 1e-12 {
				t.Errorf("hidden weight (%d,%d) = %v, want %v", r, c, got.Weights[0][r][c], want0)
			}
		}
		if want := b1[r][0] + rate*outCorr[r]; math.Abs(got.Bias[1][r][0]-want) > 1e-12 {
			t.Errorf("output bias %d = %v, want %v", r, got.Bias[1][r][0], want)
		}
		if want := b0[r][0] + rate*hidCorr[r]; math.Abs(got.Bias[0][r][0]-want) > 1e-12 {
			t.Errorf("hidden bias %d = %v, want %v", r, got.Bias[0][r][0], want)
		}
	}
}

func TestTrain_LearnsSeparableSamples(t *testing.T) {
	n := newTestNetwork(t, 4, []int{6}, []string{"left", "right"})
	left := []float64{1, 1, 0, 0}
	right := []float64{0, 0, 1, 1}

	var first, last float64
	for i := 0; i < 2000; i++ {
		e1, err := n.Train(left, "left", 0.5)
		if err != nil {
			t.Fatalf("Train failed: %v", err)
		}
		e2, err := n.Train(right, "right", 0.5)
		if err != nil {
			t.Fatalf("Train failed: %v", err)
		}
		if i == 0 {
			first = (e1 + e2) / 2
		}
		last = (e1 + e2) / 2
	}

	if last >= first {
		t.Errorf("error did not decrease: first %v, last %v", first, last)
	}
	for _, tc := range []struct {
		input []float64
		want  string
	}{{left, "left"}, {right, "right"}} {
		label, conf, err := n.Predict(tc.input)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if label != tc.want {
			t.Errorf("Predict = %q (%.3f), want %q", label, conf, tc.want)
		}
	}
}

func TestClassify_FirstOnTies(t *testing.T) {
	n := newTestNetwork(t, 2, []int{2}, []string{"A", "B", "C"})
	label, idx := n.Classify(matrix.Column([]float64{0.2, 0.8, 0.8}))
	if label != "B" || idx != 1 {
		t.Errorf("Classify = %q/%d, want B/1", label, idx)
	}
}
