package network

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ironsheep/alpr-mcp/internal/matrix"
)

var (
	// ErrUnknownLabel is returned by Train when the target label is not one of
	// the network's outputs. A one-hot target for such a label would be all
	// zeros, which still produces a gradient, just a meaningless one.
	ErrUnknownLabel = errors.New("label not in output set")

	// ErrInputSize is returned when an input vector does not match the
	// network's input layer.
	ErrInputSize = errors.New("input size mismatch")

	// ErrInvalidTopology is returned by New for unusable layer sizes or labels.
	ErrInvalidTopology = errors.New("invalid network topology")
)

// Network is a sigmoid multilayer perceptron with one weight matrix and one
// bias column per layer (hidden layers first, output layer last).
//
// A Network is not safe for concurrent Train calls. Feedforward only reads
// state and may run concurrently as long as no Train or Load is in flight.
type Network struct {
	inputSize int
	weights   []matrix.Dense
	bias      []matrix.Dense
	outputs   []string
}

// Activations holds every layer value produced by a forward pass.
type Activations struct {
	// Input is the input vector reshaped into a column.
	Input matrix.Dense

	// Hidden holds the activation of every non-final layer, in order.
	Hidden []matrix.Dense

	// Output is the final layer activation, one row per output label.
	Output matrix.Dense
}

// LayerShape reports the weight and bias dimensions of one layer.
type LayerShape struct {
	Weights matrix.Shape `json:"weights"`
	Bias    matrix.Shape `json:"bias"`
}

// New creates a network with randomly initialized weights and biases.
//
// Parameters:
//   - inputSize: Number of input nodes (for 28×28 glyphs, 784).
//   - hidden: Node count of each hidden layer, in order. May be empty, in which
//     case the output layer connects directly to the input.
//   - outputs: Ordered output labels. Must be non-empty and unique.
//   - rng: Source of randomness. If nil, a time-seeded source is used.
//
// Weights are drawn uniformly from [-1, 1) and biases from [0, 1). Each layer
// draws from its own generator seeded from rng so that no layer shares a
// random sequence with another.
func New(inputSize int, hidden []int, outputs []string, rng *rand.Rand) (*Network, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("%w: input size must be positive, got %d", ErrInvalidTopology, inputSize)
	}
	for i, nodes := range hidden {
		if nodes <= 0 {
			return nil, fmt.Errorf("%w: hidden layer %d has %d nodes", ErrInvalidTopology, i, nodes)
		}
	}
	if err := checkLabels(outputs); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sizes := make([]int, 0, len(hidden)+1)
	sizes = append(sizes, hidden...)
	sizes = append(sizes, len(outputs))

	n := &Network{
		inputSize: inputSize,
		weights:   make([]matrix.Dense, len(sizes)),
		bias:      make([]matrix.Dense, len(sizes)),
		outputs:   append([]string(nil), outputs...),
	}

	previous := inputSize
	for i, nodes := range sizes {
		layerRNG := rand.New(rand.NewSource(rng.Int63()))
		n.weights[i] = matrix.Random(nodes, previous, -1, 1, layerRNG)
		n.bias[i] = matrix.Random(nodes, 1, 0, 1, layerRNG)
		previous = nodes
	}

	return n, nil
}

func checkLabels(outputs []string) error {
	if len(outputs) == 0 {
		return fmt.Errorf("%w: at least one output label is required", ErrInvalidTopology)
	}
	seen := make(map[string]bool, len(outputs))
	for _, label := range outputs {
		if seen[label] {
			return fmt.Errorf("%w: duplicate output label %q", ErrInvalidTopology, label)
		}
		seen[label] = true
	}
	return nil
}

// InputSize returns the number of input nodes.
func (n *Network) InputSize() int { return n.inputSize }

// Outputs returns a copy of the ordered output labels.
func (n *Network) Outputs() []string {
	return append([]string(nil), n.outputs...)
}

// Shapes returns the weight and bias shape of every layer.
func (n *Network) Shapes() []LayerShape {
	shapes := make([]LayerShape, len(n.weights))
	for i := range n.weights {
		shapes[i] = LayerShape{Weights: n.weights[i].Shape(), Bias: n.bias[i].Shape()}
	}
	return shapes
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// sigmoidDerivative takes the activation a = σ(x), not x.
func sigmoidDerivative(a float64) float64 {
	return a * (1 - a)
}

// Feedforward runs a forward pass and returns every layer's activation.
func (n *Network) Feedforward(input []float64) (*Activations, error) {
	if len(input) != n.inputSize {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInputSize, len(input), n.inputSize)
	}

	acts := &Activations{
		Input:  matrix.Column(input),
		Hidden: make([]matrix.Dense, 0, len(n.weights)-1),
	}

	layer := acts.Input
	for i, w := range n.weights {
		pre, err := matrix.Mul(w, layer)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		pre, err = matrix.Add(pre, n.bias[i])
		if err != nil {
			return nil, fmt.Errorf("layer %d bias: %w", i, err)
		}
		layer = pre.Map(sigmoid)
		if i != len(n.weights)-1 {
			acts.Hidden = append(acts.Hidden, layer)
		}
	}
	acts.Output = layer

	return acts, nil
}

// Classify maps an output column to its label: the label at the index of the
// largest activation, first occurrence on ties.
func (n *Network) Classify(output matrix.Dense) (string, int) {
	idx := output.ArgMax()
	if idx < 0 || idx >= len(n.outputs) {
		return "", -1
	}
	return n.outputs[idx], idx
}

// Predict runs a forward pass and returns the winning label with its
// activation value.
func (n *Network) Predict(input []float64) (string, float64, error) {
	acts, err := n.Feedforward(input)
	if err != nil {
		return "", 0, err
	}
	label, idx := n.Classify(acts.Output)
	if idx < 0 {
		return "", 0, fmt.Errorf("network has no outputs")
	}
	return label, acts.Output.At(idx, 0), nil
}

func (n *Network) labelIndex(label string) int {
	for i, l := range n.outputs {
		if l == label {
			return i
		}
	}
	return -1
}

// Target builds the one-hot target column for label: 1 at the label's
// position and 0 everywhere else.
func (n *Network) Target(label string) (matrix.Dense, error) {
	idx := n.labelIndex(label)
	if idx < 0 {
		return matrix.Dense{}, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	values := make([]float64, len(n.outputs))
	values[idx] = 1
	return matrix.Column(values), nil
}

// Train performs one backpropagation step on a single sample and returns the
// mean squared output error measured before the update.
//
// # Algorithm
//
//  1. Forward pass, recording the input and every hidden activation.
//  2. outputError = target − output.
//  3. From the last layer down to the first:
//     - propagated error is outputError for the last layer, otherwise
//     transpose(W_{i+1}) · correction_{i+1} using the pre-step W_{i+1};
//     - correction_i = propagated ⊙ a_i(1 − a_i), a_i being the layer's own activation;
//     - bias_i' = bias_i + rate·correction_i;
//     - W_i' = W_i + rate·correction_i · transpose(layerInput_i).
//  4. All staged weights and biases replace the old ones together.
func (n *Network) Train(input []float64, target string, learningRate float64) (float64, error) {
	targets, err := n.Target(target)
	if err != nil {
		return 0, err
	}
	acts, err := n.Feedforward(input)
	if err != nil {
		return 0, err
	}

	outputErrors, err := matrix.Sub(targets, acts.Output)
	if err != nil {
		return 0, fmt.Errorf("output error: %w", err)
	}

	last := len(n.weights) - 1
	newWeights := make([]matrix.Dense, len(n.weights))
	newBias := make([]matrix.Dense, len(n.bias))

	var correction matrix.Dense
	for i := last; i >= 0; i-- {
		current := acts.Output
		propagated := outputErrors
		if i != last {
			current = acts.Hidden[i]
			propagated, err = matrix.Mul(n.weights[i+1].Transpose(), correction)
			if err != nil {
				return 0, fmt.Errorf("layer %d error: %w", i, err)
			}
		}

		correction, err = matrix.Hadamard(propagated, current.Map(sigmoidDerivative))
		if err != nil {
			return 0, fmt.Errorf("layer %d correction: %w", i, err)
		}
		step := correction.Scale(learningRate)

		newBias[i], err = matrix.Add(n.bias[i], step)
		if err != nil {
			return 0, fmt.Errorf("layer %d bias: %w", i, err)
		}

		layerInput := acts.Input
		if i > 0 {
			layerInput = acts.Hidden[i-1]
		}
		delta, err := matrix.Mul(step, layerInput.Transpose())
		if err != nil {
			return 0, fmt.Errorf("layer %d delta: %w", i, err)
		}
		newWeights[i], err = matrix.Add(n.weights[i], delta)
		if err != nil {
			return 0, fmt.Errorf("layer %d weights: %w", i, err)
		}
	}

	n.weights = newWeights
	n.bias = newBias

	return outputErrors.Map(func(e float64) float64 { return e * e }).Mean(), nil
}
