package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ironsheep/alpr-mcp/internal/matrix"
)

// ErrStateMismatch is returned when a checkpoint is internally inconsistent or
// does not fit the network it is loaded into.
var ErrStateMismatch = errors.New("checkpoint does not match network")

// State is the complete persisted form of a network.
type State struct {
	Weights [][][]float64 `json:"weights"`
	Bias    [][][]float64 `json:"bias"`
	Outputs []string      `json:"outputs"`
}

// State returns a snapshot of the network's weights, biases and labels.
func (n *Network) State() State {
	s := State{
		Weights: make([][][]float64, len(n.weights)),
		Bias:    make([][][]float64, len(n.bias)),
		Outputs: n.Outputs(),
	}
	for i := range n.weights {
		s.Weights[i] = n.weights[i].ToRows()
		s.Bias[i] = n.bias[i].ToRows()
	}
	return s
}

// FromState reconstructs a network from a checkpoint state alone.
//
// The state must satisfy:
//   - len(Weights) == len(Bias) >= 1
//   - every layer's weight column count equals the previous layer's row count
//   - every bias is a column with the same row count as its weights
//   - len(Outputs) == rows of the last weight matrix, labels unique
func FromState(s State) (*Network, error) {
	if len(s.Weights) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrStateMismatch)
	}
	if len(s.Weights) != len(s.Bias) {
		return nil, fmt.Errorf("%w: %d weight matrices but %d bias vectors",
			ErrStateMismatch, len(s.Weights), len(s.Bias))
	}

	n := &Network{
		weights: make([]matrix.Dense, len(s.Weights)),
		bias:    make([]matrix.Dense, len(s.Bias)),
		outputs: append([]string(nil), s.Outputs...),
	}

	for i := range s.Weights {
		w, err := matrix.FromRows(s.Weights[i])
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d weights: %v", ErrStateMismatch, i, err)
		}
		b, err := matrix.FromRows(s.Bias[i])
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d bias: %v", ErrStateMismatch, i, err)
		}
		if w.Rows() == 0 || w.Cols() == 0 {
			return nil, fmt.Errorf("%w: layer %d has empty weights", ErrStateMismatch, i)
		}
		if b.Cols() != 1 || b.Rows() != w.Rows() {
			return nil, fmt.Errorf("%w: layer %d bias is %s, want (%d×1)",
				ErrStateMismatch, i, b.Shape(), w.Rows())
		}
		if i > 0 && w.Cols() != n.weights[i-1].Rows() {
			return nil, fmt.Errorf("%w: layer %d expects %d inputs but layer %d has %d nodes",
				ErrStateMismatch, i, w.Cols(), i-1, n.weights[i-1].Rows())
		}
		n.weights[i] = w
		n.bias[i] = b
	}
	n.inputSize = n.weights[0].Cols()

	last := n.weights[len(n.weights)-1]
	if len(n.outputs) != last.Rows() {
		return nil, fmt.Errorf("%w: %d output labels but output layer has %d nodes",
			ErrStateMismatch, len(n.outputs), last.Rows())
	}
	if err := checkLabels(n.outputs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}

	return n, nil
}

// Save writes the network checkpoint to path as JSON. The file is written to a
// temporary sibling first and renamed into place, so a reader never observes a
// half-written checkpoint. Parent directories are created as needed.
func (n *Network) Save(path string) error {
	data, err := json.Marshal(n.State())
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", path, err)
	}

	return nil
}

func readState(path string) (State, error) {
	var s State
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal checkpoint %s: %w", path, err)
	}
	return s, nil
}

// LoadFile reads a checkpoint and reconstructs the network it describes.
func LoadFile(path string) (*Network, error) {
	s, err := readState(path)
	if err != nil {
		return nil, err
	}
	n, err := FromState(s)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return n, nil
}

// Load replaces the network's weights, biases and output labels with the
// checkpoint at path.
//
// The checkpoint must have the same input size and output count as this
// network; otherwise ErrStateMismatch is returned and the network is left
// unchanged. The label order is taken from the checkpoint, because that is the
// order its weights were trained against. A differing order is logged since
// callers holding the old label slice would misread predictions.
func (n *Network) Load(path string) error {
	loaded, err := LoadFile(path)
	if err != nil {
		return err
	}
	if loaded.inputSize != n.inputSize {
		return fmt.Errorf("%w: checkpoint %s has %d inputs, network has %d",
			ErrStateMismatch, path, loaded.inputSize, n.inputSize)
	}
	if len(loaded.outputs) != len(n.outputs) {
		return fmt.Errorf("%w: checkpoint %s has %d output labels, network has %d",
			ErrStateMismatch, path, len(loaded.outputs), len(n.outputs))
	}
	for i := range n.outputs {
		if n.outputs[i] != loaded.outputs[i] {
			log.Printf("Network: checkpoint %s reorders output labels (%v -> %v)", path, n.outputs, loaded.outputs)
			break
		}
	}

	n.weights = loaded.weights
	n.bias = loaded.bias
	n.outputs = loaded.outputs
	return nil
}
