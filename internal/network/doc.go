// Package network implements the fully connected feed-forward network used to
// classify normalized character glyphs, its backpropagation training step, the
// epoch training loop, and the checkpoint file format.
//
// # Architecture
//
// A network has one or more hidden layers followed by an output layer. Layer i
// owns a weight matrix of shape (nodes_i × nodes_{i-1}) and a bias column of
// shape (nodes_i × 1). Every node uses the logistic sigmoid activation, so each
// output lies in (0, 1) independently; outputs are not a probability
// distribution.
//
// # Labels
//
// The output layer has one node per label. The label order is positional: the
// argmax of the output vector indexes into it. Reordering labels after training
// makes a checkpoint meaningless, which is why Load refuses checkpoints whose
// output count disagrees with the constructed network and logs when the order
// changed.
//
// # Training
//
// Train performs one step of online gradient descent. The backward pass reads
// only the weights that existed before the step; new weights and biases are
// staged per layer and swapped in together when the pass finishes. The loss
// returned is the mean of the squared output errors.
//
// # Checkpoint Format
//
// Checkpoints are JSON objects with three keys:
//
//	{"weights": [[[...]]], "bias": [[[...]]], "outputs": ["A", "B", ...]}
//
// weights and bias hold one nested-row matrix per layer. There is no version
// field.
package network
