package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Sample is one labeled training input.
type Sample struct {
	Input []float64
	Label string
}

// EpochStats describes one completed training epoch.
type EpochStats struct {
	Epoch    int
	Error    float64
	Lowest   float64
	Saved    bool
	Duration time.Duration
}

// Report summarizes a training run.
type Report struct {
	RunID       string        `json:"run_id"`
	Epochs      int           `json:"epochs"`
	FinalError  float64       `json:"final_error"`
	LowestError float64       `json:"lowest_error"`
	Converged   bool          `json:"converged"`
	Checkpoints int           `json:"checkpoints"`
	Duration    time.Duration `json:"duration"`
}

// Trainer drives epoch-based online training of a Network.
type Trainer struct {
	Network *Network

	// LearningRate scales every weight and bias update.
	LearningRate float64

	// Tolerance stops training once an epoch's mean error is at or below it.
	Tolerance float64

	// MaxEpochs bounds the run when positive; zero trains until Tolerance is
	// reached or the context is cancelled.
	MaxEpochs int

	// CheckpointPath receives a checkpoint every time the epoch error reaches a
	// new strict minimum. Empty disables saving.
	CheckpointPath string

	// Rand shuffles the dataset each epoch. If nil, a time-seeded source is used.
	Rand *rand.Rand

	// OnEpoch, if set, is called after every epoch.
	OnEpoch func(EpochStats)
}

// Run trains until the epoch error falls to Tolerance, MaxEpochs is reached,
// or ctx is cancelled.
//
// Every epoch reshuffles the full dataset and trains once per sample in that
// order; the epoch error is the mean of the per-sample errors. Whenever an
// epoch error is strictly lower than every previous one, the network is saved
// to CheckpointPath, so the lowest error is non-increasing across the run.
//
// Cancellation is observed between epochs only. On cancellation the report so
// far is returned together with the context error.
//
// All sample labels are checked before the first step; a label outside the
// network's outputs aborts the run with ErrUnknownLabel.
func (t *Trainer) Run(ctx context.Context, samples []Sample) (*Report, error) {
	if t.Network == nil {
		return nil, errors.New("trainer has no network")
	}
	if len(samples) == 0 {
		return nil, errors.New("no training samples")
	}
	if err := t.validate(samples); err != nil {
		return nil, err
	}

	rng := t.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	report := &Report{
		RunID:       uuid.NewString(),
		FinalError:  math.Inf(1),
		LowestError: math.Inf(1),
	}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	log.Printf("Trainer[%s]: training on %d samples, %d labels", report.RunID, len(samples), len(t.Network.outputs))

	for epoch := 1; t.MaxEpochs <= 0 || epoch <= t.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			log.Printf("Trainer[%s]: stopped before epoch %d: %v", report.RunID, epoch, err)
			return report, err
		}

		epochStart := time.Now()
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sum float64
		for _, idx := range order {
			s := samples[idx]
			e, err := t.Network.Train(s.Input, s.Label, t.LearningRate)
			if err != nil {
				return report, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			sum += e
		}
		epochError := sum / float64(len(samples))

		report.Epochs = epoch
		report.FinalError = epochError

		stats := EpochStats{Epoch: epoch, Error: epochError}
		if epochError < report.LowestError {
			report.LowestError = epochError
			if t.CheckpointPath != "" {
				if err := t.Network.Save(t.CheckpointPath); err != nil {
					return report, fmt.Errorf("epoch %d: %w", epoch, err)
				}
				report.Checkpoints++
				stats.Saved = true
			}
		}
		stats.Lowest = report.LowestError
		stats.Duration = time.Since(epochStart)

		log.Printf("Trainer[%s]: epoch %d error %.6f (lowest %.6f)", report.RunID, epoch, epochError, report.LowestError)
		if t.OnEpoch != nil {
			t.OnEpoch(stats)
		}

		if epochError <= t.Tolerance {
			report.Converged = true
			break
		}
	}

	return report, nil
}

func (t *Trainer) validate(samples []Sample) error {
	known := make(map[string]bool, len(t.Network.outputs))
	for _, l := range t.Network.outputs {
		known[l] = true
	}
	for i, s := range samples {
		if !known[s.Label] {
			return fmt.Errorf("sample %d: %w: %q", i, ErrUnknownLabel, s.Label)
		}
		if len(s.Input) != t.Network.inputSize {
			return fmt.Errorf("sample %d: %w: got %d values, want %d", i, ErrInputSize, len(s.Input), t.Network.inputSize)
		}
	}
	return nil
}

// LabelScore tallies predictions for one label.
type LabelScore struct {
	Label     string  `json:"label"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Accuracy  float64 `json:"accuracy"`
}

// Evaluation is the result of classifying a labeled set with a network.
type Evaluation struct {
	Correct   int          `json:"correct"`
	Incorrect int          `json:"incorrect"`
	Accuracy  float64      `json:"accuracy"`
	PerLabel  []LabelScore `json:"per_label"`
}

// Evaluate classifies every sample and tallies correct and incorrect
// predictions overall and per label. PerLabel is sorted by label.
func Evaluate(n *Network, samples []Sample) (*Evaluation, error) {
	byLabel := make(map[string]*LabelScore)
	eval := &Evaluation{}

	for i, s := range samples {
		predicted, _, err := n.Predict(s.Input)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		score, ok := byLabel[s.Label]
		if !ok {
			score = &LabelScore{Label: s.Label}
			byLabel[s.Label] = score
		}
		if predicted == s.Label {
			score.Correct++
			eval.Correct++
		} else {
			score.Incorrect++
			eval.Incorrect++
		}
	}

	for _, score := range byLabel {
		score.Accuracy = ratio(score.Correct, score.Correct+score.Incorrect)
		eval.PerLabel = append(eval.PerLabel, *score)
	}
	sort.Slice(eval.PerLabel, func(i, j int) bool {
		return eval.PerLabel[i].Label < eval.PerLabel[j].Label
	})
	eval.Accuracy = ratio(eval.Correct, len(samples))

	return eval, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
