package network

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func separableSamples() []Sample {
	return []Sample{
		{Input: []float64{1, 1, 0, 0}, Label: "left"},
		{Input: []float64{0.9, 1, 0.1, 0}, Label: "left"},
		{Input: []float64{0, 0, 1, 1}, Label: "right"},
		{Input: []float64{0, 0.1, 1, 0.9}, Label: "right"},
	}
}

func TestTrainer_CheckpointsOnImprovement(t *testing.T) {
	n := newTestNetwork(t, 4, []int{4}, []string{"left", "right"})
	path := filepath.Join(t.TempDir(), "savedState")

	var stats []EpochStats
	tr := &Trainer{
		Network:        n,
		LearningRate:   0.5,
		MaxEpochs:      50,
		CheckpointPath: path,
		Rand:           rand.New(rand.NewSource(7)),
		OnEpoch:        func(s EpochStats) { stats = append(stats, s) },
	}

	report, err := tr.Run(context.Background(), separableSamples())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Epochs != 50 || len(stats) != 50 {
		t.Fatalf("expected 50 epochs, got report %d stats %d", report.Epochs, len(stats))
	}
	if report.RunID == "" {
		t.Error("report has no run ID")
	}

	saves := 0
	for i, s := range stats {
		if i > 0 && s.Lowest > stats[i-1].Lowest {
			t.Errorf("epoch %d: lowest error rose from %v to %v", s.Epoch, stats[i-1].Lowest, s.Lowest)
		}
		if s.Saved {
			saves++
			if s.Error != s.Lowest {
				t.Errorf("epoch %d saved with error %v above lowest %v", s.Epoch, s.Error, s.Lowest)
			}
		}
	}
	if !stats[0].Saved {
		t.Error("first epoch should always checkpoint")
	}
	if saves != report.Checkpoints {
		t.Errorf("report counts %d checkpoints, stats show %d", report.Checkpoints, saves)
	}
	if stats[len(stats)-1].Error >= stats[0].Error {
		t.Errorf("training did not reduce error: first %v, last %v", stats[0].Error, stats[len(stats)-1].Error)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("checkpoint not written: %v", err)
	}
	saved, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if saved.InputSize() != 4 {
		t.Errorf("checkpoint input size %d, want 4", saved.InputSize())
	}
}

func TestTrainer_StopsAtTolerance(t *testing.T) {
	n := newTestNetwork(t, 4, []int{4}, []string{"left", "right"})
	tr := &Trainer{
		Network:      n,
		LearningRate: 0.5,
		Tolerance:    1, // any epoch error in (0, 1) satisfies this
		MaxEpochs:    100,
		Rand:         rand.New(rand.NewSource(1)),
	}

	report, err := tr.Run(context.Background(), separableSamples())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Converged || report.Epochs != 1 {
		t.Errorf("expected convergence after 1 epoch, got converged=%v epochs=%d", report.Converged, report.Epochs)
	}
	if report.Checkpoints != 0 {
		t.Errorf("no checkpoint path set, but %d checkpoints recorded", report.Checkpoints)
	}
}

func TestTrainer_Cancelled(t *testing.T) {
	n := newTestNetwork(t, 4, []int{4}, []string{"left", "right"})

	ctx, cancel := context.WithCancel(context.Background())
	epochs := 0
	tr := &Trainer{
		Network:      n,
		LearningRate: 0.5,
		Rand:         rand.New(rand.NewSource(1)),
		OnEpoch: func(EpochStats) {
			epochs++
			if epochs == 3 {
				cancel()
			}
		},
	}

	report, err := tr.Run(ctx, separableSamples())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report == nil || report.Epochs != 3 {
		t.Errorf("expected report after 3 epochs, got %+v", report)
	}
}

func TestTrainer_UnknownLabel(t *testing.T) {
	n := newTestNetwork(t, 4, []int{4}, []string{"left", "right"})
	before := n.State()

	samples := append(separableSamples(), Sample{Input: []float64{1, 0, 1, 0}, Label: "up"})
	tr := &Trainer{Network: n, LearningRate: 0.5, MaxEpochs: 5}

	_, err := tr.Run(context.Background(), samples)
	if !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
	if !statesEqual(before, n.State()) {
		t.Error("network trained despite invalid label")
	}
}

func TestTrainer_NoSamples(t *testing.T) {
	n := newTestNetwork(t, 4, []int{4}, []string{"left", "right"})
	tr := &Trainer{Network: n}
	if _, err := tr.Run(context.Background(), nil); err == nil {
		t.Error("expected error for empty dataset")
	}
}

func TestEvaluate(t *testing.T) {
	n := newTestNetwork(t, 4, []int{6}, []string{"left", "right"})
	tr := &Trainer{
		Network:      n,
		LearningRate: 0.5,
		MaxEpochs:    1500,
		Rand:         rand.New(rand.NewSource(3)),
	}
	if _, err := tr.Run(context.Background(), separableSamples()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	eval, err := Evaluate(n, separableSamples())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if eval.Correct != 4 || eval.Incorrect != 0 || eval.Accuracy != 1 {
		t.Errorf("Evaluate = %+v, want 4 correct", eval)
	}
	if len(eval.PerLabel) != 2 || eval.PerLabel[0].Label != "left" || eval.PerLabel[1].Label != "right" {
		t.Errorf("PerLabel not sorted by label: %+v", eval.PerLabel)
	}
}
