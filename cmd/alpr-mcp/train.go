package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/ironsheep/alpr-mcp/internal/config"
	"github.com/ironsheep/alpr-mcp/internal/dataset"
	"github.com/ironsheep/alpr-mcp/internal/network"
)

// trainSummary is printed to stdout when training ends.
type trainSummary struct {
	Report     *network.Report     `json:"report"`
	Evaluation *network.Evaluation `json:"evaluation,omitempty"`
	ModelPath  string              `json:"model_path"`
}

// train fits a fresh network to the dataset, checkpointing to ModelPath on
// every new lowest error. An interrupt stops it between epochs; the best
// checkpoint so far is kept.
func train(ctx context.Context, cfg *config.Config) error {
	ds, err := dataset.Scan(cfg.Dataset)
	if err != nil {
		return err
	}
	ds.Padding = cfg.GlyphPadding

	labels := cfg.Labels
	if len(labels) == 0 {
		labels = ds.Labels()
	}
	if err := ds.Validate(labels); err != nil {
		return err
	}

	samples, err := ds.Vectors(cfg.GlyphSize)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	n, err := network.New(cfg.GlyphSize*cfg.GlyphSize, cfg.HiddenLayers, labels, rng)
	if err != nil {
		return err
	}
	log.Printf("Train: %d samples, labels %v, hidden %v, seed %d", len(samples), labels, cfg.HiddenLayers, seed)

	trainer := &network.Trainer{
		Network:        n,
		LearningRate:   cfg.LearningRate,
		Tolerance:      cfg.Tolerance,
		MaxEpochs:      cfg.MaxEpochs,
		CheckpointPath: cfg.ModelPath,
		Rand:           rng,
	}
	report, err := trainer.Run(ctx, samples)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if report.Checkpoints == 0 {
		return fmt.Errorf("training stopped before the first checkpoint")
	}

	// Evaluate the checkpoint, not the last epoch's weights.
	best, err := network.LoadFile(cfg.ModelPath)
	if err != nil {
		return err
	}
	eval, err := network.Evaluate(best, samples)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(trainSummary{Report: report, Evaluation: eval, ModelPath: cfg.ModelPath})
}
