// Package rekognition finds license plates with AWS Rekognition's label
// detection. Plates are the bounding-box instances of the "License Plate"
// label.
package rekognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/alpr-mcp/internal/detector"
)

// PlateLabel is the Rekognition label whose instances are plates.
const PlateLabel = "License Plate"

// API is the subset of the Rekognition client used here.
type API interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Detector calls DetectLabels once per image.
type Detector struct {
	Client API

	// MinConfidence is in [0, 1]; Rekognition itself works in percent.
	MinConfidence float64
}

// New loads the default AWS configuration for region and builds a client.
func New(ctx context.Context, region string, minConfidence float64) (*Detector, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %v", detector.ErrUnavailable, err)
	}
	log.Printf("Rekognition: using region %s", region)
	return &Detector{
		Client:        rekognition.NewFromConfig(cfg),
		MinConfidence: minConfidence,
	}, nil
}

// Detect sends img as JPEG and converts the plate instances to boxes.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detector.Box, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	out, err := d.Client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: buf.Bytes()},
		MinConfidence: aws.Float32(float32(d.MinConfidence * 100)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: DetectLabels: %v", detector.ErrUnavailable, err)
	}

	b := img.Bounds()
	boxes := Boxes(out.Labels, b.Dx(), b.Dy(), d.MinConfidence)
	for i := range boxes {
		boxes[i].X += float64(b.Min.X)
		boxes[i].Y += float64(b.Min.Y)
	}
	log.Printf("Rekognition: %d labels, %d plates", len(out.Labels), len(boxes))
	return boxes, nil
}

// Boxes converts the instances of the plate label into pixel boxes for a
// width×height image. Rekognition boxes are relative to the image size and
// anchored at the top-left corner; confidences are percentages.
func Boxes(labels []types.Label, width, height int, minConfidence float64) []detector.Box {
	boxes := []detector.Box{}
	for _, label := range labels {
		if !strings.EqualFold(aws.ToString(label.Name), PlateLabel) {
			continue
		}
		for _, inst := range label.Instances {
			bb := inst.BoundingBox
			if bb == nil {
				continue
			}
			conf := float64(aws.ToFloat32(inst.Confidence)) / 100
			if conf < minConfidence {
				continue
			}
			w := float64(aws.ToFloat32(bb.Width)) * float64(width)
			h := float64(aws.ToFloat32(bb.Height)) * float64(height)
			if w <= 0 || h <= 0 {
				continue
			}
			left := float64(aws.ToFloat32(bb.Left)) * float64(width)
			top := float64(aws.ToFloat32(bb.Top)) * float64(height)
			boxes = append(boxes, detector.Box{
				X:          left + w/2,
				Y:          top + h/2,
				Width:      w,
				Height:     h,
				Confidence: conf,
				Class:      detector.PlateClass,
			})
		}
	}
	return boxes
}
