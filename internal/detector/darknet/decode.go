package darknet

import (
	"image"
	"math"

	"github.com/ironsheep/alpr-mcp/internal/detector"
)

// Candidate is one decoded YOLO row above the confidence threshold, in pixel
// coordinates of the image that was fed to the network.
type Candidate struct {
	Rect  image.Rectangle
	Score float32
}

// DecodeRows converts raw Darknet YOLO output rows into pixel rectangles.
//
// Each row is [cx, cy, w, h, objectness, class0, class1, ...] with the box
// relative to the input image. The score of a row is objectness multiplied by
// its best class score; single-class networks with no class columns use the
// objectness alone. Rows scoring below threshold are dropped.
func DecodeRows(rows [][]float32, width, height int, threshold float32) []Candidate {
	var out []Candidate
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		score := row[4]
		if len(row) > 5 {
			best := row[5]
			for _, c := range row[6:] {
				if c > best {
					best = c
				}
			}
			score *= best
		}
		if score < threshold {
			continue
		}

		cx := float64(row[0]) * float64(width)
		cy := float64(row[1]) * float64(height)
		w := float64(row[2]) * float64(width)
		h := float64(row[3]) * float64(height)
		if w <= 0 || h <= 0 {
			continue
		}

		left := int(math.Round(cx - w/2))
		top := int(math.Round(cy - h/2))
		out = append(out, Candidate{
			Rect:  image.Rect(left, top, left+int(math.Round(w)), top+int(math.Round(h))),
			Score: score,
		})
	}
	return out
}

// Boxes converts the candidates selected by keep into plate boxes.
func Boxes(candidates []Candidate, keep []int) []detector.Box {
	boxes := make([]detector.Box, 0, len(keep))
	for _, idx := range keep {
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		c := candidates[idx]
		boxes = append(boxes, detector.FromRect(c.Rect, float64(c.Score), detector.PlateClass))
	}
	return boxes
}
