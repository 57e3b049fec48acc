// Package dataset reads a labeled glyph dataset from disk.
//
// The layout is one directory per label under a root, each holding image
// files of that character:
//
//	characters/
//	  A/ 0001.png 0002.png
//	  B/ 0001.png
//
// Entries whose name starts with a dot are ignored at both levels.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/alpr-mcp/internal/detection"
	"github.com/ironsheep/alpr-mcp/internal/imaging"
	"github.com/ironsheep/alpr-mcp/internal/network"
)

// ErrEmpty is returned by Scan when the root holds no samples.
var ErrEmpty = errors.New("dataset is empty")

// Entry is one labeled image file.
type Entry struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// Dataset is the scanned content of a dataset root.
type Dataset struct {
	Root    string
	labels  []string
	entries []Entry

	// Padding is used when a sample has to be normalized onto the glyph
	// canvas. It defaults to the segmenter's padding.
	Padding int
}

// Scan lists the labels and sample files under root. Labels are sorted, and
// samples are sorted by label then file name. Empty label directories are
// kept as labels so the network still gets an output for them.
func Scan(root string) (*Dataset, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", root, err)
	}

	d := &Dataset{Root: root, Padding: detection.DefaultPadding}
	for _, dir := range dirs {
		if !dir.IsDir() || hidden(dir.Name()) {
			continue
		}
		label := dir.Name()
		d.labels = append(d.labels, label)

		files, err := os.ReadDir(filepath.Join(root, label))
		if err != nil {
			return nil, fmt.Errorf("failed to read label %s: %w", label, err)
		}
		for _, f := range files {
			if f.IsDir() || hidden(f.Name()) {
				continue
			}
			d.entries = append(d.entries, Entry{
				Path:  filepath.Join(root, label, f.Name()),
				Label: label,
			})
		}
	}
	sort.Strings(d.labels)
	sort.SliceStable(d.entries, func(i, j int) bool {
		if d.entries[i].Label != d.entries[j].Label {
			return d.entries[i].Label < d.entries[j].Label
		}
		return d.entries[i].Path < d.entries[j].Path
	})

	if len(d.entries) == 0 {
		return nil, fmt.Errorf("%w: no samples under %s", ErrEmpty, root)
	}
	return d, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Labels returns the label directories in sorted order.
func (d *Dataset) Labels() []string {
	return append([]string(nil), d.labels...)
}

// Samples returns every labeled file.
func (d *Dataset) Samples() []Entry {
	return append([]Entry(nil), d.entries...)
}

// Validate checks that every sample's label is in labels.
func (d *Dataset) Validate(labels []string) error {
	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
	}
	for _, e := range d.entries {
		if !known[e.Label] {
			return fmt.Errorf("%w: %q (%s)", network.ErrUnknownLabel, e.Label, e.Path)
		}
	}
	return nil
}

// Vectors loads every sample as a network input of size×size values.
//
// Images are converted to gray. Anything that is not already size×size is
// normalized onto the glyph canvas first, so raw character crops can be used
// directly. Files are decoded concurrently; the result keeps sample order.
func (d *Dataset) Vectors(size int) ([]network.Sample, error) {
	if size <= 0 {
		return nil, fmt.Errorf("glyph size must be positive, got %d", size)
	}

	out := make([]network.Sample, len(d.entries))
	errs := make([]error, len(d.entries))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < runtime.NumCPU(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i], errs[i] = d.vector(d.entries[i], size)
			}
		}()
	}
	for i := range d.entries {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Dataset) vector(e Entry, size int) (network.Sample, error) {
	img, _, err := imaging.Load(e.Path)
	if err != nil {
		return network.Sample{}, fmt.Errorf("sample %s: %w", e.Path, err)
	}
	gray := imaging.ToGray(img)
	if b := gray.Bounds(); b.Dx() != size || b.Dy() != size {
		gray = detection.Normalize(gray, size, d.Padding)
	}
	return network.Sample{Input: imaging.Vector(gray), Label: e.Label}, nil
}
