package facestore

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// defaultExtensions are the image types considered during training.
var defaultExtensions = []string{".jpg", ".jpeg", ".png"}

// TrainOptions tunes a training run. The zero value is usable.
type TrainOptions struct {
	// Extensions overrides the image extensions to consider
	// (with or without leading dots, case-insensitive).
	Extensions []string

	// Progress renders a progress bar while training.
	Progress bool

	// LoadImage overrides image loading. The default decoder handles
	// JPEG and PNG; callers wanting more formats inject their own.
	LoadImage func(path string) (image.Image, error)
}

// SkippedImage records one image that contributed nothing to the store.
type SkippedImage struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// TrainReport summarizes a training run.
type TrainReport struct {
	Trained int            // encodings added to the store
	People  map[string]int // encodings per label
	Skipped []SkippedImage
}

func (r *TrainReport) skip(path, reason string) {
	r.Skipped = append(r.Skipped, SkippedImage{Path: path, Reason: reason})
}

// Train builds a store from a directory tree laid out as root/<person>/<images>.
// Each immediate subdirectory of root names one person; files directly under it
// with a recognized image extension are the training samples. Anything else
// under root is ignored.
//
// An image must contain exactly one detectable face to contribute an encoding.
// Images that fail to load, detect, or encode are skipped and recorded in the
// report; only structural problems (unreadable directories, cancellation)
// abort the run.
func Train(ctx context.Context, root string, det Detector, enc Encoder, opts TrainOptions) (*Store, *TrainReport, error) {
	load := opts.LoadImage
	if load == nil {
		load = loadImage
	}
	exts := extensionSet(opts.Extensions)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("reading training directory: %w", err)
	}

	type sample struct {
		label string
		path  string
	}
	var samples []sample
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		label := e.Name()
		images, err := os.ReadDir(filepath.Join(root, label))
		if err != nil {
			return nil, nil, fmt.Errorf("reading person directory %s: %w", label, err)
		}
		for _, ie := range images {
			if ie.IsDir() || !exts[strings.ToLower(filepath.Ext(ie.Name()))] {
				continue
			}
			samples = append(samples, sample{label, filepath.Join(root, label, ie.Name())})
		}
	}

	store := New()
	report := &TrainReport{People: make(map[string]int)}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.NewOptions(len(samples),
			progressbar.OptionSetDescription("Training"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		trainOne(s.path, s.label, load, det, enc, store, report)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	return store, report, nil
}

// trainOne processes a single training image, adding at most one encoding.
func trainOne(path, label string, load func(string) (image.Image, error), det Detector, enc Encoder, store *Store, report *TrainReport) {
	img, err := load(path)
	if err != nil {
		report.skip(path, fmt.Sprintf("loading image: %v", err))
		return
	}

	boxes, err := det.Detect(img)
	if err != nil {
		report.skip(path, fmt.Sprintf("detecting faces: %v", err))
		return
	}
	if len(boxes) != 1 {
		report.skip(path, fmt.Sprintf("found %d faces, need exactly 1", len(boxes)))
		return
	}

	encodings, err := enc.Encode(img, boxes)
	if err != nil {
		report.skip(path, fmt.Sprintf("computing encoding: %v", err))
		return
	}
	if len(encodings) == 0 || encodings[0] == nil {
		report.skip(path, "face could not be encoded")
		return
	}

	if err := store.Add(label, encodings[0]); err != nil {
		report.skip(path, fmt.Sprintf("adding encoding: %v", err))
		return
	}
	report.Trained++
	report.People[label]++
}

// extensionSet normalizes extensions to a lowercase dotted lookup set.
func extensionSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// loadImage decodes a JPEG or PNG image from disk.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
