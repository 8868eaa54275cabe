// Package pipeline turns raw frames into annotated, recognized results.
// Detection runs on a scaled-down copy of the frame for speed; encoding and
// matching always use the full resolution.
package pipeline

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/facewatch/internal/facestore"
)

const (
	// DefaultThreshold is the maximum Euclidean distance for a match.
	DefaultThreshold = 0.6

	// DefaultScale is the detection downscale factor.
	DefaultScale = 0.5

	// UnknownLabel is assigned to faces without a store match.
	UnknownLabel = "Unknown"

	// Fallback frame dimensions when the input is unusable.
	errorFrameWidth  = 640
	errorFrameHeight = 480

	// Cascade detectors report overlapping boxes for one face; boxes with
	// IoU above this are merged before encoding.
	overlapThreshold = 0.4
)

// Options tunes a pipeline. The zero value selects the defaults.
type Options struct {
	// Threshold is the maximum Euclidean distance for a match. A distance
	// exactly equal to the threshold does not match.
	Threshold float64

	// Scale is the detection downscale factor in (0, 1]. 1 disables the
	// resampling pass.
	Scale float64
}

// DetectedFace is one recognized or unrecognized face in a frame.
// Box is in full-frame coordinates. Confidence is 1 minus the distance to
// the nearest store entry, kept in [0, 1]; it is populated even for faces
// below the match threshold, where Known stays false.
type DetectedFace struct {
	Box        image.Rectangle `json:"box"`
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Known      bool            `json:"known"`
}

// Result is what one frame yields. Frame is always non-nil and renderable,
// even when processing failed; the input image is never modified.
type Result struct {
	Frame *image.RGBA
	Faces []DetectedFace
}

// Pipeline recognizes faces in frames against a gallery.
type Pipeline struct {
	det  facestore.Detector
	enc  facestore.Encoder
	opts Options
}

// New creates a pipeline. Zero or out-of-range option fields fall back to
// the defaults.
func New(det facestore.Detector, enc facestore.Encoder, opts Options) *Pipeline {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Scale <= 0 || opts.Scale > 1 {
		opts.Scale = DefaultScale
	}
	return &Pipeline{det: det, enc: enc, opts: opts}
}

// Threshold returns the effective match threshold.
func (p *Pipeline) Threshold() float64 {
	return p.opts.Threshold
}

// Process recognizes faces in one frame. It has no error path: a nil or
// empty frame yields a blank frame, a detector failure yields the
// unannotated frame, an unencodable face stays Unknown, and a panic in any
// injected capability is recovered into the blank-frame result. Whatever
// the camera loop feeds in, the caller always gets something it can render.
func (p *Pipeline) Process(frame image.Image, store facestore.Matcher) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = blankResult()
		}
	}()

	if frame == nil || frame.Bounds().Empty() {
		return blankResult()
	}

	canvas := toRGBA(frame)

	boxes, err := p.detect(canvas)
	if err != nil {
		return Result{Frame: canvas}
	}
	if len(boxes) == 0 {
		return Result{Frame: canvas, Faces: []DetectedFace{}}
	}

	encodings, err := p.enc.Encode(canvas, boxes)
	if err != nil {
		encodings = nil // all faces stay Unknown, boxes are still drawn
	}

	faces := make([]DetectedFace, 0, len(boxes))
	for i, box := range boxes {
		face := DetectedFace{Box: box, Label: UnknownLabel}
		if i < len(encodings) && encodings[i] != nil && store != nil && store.Len() > 0 {
			if m, ok := store.BestMatch(encodings[i]); ok {
				face.Confidence = clamp01(1 - m.Distance)
				if m.Distance < p.opts.Threshold {
					face.Label = m.Label
					face.Known = true
				}
			}
		}
		faces = append(faces, face)
		annotate(canvas, face)
	}

	return Result{Frame: canvas, Faces: faces}
}

// detect finds face boxes on the (possibly downscaled) frame and maps them
// back to full-frame coordinates.
func (p *Pipeline) detect(canvas *image.RGBA) ([]image.Rectangle, error) {
	detImg := image.Image(canvas)
	if p.opts.Scale < 1 {
		detImg = downscale(canvas, p.opts.Scale)
	}

	boxes, err := p.det.Detect(detImg)
	if err != nil {
		return nil, err
	}

	if p.opts.Scale < 1 {
		boxes = rescaleBoxes(boxes, 1/p.opts.Scale)
	}
	boxes = mergeOverlapping(boxes, overlapThreshold)
	return clampBoxes(boxes, canvas.Bounds()), nil
}

// blankResult is the renderable fallback: an opaque black VGA frame, no faces.
func blankResult() Result {
	dst := image.NewRGBA(image.Rect(0, 0, errorFrameWidth, errorFrameHeight))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return Result{Frame: dst}
}

// toRGBA copies any image onto a zero-origin RGBA canvas.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// downscale resamples the frame by the given factor. ApproxBiLinear keeps
// the per-frame cost low enough for live video.
func downscale(src *image.RGBA, scale float64) *image.RGBA {
	b := src.Bounds()
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// rescaleBoxes maps detection boxes back to full-frame coordinates.
func rescaleBoxes(boxes []image.Rectangle, factor float64) []image.Rectangle {
	out := make([]image.Rectangle, len(boxes))
	for i, b := range boxes {
		out[i] = image.Rect(
			int(math.Round(float64(b.Min.X)*factor)),
			int(math.Round(float64(b.Min.Y)*factor)),
			int(math.Round(float64(b.Max.X)*factor)),
			int(math.Round(float64(b.Max.Y)*factor)),
		)
	}
	return out
}

// clampBoxes intersects boxes with the frame, dropping any that end up empty.
func clampBoxes(boxes []image.Rectangle, bounds image.Rectangle) []image.Rectangle {
	out := boxes[:0]
	for _, b := range boxes {
		if c := b.Intersect(bounds); !c.Empty() {
			out = append(out, c)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
