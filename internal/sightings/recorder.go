package sightings

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCooldown is the minimum gap between two recorded sightings of
// the same person.
const DefaultCooldown = 30 * time.Second

const snapshotQuality = 90

// RecorderOptions configure a Recorder.
type RecorderOptions struct {
	// Cooldown throttles repeat sightings per label. 0 means the default.
	Cooldown time.Duration
	// SnapshotDir, when set, receives an annotated JPEG per sighting.
	SnapshotDir string
	// RecordUnknown also records faces that did not match anyone.
	RecordUnknown bool
	// Camera names the source device in recorded sightings.
	Camera string
}

// Recorder throttles sighting writes with a per-person cooldown and
// optionally snapshots the annotated frame. Safe for concurrent use.
type Recorder struct {
	store Store
	opts  RecorderOptions

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewRecorder creates a recorder writing to the given store.
func NewRecorder(store Store, opts RecorderOptions) *Recorder {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Recorder{
		store:    store,
		opts:     opts,
		lastSeen: make(map[string]time.Time),
	}
}

// Observe records one detected face. It returns nil without error when
// the face was throttled by the cooldown or filtered as unknown. A
// snapshot failure does not prevent the sighting from being saved; the
// error is returned alongside the saved sighting.
func (r *Recorder) Observe(at time.Time, label string, confidence float64, known bool, frame image.Image) (*Sighting, error) {
	if !known && !r.opts.RecordUnknown {
		return nil, nil
	}

	r.mu.Lock()
	if last, ok := r.lastSeen[label]; ok && at.Sub(last) < r.opts.Cooldown {
		r.mu.Unlock()
		return nil, nil
	}
	r.lastSeen[label] = at
	r.mu.Unlock()

	s := &Sighting{
		UID:        uuid.NewString(),
		At:         at,
		Label:      label,
		Confidence: confidence,
		Camera:     r.opts.Camera,
	}

	var snapErr error
	if r.opts.SnapshotDir != "" && frame != nil {
		path, err := r.snapshot(s.UID, frame)
		if err != nil {
			snapErr = err
		} else {
			s.Snapshot = path
		}
	}

	if err := r.store.Save(s); err != nil {
		return nil, err
	}
	return s, snapErr
}

func (r *Recorder) snapshot(uid string, frame image.Image) (string, error) {
	if err := os.MkdirAll(r.opts.SnapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	path := filepath.Join(r.opts.SnapshotDir, uid+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating snapshot: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: snapshotQuality}); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}
