package sightings

import (
	"errors"
	"image"
	"os"
	"testing"
	"time"
)

// memStore collects saved sightings in memory.
type memStore struct {
	saved   []Sighting
	saveErr error
}

func (m *memStore) Save(s *Sighting) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, *s)
	return nil
}

func (m *memStore) List(q Query) ([]Sighting, error) { return m.saved, nil }
func (m *memStore) Close() error                     { return nil }

func TestRecorderCooldown(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, RecorderOptions{Cooldown: 30 * time.Second})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := rec.Observe(base, "alice", 0.9, true, nil)
	if err != nil || s == nil {
		t.Fatalf("first observation should be recorded, got s=%v err=%v", s, err)
	}

	s, err = rec.Observe(base.Add(10*time.Second), "alice", 0.85, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Error("observation inside the cooldown should be suppressed")
	}

	s, err = rec.Observe(base.Add(31*time.Second), "alice", 0.88, true, nil)
	if err != nil || s == nil {
		t.Fatalf("observation after the cooldown should be recorded, got s=%v err=%v", s, err)
	}

	if len(store.saved) != 2 {
		t.Errorf("expected 2 saved sightings, got %d", len(store.saved))
	}
}

func TestRecorderLabelsThrottleIndependently(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, RecorderOptions{Cooldown: 30 * time.Second})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := rec.Observe(base, "alice", 0.9, true, nil); err != nil {
		t.Fatal(err)
	}
	s, err := rec.Observe(base.Add(time.Second), "bob", 0.8, true, nil)
	if err != nil || s == nil {
		t.Fatalf("different person should not be throttled, got s=%v err=%v", s, err)
	}
}

func TestRecorderUnknownFiltered(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, RecorderOptions{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := rec.Observe(base, "Unknown", 0.2, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s != nil || len(store.saved) != 0 {
		t.Error("unknown faces should be dropped by default")
	}

	rec = NewRecorder(store, RecorderOptions{RecordUnknown: true})
	s, err = rec.Observe(base, "Unknown", 0.2, false, nil)
	if err != nil || s == nil {
		t.Fatalf("unknown face should be recorded with RecordUnknown, got s=%v err=%v", s, err)
	}
}

func TestRecorderSnapshot(t *testing.T) {
	store := &memStore{}
	dir := t.TempDir()
	rec := NewRecorder(store, RecorderOptions{SnapshotDir: dir, Camera: "0"})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	frame := image.NewRGBA(image.Rect(0, 0, 32, 32))
	s, err := rec.Observe(base, "alice", 0.9, true, frame)
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Fatal("expected recorded sighting")
	}

	if s.Snapshot == "" {
		t.Fatal("expected snapshot path on sighting")
	}
	if _, err := os.Stat(s.Snapshot); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
	if s.Camera != "0" {
		t.Errorf("expected camera label, got %q", s.Camera)
	}
}

func TestRecorderSaveError(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	rec := NewRecorder(store, RecorderOptions{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := rec.Observe(base, "alice", 0.9, true, nil); err == nil {
		t.Error("expected store error to surface")
	}
}

func TestRecorderDefaultCooldown(t *testing.T) {
	rec := NewRecorder(&memStore{}, RecorderOptions{})
	if rec.opts.Cooldown != DefaultCooldown {
		t.Errorf("expected default cooldown %v, got %v", DefaultCooldown, rec.opts.Cooldown)
	}
}
