package facestore

import (
	"encoding/gob"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func enc(vals ...float32) Encoding {
	return Encoding(vals)
}

func TestAdd_DimensionMismatch(t *testing.T) {
	s := New()
	if err := s.Add("alice", enc(1, 2, 3)); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	if err := s.Add("bob", enc(1, 2)); err == nil {
		t.Error("expected error adding encoding with different dimension")
	}

	if s.Len() != 1 {
		t.Errorf("expected store to keep 1 entry after failed add, got %d", s.Len())
	}
}

func TestAdd_EmptyEncoding(t *testing.T) {
	s := New()
	if err := s.Add("alice", nil); err == nil {
		t.Error("expected error adding empty encoding")
	}
}

func TestAdd_CopiesEncoding(t *testing.T) {
	s := New()
	e := enc(1, 2, 3)
	if err := s.Add("alice", e); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	e[0] = 99
	_, got := s.At(0)
	if got[0] != 1 {
		t.Errorf("store entry shares memory with caller slice: got %f, want 1", got[0])
	}
}

func TestBestMatch_Empty(t *testing.T) {
	s := New()
	if _, ok := s.BestMatch(enc(1, 2, 3)); ok {
		t.Error("expected no match from empty store")
	}

	var nilStore *Store
	if _, ok := nilStore.BestMatch(enc(1, 2, 3)); ok {
		t.Error("expected no match from nil store")
	}
}

func TestBestMatch_FindsNearest(t *testing.T) {
	s := New()
	mustAdd(t, s, "alice", enc(0, 0, 0))
	mustAdd(t, s, "bob", enc(10, 0, 0))
	mustAdd(t, s, "carol", enc(0, 5, 0))

	m, ok := s.BestMatch(enc(0, 4, 0))
	if !ok {
		t.Fatal("expected a match")
	}

	if m.Label != "carol" {
		t.Errorf("expected carol, got %s", m.Label)
	}

	if math.Abs(m.Distance-1.0) > 1e-9 {
		t.Errorf("expected distance 1.0, got %f", m.Distance)
	}

	if m.Index != 2 {
		t.Errorf("expected index 2, got %d", m.Index)
	}
}

func TestBestMatch_TieKeepsFirstIndex(t *testing.T) {
	s := New()
	// alice and bob are equidistant from the probe
	mustAdd(t, s, "alice", enc(1, 0, 0))
	mustAdd(t, s, "bob", enc(-1, 0, 0))
	mustAdd(t, s, "alice2", enc(1, 0, 0)) // identical to alice

	m, ok := s.BestMatch(enc(0, 0, 0))
	if !ok {
		t.Fatal("expected a match")
	}

	if m.Index != 0 || m.Label != "alice" {
		t.Errorf("expected tie to keep first entry (index 0, alice), got index %d, %s", m.Index, m.Label)
	}
}

func TestBestMatch_MismatchedProbeDimension(t *testing.T) {
	s := New()
	mustAdd(t, s, "alice", enc(1, 2, 3))

	// All distances are +Inf, so nothing can win
	if _, ok := s.BestMatch(enc(1, 2)); ok {
		t.Error("expected no match for probe with wrong dimension")
	}
}

func TestNilStoreAccessors(t *testing.T) {
	var s *Store
	if s.Len() != 0 {
		t.Errorf("expected Len 0 on nil store, got %d", s.Len())
	}
	if s.Dim() != 0 {
		t.Errorf("expected Dim 0 on nil store, got %d", s.Dim())
	}
	if len(s.People()) != 0 {
		t.Errorf("expected no people on nil store, got %v", s.People())
	}
	if len(s.Labels()) != 0 {
		t.Errorf("expected no labels on nil store, got %v", s.Labels())
	}
}

func TestPeopleAndLabels(t *testing.T) {
	s := New()
	mustAdd(t, s, "bob", enc(1, 0))
	mustAdd(t, s, "alice", enc(2, 0))
	mustAdd(t, s, "bob", enc(3, 0))

	people := s.People()
	if people["bob"] != 2 || people["alice"] != 1 {
		t.Errorf("unexpected people counts: %v", people)
	}

	labels := s.Labels()
	if len(labels) != 2 || labels[0] != "alice" || labels[1] != "bob" {
		t.Errorf("expected sorted labels [alice bob], got %v", labels)
	}

	if s.Dim() != 2 {
		t.Errorf("expected dim 2, got %d", s.Dim())
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := New()
	mustAdd(t, s, "alice", enc(0.1, 0.2, 0.3))
	mustAdd(t, s, "bob", enc(0.4, 0.5, 0.6))
	mustAdd(t, s, "alice", enc(0.7, 0.8, 0.9))

	path := filepath.Join(t.TempDir(), "faces.dat")
	if err := s.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Len() != s.Len() {
		t.Fatalf("expected %d entries after round trip, got %d", s.Len(), loaded.Len())
	}

	for i := 0; i < s.Len(); i++ {
		wantName, wantEnc := s.At(i)
		gotName, gotEnc := loaded.At(i)
		if gotName != wantName {
			t.Errorf("entry %d: expected name %s, got %s", i, wantName, gotName)
		}
		if len(gotEnc) != len(wantEnc) {
			t.Fatalf("entry %d: expected dim %d, got %d", i, len(wantEnc), len(gotEnc))
		}
		for j := range wantEnc {
			if gotEnc[j] != wantEnc[j] {
				t.Errorf("entry %d: encoding differs at %d: got %f, want %f", i, j, gotEnc[j], wantEnc[j])
			}
		}
	}
}

func TestSaveLoad_EmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.dat")
	if err := New().Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", loaded.Len())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.dat"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}

	if s.Len() != 0 {
		t.Errorf("expected empty store for missing file, got %d entries", s.Len())
	}
}

func TestLoad_GarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.dat")
	if err := os.WriteFile(path, []byte("not a gob stream at all"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrCorruptStore) {
		t.Errorf("expected ErrCorruptStore for garbage file, got %v", err)
	}
}

func TestLoad_MisalignedEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.dat")
	writeEnvelope(t, path, storeFile{
		Version:   storeFileVersion,
		Names:     []string{"alice", "bob"},
		Encodings: [][]float32{{1, 2, 3}},
	})

	_, err := Load(path)
	if !errors.Is(err, ErrCorruptStore) {
		t.Errorf("expected ErrCorruptStore for misaligned envelope, got %v", err)
	}
}

func TestLoad_InconsistentDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.dat")
	writeEnvelope(t, path, storeFile{
		Version:   storeFileVersion,
		Names:     []string{"alice", "bob"},
		Encodings: [][]float32{{1, 2, 3}, {1, 2}},
	})

	_, err := Load(path)
	if !errors.Is(err, ErrCorruptStore) {
		t.Errorf("expected ErrCorruptStore for inconsistent dimensions, got %v", err)
	}
}

func TestLoad_UnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.dat")
	writeEnvelope(t, path, storeFile{
		Version:   99,
		Names:     []string{"alice"},
		Encodings: [][]float32{{1, 2, 3}},
	})

	_, err := Load(path)
	if !errors.Is(err, ErrCorruptStore) {
		t.Errorf("expected ErrCorruptStore for unknown version, got %v", err)
	}
}

func TestSave_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.dat")

	first := New()
	mustAdd(t, first, "alice", enc(1, 2))
	if err := first.Save(path); err != nil {
		t.Fatal(err)
	}

	second := New()
	mustAdd(t, second, "bob", enc(3, 4))
	mustAdd(t, second, "carol", enc(5, 6))
	if err := second.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Len() != 2 {
		t.Fatalf("expected 2 entries after overwrite, got %d", loaded.Len())
	}

	name, _ := loaded.At(0)
	if name != "bob" {
		t.Errorf("expected first entry bob, got %s", name)
	}
}

func mustAdd(t *testing.T, s *Store, label string, e Encoding) {
	t.Helper()
	if err := s.Add(label, e); err != nil {
		t.Fatalf("adding %s: %v", label, err)
	}
}

func writeEnvelope(t *testing.T, path string, env storeFile) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(env); err != nil {
		t.Fatal(err)
	}
}
