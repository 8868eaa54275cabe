package facestore

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// ErrCorruptStore marks a store file whose contents cannot be trusted:
// undecodable data, an unknown format version, or entries that are not
// index-aligned.
var ErrCorruptStore = errors.New("corrupt face store")

// Store is an in-memory gallery of known faces. Labels and encodings are kept
// as two index-aligned slices, mirroring the persisted shape. A store is
// mutable only while it is being built (Train, Add, Load); once published to
// the recognition loop or the web server it must be treated as read-only and
// replaced wholesale instead of modified.
type Store struct {
	names     []string
	encodings []Encoding
}

// storeFileVersion is bumped when the on-disk envelope changes shape.
const storeFileVersion = 1

// storeFile is the on-disk gob envelope.
type storeFile struct {
	Version   int
	Names     []string
	Encodings [][]float32
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Add appends one labeled encoding. The encoding is copied. All encodings in
// a store must share one dimension; the first Add fixes it.
func (s *Store) Add(label string, enc Encoding) error {
	if len(enc) == 0 {
		return errors.New("empty encoding")
	}
	if len(s.encodings) > 0 && len(enc) != len(s.encodings[0]) {
		return fmt.Errorf("encoding dimension %d does not match store dimension %d",
			len(enc), len(s.encodings[0]))
	}

	s.names = append(s.names, label)
	s.encodings = append(s.encodings, enc.Clone())
	return nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Dim returns the encoding dimension, or 0 for an empty store.
func (s *Store) Dim() int {
	if s == nil || len(s.encodings) == 0 {
		return 0
	}
	return len(s.encodings[0])
}

// At returns the label and encoding at index i. The encoding is the store's
// own slice and must not be modified.
func (s *Store) At(i int) (string, Encoding) {
	return s.names[i], s.encodings[i]
}

// People returns the number of encodings per label.
func (s *Store) People() map[string]int {
	if s == nil {
		return map[string]int{}
	}
	counts := make(map[string]int, len(s.names))
	for _, name := range s.names {
		counts[name]++
	}
	return counts
}

// Labels returns the distinct labels in sorted order.
func (s *Store) Labels() []string {
	counts := s.People()
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// BestMatch returns the entry closest to the probe. Ties keep the lowest
// index: a later entry replaces the best only on a strictly smaller distance.
// Returns false for an empty store or a probe that matches nothing finitely.
func (s *Store) BestMatch(probe Encoding) (Match, bool) {
	if s == nil || len(s.encodings) == 0 {
		return Match{}, false
	}

	best := Match{Index: -1, Distance: math.Inf(1)}
	for i, enc := range s.encodings {
		if d := Distance(probe, enc); d < best.Distance {
			best = Match{Index: i, Label: s.names[i], Distance: d}
		}
	}
	if best.Index < 0 {
		return Match{}, false
	}
	return best, true
}

// Save writes the store to path atomically (temp file in the same directory,
// then rename). An empty store saves an empty envelope.
func (s *Store) Save(path string) error {
	env := storeFile{
		Version:   storeFileVersion,
		Names:     s.names,
		Encodings: make([][]float32, len(s.encodings)),
	}
	for i, enc := range s.encodings {
		env.Encodings[i] = enc
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}

	if err := gob.NewEncoder(tmp).Encode(env); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encoding face store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing store file %s: %w", path, err)
	}
	return nil
}

// Load reads a store from path. A missing file yields an empty store and no
// error, so a fresh installation works without a training run. Anything that
// decodes but fails integrity checks (version, name/encoding alignment,
// consistent dimensions) is reported as ErrCorruptStore.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("opening face store %s: %w", path, err)
	}
	defer f.Close()

	var env storeFile
	if err := gob.NewDecoder(f).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrCorruptStore, path, err)
	}
	if env.Version != storeFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d in %s", ErrCorruptStore, env.Version, path)
	}
	if len(env.Names) != len(env.Encodings) {
		return nil, fmt.Errorf("%w: %s holds %d names but %d encodings",
			ErrCorruptStore, path, len(env.Names), len(env.Encodings))
	}

	s := New()
	for i, raw := range env.Encodings {
		if err := s.Add(env.Names[i], Encoding(raw)); err != nil {
			return nil, fmt.Errorf("%w: entry %d in %s: %v", ErrCorruptStore, i, path, err)
		}
	}
	return s, nil
}
