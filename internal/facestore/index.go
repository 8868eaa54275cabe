package facestore

import (
	"fmt"
	"os"

	"github.com/coder/hnsw"
)

// IndexThreshold is the store size at which callers should switch from the
// exact scan to the HNSW index. Below it the scan is faster and exactly
// tie-stable; above it the graph wins.
const IndexThreshold = 256

// indexMaxNeighbors is the HNSW M parameter.
const indexMaxNeighbors = 16

// Index is an approximate nearest-neighbour view over a store, backed by an
// HNSW graph keyed on entry index. Like the store it wraps, an index is
// read-only once built.
type Index struct {
	store *Store
	graph *hnsw.Graph[int]
	saved *hnsw.SavedGraph[int]
}

// NewIndex builds an in-memory index over every entry of the store.
func NewIndex(s *Store) *Index {
	g := hnsw.NewGraph[int]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors) // standard HNSW formula
	g.Distance = hnsw.EuclideanDistance

	for i := 0; i < s.Len(); i++ {
		_, enc := s.At(i)
		g.Add(hnsw.MakeNode(i, []float32(enc)))
	}

	return &Index{store: s, graph: g}
}

// Len returns the number of entries in the underlying store.
func (ix *Index) Len() int {
	return ix.store.Len()
}

// BestMatch returns the (approximately) nearest entry to the probe. The
// distance is recomputed exactly from the store encoding, so thresholds
// applied by callers behave the same as with Store.BestMatch.
func (ix *Index) BestMatch(probe Encoding) (Match, bool) {
	// The graph panics on dimension mismatch; fail the way the exact scan does.
	if len(probe) == 0 || ix.store.Dim() != len(probe) {
		return Match{}, false
	}

	var neighbors []hnsw.Node[int]
	if ix.saved != nil {
		neighbors = ix.saved.Search([]float32(probe), 1)
	} else {
		neighbors = ix.graph.Search([]float32(probe), 1)
	}
	if len(neighbors) == 0 {
		return Match{}, false
	}

	i := neighbors[0].Key
	label, enc := ix.store.At(i)
	return Match{Index: i, Label: label, Distance: Distance(probe, enc)}, true
}

// SaveIndex exports the graph to path so startup can skip the build.
func (ix *Index) SaveIndex(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	defer f.Close()

	if ix.saved != nil {
		if err := ix.saved.Export(f); err != nil {
			return fmt.Errorf("exporting face index: %w", err)
		}
		return nil
	}
	if err := ix.graph.Export(f); err != nil {
		return fmt.Errorf("exporting face index: %w", err)
	}
	return nil
}

// LoadIndex loads a previously saved graph for the given store. The store
// must be the one the index was built from: node keys are entry indexes, so
// a stale index silently mismatches and callers should rebuild whenever the
// store file is newer than the index file.
func LoadIndex(s *Store, path string) (*Index, error) {
	// LoadSavedGraph creates an empty file when none exists; require a real one.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("face index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[int](path)
	if err != nil {
		return nil, fmt.Errorf("loading face index: %w", err)
	}
	return &Index{store: s, saved: saved}, nil
}
