package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/safetydesk/regis/pkg/models"
)

const flatFileName = "passages.gob"

type flatEntry struct {
	Passage models.Passage
	Vec     []float32
}

// FlatFile keeps the whole index in memory and persists it as a single gob
// artifact under dir. Presence of the artifact is what marks the index as
// built; Replace writes a temp file and renames it so a crash never leaves a
// partial index visible.
type FlatFile struct {
	dir string

	mu      sync.RWMutex
	loaded  bool
	entries []flatEntry
}

func NewFlatFile(dir string) *FlatFile {
	return &FlatFile{dir: dir}
}

func (s *FlatFile) artifact() string { return filepath.Join(s.dir, flatFileName) }

func (s *FlatFile) Ready(ctx context.Context) (bool, error) {
	if _, err := os.Stat(s.artifact()); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// load decodes the artifact into memory on first use. A present-but-undecodable
// artifact is corruption, not absence.
func (s *FlatFile) load() error {
	if s.loaded {
		return nil
	}
	f, err := os.Open(s.artifact())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotBuilt
		}
		return err
	}
	defer f.Close()

	var entries []flatEntry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, s.artifact(), err)
	}
	s.entries = entries
	s.loaded = true
	return nil
}

func (s *FlatFile) Replace(ctx context.Context, passages []models.Passage, vecs [][]float32) error {
	if len(passages) != len(vecs) {
		return fmt.Errorf("passage/vector count mismatch: %d vs %d", len(passages), len(vecs))
	}

	entries := make([]flatEntry, len(passages))
	for i := range passages {
		entries[i] = flatEntry{Passage: passages[i], Vec: vecs[i]}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, flatFileName+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.artifact()); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.mu.Unlock()
	return nil
}

func (s *FlatFile) Search(ctx context.Context, queryVec []float32, k int) ([]models.ScoredPassage, error) {
	s.mu.Lock()
	err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.ScoredPassage, 0, len(s.entries))
	for _, e := range s.entries {
		results = append(results, models.ScoredPassage{
			Passage: e.Passage,
			Score:   cosine(queryVec, e.Vec),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *FlatFile) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	err := s.load()
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
