package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/safetydesk/regis/pkg/models"
)

func TestFlatFileReadyBeforeAndAfterBuild(t *testing.T) {
	ctx := context.Background()
	s := NewFlatFile(t.TempDir())

	ready, err := s.Ready(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready {
		t.Error("store should not be ready before any build")
	}

	// Empty corpus still publishes a present index.
	if err := s.Replace(ctx, nil, nil); err != nil {
		t.Fatalf("empty replace failed: %v", err)
	}
	ready, err = s.Ready(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready {
		t.Error("store should be ready after building over an empty corpus")
	}
	n, err := s.Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v; want 0, nil", n, err)
	}
}

func TestFlatFileSearchBeforeBuild(t *testing.T) {
	s := NewFlatFile(t.TempDir())
	if _, err := s.Search(context.Background(), []float32{1, 0}, 3); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("error = %v, want ErrNotBuilt", err)
	}
}

func TestFlatFileReplaceRejectsMismatchedVectors(t *testing.T) {
	s := NewFlatFile(t.TempDir())
	err := s.Replace(context.Background(), []models.Passage{{SourceID: "a.pdf"}}, nil)
	if err == nil {
		t.Error("expected error for passage/vector count mismatch")
	}
}

func TestFlatFileSearchOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewFlatFile(t.TempDir())

	passages := []models.Passage{
		{SourceID: "a.pdf", Page: 1, ChunkIndex: 0, Content: "far"},
		{SourceID: "a.pdf", Page: 2, ChunkIndex: 1, Content: "close"},
		{SourceID: "b.pdf", Page: 5, ChunkIndex: 0, Content: "middle"},
	}
	vecs := [][]float32{
		{0, 1},
		{1, 0},
		{1, 1},
	}
	if err := s.Replace(ctx, passages, vecs); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	got, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Passage.Content != "close" || got[1].Passage.Content != "middle" {
		t.Errorf("unexpected order: %q then %q", got[0].Passage.Content, got[1].Passage.Content)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not decreasing: %f then %f", got[0].Score, got[1].Score)
	}
}

// Building, persisting, then reloading from disk must return the same top-k
// passage identities for the same query.
func TestFlatFileReloadYieldsSameResults(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	built := NewFlatFile(dir)
	passages := []models.Passage{
		{SourceID: "guide.pdf", Page: 1, ChunkIndex: 0, Content: "alpha"},
		{SourceID: "guide.pdf", Page: 2, ChunkIndex: 1, Content: "beta"},
		{SourceID: "rules.pdf", Page: 3, ChunkIndex: 0, Content: "gamma"},
	}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}}
	if err := built.Replace(ctx, passages, vecs); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	reloaded := NewFlatFile(dir)
	query := []float32{1, 0, 0}

	fresh, err := built.Search(ctx, query, 2)
	if err != nil {
		t.Fatalf("search on fresh store failed: %v", err)
	}
	loaded, err := reloaded.Search(ctx, query, 2)
	if err != nil {
		t.Fatalf("search on reloaded store failed: %v", err)
	}
	if len(fresh) != len(loaded) {
		t.Fatalf("result counts differ: %d vs %d", len(fresh), len(loaded))
	}
	for i := range fresh {
		f, l := fresh[i].Passage, loaded[i].Passage
		if f.SourceID != l.SourceID || f.ChunkIndex != l.ChunkIndex {
			t.Errorf("result %d differs: fresh=%s#%d reloaded=%s#%d",
				i, f.SourceID, f.ChunkIndex, l.SourceID, l.ChunkIndex)
		}
	}
}

func TestFlatFileCorruptArtifact(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "passages.gob"), []byte("not gob data"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFlatFile(dir)
	ready, err := s.Ready(ctx)
	if err != nil || !ready {
		t.Fatalf("Ready = %v, %v; a corrupt artifact is still present", ready, err)
	}
	if _, err := s.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("error = %v, want ErrIndexCorrupt", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2}, b: []float32{1, 2}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosine = %f, want %f", got, tt.want)
			}
		})
	}
}
