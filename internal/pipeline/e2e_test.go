package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/karrick/godirwalk"
	"github.com/safetydesk/regis/internal/ingest"
	"github.com/safetydesk/regis/internal/store"
)

type fakeWalker struct{ paths []string }

func (f *fakeWalker) Walk(root string, options *godirwalk.Options) error {
	for _, p := range f.paths {
		if err := options.Callback(p, nil); err != nil {
			return err
		}
	}
	return nil
}

type fakeExtractor struct{ pages []ingest.Page }

func (f *fakeExtractor) Pages(path string) ([]ingest.Page, error) {
	return f.pages, nil
}

// Full flow over one two-page document: the first query finds no persisted
// index, builds one from the corpus, retrieves the nearest page, and answers
// with a citation to it.
func TestGenerateResponseLazyBuildEndToEnd(t *testing.T) {
	ctx := context.Background()

	client := &MockAIClient{
		EmbedFunc: func(text string) ([]float32, error) {
			// Steer both the question and the hard-hat page to the same corner
			// of embedding space.
			if strings.Contains(text, "Hard hats") || strings.Contains(text, "PPE is required") {
				return []float32{1, 0}, nil
			}
			return []float32{0, 1}, nil
		},
		CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
			return "Hard hats are required.", nil
		},
	}

	st := store.NewFlatFile(t.TempDir())
	builder, err := ingest.New(st, client, "docs", 800, 120)
	if err != nil {
		t.Fatal(err)
	}
	builder.Walker = &fakeWalker{paths: []string{"docs/site-rules.pdf"}}
	builder.Extractor = &fakeExtractor{pages: []ingest.Page{
		{Number: 1, Text: "Wear PPE at all times."},
		{Number: 2, Text: "Hard hats required on site."},
	}}

	p := New(client, st, builder, 1)

	rec, err := p.GenerateResponse(ctx, "What PPE is required?")
	if err != nil {
		t.Fatalf("GenerateResponse failed: %v", err)
	}

	if rec.Answer != "Hard hats are required." {
		t.Errorf("Answer = %q", rec.Answer)
	}
	if !strings.Contains(rec.Sources, "site-rules.pdf") {
		t.Errorf("Sources = %q, want it to contain the document name", rec.Sources)
	}
	if rec.StartPage != "2" || rec.EndPage != "2" {
		t.Errorf("pages = (%q, %q), want (2, 2)", rec.StartPage, rec.EndPage)
	}

	// The build must have been persisted as a side effect.
	ready, err := st.Ready(ctx)
	if err != nil || !ready {
		t.Errorf("Ready = %v, %v after lazy build; want true, nil", ready, err)
	}

	// A second query reuses the persisted index without rebuilding.
	builder.Walker = &fakeWalker{} // would produce an empty corpus if re-run
	rec2, err := p.GenerateResponse(ctx, "What PPE is required?")
	if err != nil {
		t.Fatalf("second GenerateResponse failed: %v", err)
	}
	if rec2.StartPage != "2" {
		t.Errorf("second query pages = %q, want 2 (index must not have been rebuilt)", rec2.StartPage)
	}
}
