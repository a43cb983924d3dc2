package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/safetydesk/regis/internal/ai"
	"github.com/safetydesk/regis/internal/chunker"
	"github.com/safetydesk/regis/internal/store"
	"github.com/safetydesk/regis/pkg/models"
)

// ErrCorpusEmpty is returned by Run when the docs directory holds no source
// documents. It is not fatal: the build still publishes an empty index, so
// every subsequent query takes the ungrounded path. Callers may log and
// continue.
var ErrCorpusEmpty = errors.New("no source documents found")

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// Builder turns the document corpus into a published index snapshot:
// walk docs dir, extract pages, chunk, embed, atomic replace.
type Builder struct {
	Store     store.PassageStore
	Client    ai.Client
	DocsDir   string
	Chunker   *chunker.Chunker
	Walker    FileSystemWalker
	Extractor PageExtractor
}

// New creates a Builder with default filesystem and PDF dependencies.
func New(s store.PassageStore, client ai.Client, docsDir string, chunkSize, chunkOverlap int) (*Builder, error) {
	c, err := chunker.New(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Builder{
		Store:     s,
		Client:    client,
		DocsDir:   docsDir,
		Chunker:   c,
		Walker:    &DefaultFileSystemWalker{},
		Extractor: PDFExtractor{},
	}, nil
}

// Run builds and publishes a full corpus snapshot. Nothing becomes visible to
// queries until every chunk has been embedded; an embedding failure aborts the
// build with nothing published.
func (b *Builder) Run(ctx context.Context) error {
	paths, err := b.collectDocs()
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		log.Warn().Str("docs_dir", b.DocsDir).Msg("corpus is empty, publishing empty index")
		if err := b.Store.Replace(ctx, nil, nil); err != nil {
			return err
		}
		return ErrCorpusEmpty
	}

	var passages []models.Passage
	for _, path := range paths {
		pages, err := b.Extractor.Pages(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to read document, skipping")
			continue
		}
		chunkBase := 0
		for _, pg := range pages {
			ps := b.Chunker.Split(pg.Text, path, pg.Number, chunkBase)
			chunkBase += len(ps)
			passages = append(passages, ps...)
		}
		log.Info().Str("path", path).Int("chunks", chunkBase).Msg("chunked document")
	}

	vecs, err := b.embedAll(ctx, passages)
	if err != nil {
		return err
	}

	if err := b.Store.Replace(ctx, passages, vecs); err != nil {
		return err
	}
	log.Info().Int("documents", len(paths)).Int("passages", len(passages)).Msg("index published")
	return nil
}

// embedAll embeds every passage on a bounded worker pool, preserving passage
// order. The first error wins and aborts the build.
func (b *Builder) embedAll(ctx context.Context, passages []models.Passage) ([][]float32, error) {
	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8 // avoid overwhelming the embedding API
	}

	vecs := make([][]float32, len(passages))
	jobs := make(chan int)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vec, err := b.Client.Embed(passages[i].Content)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				vecs[i] = vec
			}
		}()
	}

	for i := range passages {
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			mu.Lock()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			mu.Unlock()
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vecs, nil
}

// collectDocs walks the docs directory and returns the sorted set of PDF
// paths, so builds over the same corpus see documents in the same order.
func (b *Builder) collectDocs() ([]string, error) {
	var paths []string
	err := b.Walker.Walk(b.DocsDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".pdf") {
				paths = append(paths, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
