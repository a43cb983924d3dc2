package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/safetydesk/regis/internal/ai"
	"github.com/safetydesk/regis/internal/ingest"
	"github.com/safetydesk/regis/internal/store"
	"github.com/safetydesk/regis/pkg/models"
)

// TimeFormat is the wall-clock stamp attached to every answer.
const TimeFormat = "2006-01-02 15:04:05"

// Pipeline runs a query through retrieve -> synthesize -> fallback check ->
// citation aggregation. It owns explicit references to its collaborators; no
// package-level state. The store is read-only after construction, so one
// Pipeline may serve concurrent queries; the lazy first build is serialized
// behind buildMu.
type Pipeline struct {
	Client   ai.Client
	Store    store.PassageStore
	Builder  *ingest.Builder
	K        int
	Fallback FallbackPolicy

	buildMu sync.Mutex
	now     func() time.Time
}

// New creates a Pipeline with the default fallback policy. builder may be nil
// for deployments that provision the index out of band; queries then fail
// until one exists.
func New(client ai.Client, st store.PassageStore, builder *ingest.Builder, k int) *Pipeline {
	return &Pipeline{
		Client:   client,
		Store:    st,
		Builder:  builder,
		K:        k,
		Fallback: NewFallbackPolicy(),
		now:      time.Now,
	}
}

// ensureIndex builds the index on first use if no persisted one exists.
// Presence gates the build: a stale index is served as-is (use Rebuild to
// force a fresh one).
func (p *Pipeline) ensureIndex(ctx context.Context) error {
	ready, err := p.Store.Ready(ctx)
	if err != nil {
		return err
	}
	if ready {
		return nil
	}

	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	// Another query may have built it while we waited.
	ready, err = p.Store.Ready(ctx)
	if err != nil {
		return err
	}
	if ready {
		return nil
	}

	if p.Builder == nil {
		return store.ErrNotBuilt
	}
	log.Info().Msg("no persisted index found, building from documents")
	if err := p.Builder.Run(ctx); err != nil {
		if errors.Is(err, ingest.ErrCorpusEmpty) {
			log.Warn().Msg("corpus is empty; all answers will be ungrounded")
			return nil
		}
		return err
	}
	return nil
}

// Retrieve returns the top-k passages nearest the query in embedding space.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) ([]models.ScoredPassage, error) {
	if err := p.ensureIndex(ctx); err != nil {
		return nil, err
	}

	vec, err := p.Client.Embed(strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	return p.Store.Search(ctx, vec, k)
}

// Synthesize builds the grounded prompt and returns the raw completion. It
// does not judge trustworthiness; that is the fallback policy's job.
func (p *Pipeline) Synthesize(ctx context.Context, query string, passages []models.ScoredPassage) (string, error) {
	return p.Client.Complete(ctx, groundedPrompt(query, passages))
}

func groundedPrompt(query string, passages []models.ScoredPassage) string {
	var b strings.Builder
	b.WriteString("Use the following pieces of context to answer the question at the end. ")
	b.WriteString("If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n")
	for _, sp := range passages {
		b.WriteString(sp.Passage.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\nHelpful Answer:")
	return b.String()
}

// GenerateResponse runs the full pipeline for one query with the configured
// top-k.
func (p *Pipeline) GenerateResponse(ctx context.Context, query string) (models.AnswerRecord, error) {
	return p.Answer(ctx, query, p.K)
}

// Answer runs retrieve -> synthesize -> fallback check -> citation
// aggregation. The answer starts in implicit grounded evaluation; it
// transitions to ungrounded when retrieval came back empty or the synthesized
// text trips the fallback policy, in which case the model is re-asked the raw
// question and citations are dropped.
func (p *Pipeline) Answer(ctx context.Context, query string, k int) (models.AnswerRecord, error) {
	passages, err := p.Retrieve(ctx, query, k)
	if err != nil {
		return models.AnswerRecord{}, err
	}

	var answer string
	if len(passages) > 0 {
		answer, err = p.Synthesize(ctx, query, passages)
		if err != nil {
			return models.AnswerRecord{}, err
		}
	}

	grounded := len(passages) > 0 && !p.Fallback.Triggers(answer)
	if !grounded {
		log.Debug().Str("query", query).Int("passages", len(passages)).Msg("falling back to ungrounded answer")
		answer, err = p.Client.Complete(ctx, query)
		if err != nil {
			return models.AnswerRecord{}, err
		}
		passages = nil
	}

	sum := SummarizeSources(passages)

	rec := models.AnswerRecord{
		Answer:    answer,
		Sources:   "Unknown",
		StartPage: "N/A",
		EndPage:   "N/A",
		Timestamp: p.now().Format(TimeFormat),
		Grounded:  grounded,
	}
	if len(sum.Documents) > 0 {
		rec.Sources = strings.Join(sum.Documents, ", ")
	}
	if sum.HasPages {
		rec.StartPage = strconv.Itoa(sum.StartPage)
		rec.EndPage = strconv.Itoa(sum.EndPage)
	}
	return rec, nil
}

// Rebuild forces a fresh index build regardless of whether one is present.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	if p.Builder == nil {
		return errors.New("no builder configured")
	}
	p.buildMu.Lock()
	defer p.buildMu.Unlock()
	if err := p.Builder.Run(ctx); err != nil && !errors.Is(err, ingest.ErrCorpusEmpty) {
		return err
	}
	return nil
}
