package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/safetydesk/regis/internal/ai"
	"github.com/safetydesk/regis/internal/config"
	"github.com/safetydesk/regis/internal/history"
	"github.com/safetydesk/regis/internal/ingest"
	"github.com/safetydesk/regis/internal/pipeline"
	"github.com/safetydesk/regis/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("regis-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("store", cfg.StoreBackend).Str("log_level", cfg.LogLevel).Msg("starting regis api")

	clientConfig, err := clientConfigFromSpec(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}
	logger.Info().Int("embedding_dim", c.Dim()).Str("embed_model", clientConfig.EmbedModel).Msg("AI client initialized")

	ctx := context.Background()
	st, closeStore, err := openStore(ctx, cfg, c.Dim())
	if err != nil {
		log.Fatalf("Failed to open passage store: %v", err)
	}
	defer closeStore()

	builder, err := ingest.New(st, c, cfg.DocsDir, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Failed to create index builder: %v", err)
	}

	p := pipeline.New(c, st, builder, cfg.TopK)
	hist := history.NewStore(cfg.HistoryFile)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/ask", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}
		k := cfg.TopK
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				k = n
			}
		}

		rec, err := p.Answer(r.Context(), q, k)
		if err != nil {
			writePipelineError(w, err)
			return
		}

		session := r.URL.Query().Get("session")
		if _, err := hist.Append(history.Entry{
			Question:  q,
			Answer:    rec.Answer,
			Source:    rec.Sources,
			Pages:     rec.StartPage + "-" + rec.EndPage,
			Timestamp: rec.Timestamp,
			Session:   session,
		}); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("failed to record answer history")
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rec); err != nil {
			http.Error(w, "Failed to encode response", 500)
			return
		}
		hlog.FromRequest(r).Info().Str("path", "/ask").Str("q", q).Int("k", k).Bool("grounded", rec.Grounded).Dur("dur", time.Since(start)).Msg("served")
	})

	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		var (
			entries []history.Entry
			err     error
		)
		if session := r.URL.Query().Get("session"); session != "" {
			entries, err = hist.LoadSession(session)
		} else {
			entries, err = hist.Load()
		}
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if entries == nil {
			entries = []history.Entry{}
		}
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, "Failed to encode history", 500)
		}
	})

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := hist.Sessions()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if sessions == nil {
			sessions = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sessions); err != nil {
			http.Error(w, "Failed to encode sessions", 500)
		}
	})

	mux.HandleFunc("/rebuild", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := p.Rebuild(r.Context()); err != nil {
			writePipelineError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

// writePipelineError maps the pipeline's error kinds onto HTTP statuses.
func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ai.ErrDependencyUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, store.ErrIndexCorrupt):
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case errors.Is(err, store.ErrNotBuilt):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func clientConfigFromSpec(cfg config.Specification) (*ai.ClientConfig, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}, nil
	case "vertexai", "google":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}, nil
	case "stub":
		return &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// openStore selects the configured index backend. The postgres backend is
// migrated here so the first build can insert straight away.
func openStore(ctx context.Context, cfg config.Specification, dim int) (store.PassageStore, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if dim == 0 {
			pg.Close()
			return nil, nil, errors.New("embedding dimension must be set for the postgres store")
		}
		if err := pg.Migrate(ctx, dim); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return store.NewFlatFile(cfg.IndexDir), func() {}, nil
	}
}
