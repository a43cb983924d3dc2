package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/safetydesk/regis/internal/ai"
	"github.com/safetydesk/regis/internal/config"
	"github.com/safetydesk/regis/internal/ingest"
	"github.com/safetydesk/regis/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("regis-indexer", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	clientConfig, err := clientConfigFromSpec(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	var st store.PassageStore
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.Database)
		if err != nil {
			log.Fatal(err)
		}
		defer pg.Close()
		if c.Dim() == 0 {
			log.Fatal("embedding dimension must be set")
		}
		if err := pg.Migrate(ctx, c.Dim()); err != nil {
			log.Fatal(err)
		}
		st = pg
	default:
		st = store.NewFlatFile(cfg.IndexDir)
	}

	ix, err := ingest.New(st, c, cfg.DocsDir, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal(err)
	}

	if err := ix.Run(ctx); err != nil {
		if errors.Is(err, ingest.ErrCorpusEmpty) {
			log.Printf("warning: %v (published an empty index)", err)
			return
		}
		log.Fatal(err)
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
