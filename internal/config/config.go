package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks a fatal startup misconfiguration (missing
// credentials, nonsense chunk parameters). The pipeline must not initialize.
var ErrConfiguration = errors.New("invalid configuration")

type Specification struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel string `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ChatModel  string `yaml:"providerChatModel" envconfig:"PROVIDER_CHAT_MODEL"`
	ProjectID  string `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location   string `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim        int    `yaml:"providerDim" envconfig:"EMBED_DIM"`

	StoreBackend string `yaml:"store" envconfig:"STORE"`
	Database     string `yaml:"database" envconfig:"DB_URL"`
	DocsDir      string `yaml:"docsDir" split_words:"true"`
	IndexDir     string `yaml:"indexDir" split_words:"true"`
	HistoryFile  string `yaml:"historyFile" split_words:"true"`

	ChunkSize    int `yaml:"chunkSize" split_words:"true"`
	ChunkOverlap int `yaml:"chunkOverlap" split_words:"true"`
	TopK         int `yaml:"topK" envconfig:"TOP_K"`

	LogLevel string `yaml:"logLevel" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "REGIS"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover. A .env file in the working
// directory is folded into the environment first, if present.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	_ = godotenv.Load()

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/regis.yaml",
				"config/config.yaml",
				"./regis.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if err := validate(&cfg); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// validate enforces the fatal startup checks: the pipeline must not come up
// without the external capabilities it needs.
func validate(c *Specification) error {
	switch strings.ToLower(c.Provider) {
	case "stub":
	case "openai":
		if strings.TrimSpace(c.APIKey) == "" {
			return fmt.Errorf("%w: provider %q requires REGIS_PROVIDER_API_KEY", ErrConfiguration, c.Provider)
		}
	case "vertexai", "google":
		if strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.ProjectID) == "" {
			return fmt.Errorf("%w: provider %q requires an API key or project ID", ErrConfiguration, c.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrConfiguration, c.Provider)
	}

	switch c.StoreBackend {
	case "file":
	case "postgres":
		if strings.TrimSpace(c.Database) == "" {
			return fmt.Errorf("%w: store %q requires REGIS_DB_URL", ErrConfiguration, c.StoreBackend)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrConfiguration, c.StoreBackend)
	}

	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must satisfy 0 <= overlap < size (got size=%d overlap=%d)",
			ErrConfiguration, c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: topK must be positive", ErrConfiguration)
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	return nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("provider", c.Provider, "Provider (e.g., stub, openai, vertexai)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-chat-model", c.ChatModel, "Provider chat/completion model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")

	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")

	fs.String("store", c.StoreBackend, "Index store backend (file|postgres)")
	fs.String("db-url", c.Database, "Database URL (DSN) for the postgres store")
	fs.String("docs-dir", c.DocsDir, "Directory holding the source documents")
	fs.String("index-dir", c.IndexDir, "Directory holding the persisted index artifacts")
	fs.String("history-file", c.HistoryFile, "Path of the answer history JSON file")

	fs.Int("chunk-size", c.ChunkSize, "Passage size in characters")
	fs.Int("chunk-overlap", c.ChunkOverlap, "Overlap between adjacent passages in characters")
	fs.Int("top-k", c.TopK, "Number of passages retrieved per query")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-chat-model", &c.ChatModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)

	setInt("embed-dim", &c.Dim)

	setStr("store", &c.StoreBackend)
	setStr("db-url", &c.Database)
	setStr("docs-dir", &c.DocsDir)
	setStr("index-dir", &c.IndexDir)
	setStr("history-file", &c.HistoryFile)

	setInt("chunk-size", &c.ChunkSize)
	setInt("chunk-overlap", &c.ChunkOverlap)
	setInt("top-k", &c.TopK)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
}

func setDefaults(c *Specification) {
	c.Provider = "stub"
	c.Location = "us-central1"
	c.Dim = 0

	c.StoreBackend = "file"
	c.Database = ""
	c.DocsDir = "docs"
	c.IndexDir = "index"
	c.HistoryFile = "user_data/chat_history.json"

	c.ChunkSize = 800
	c.ChunkOverlap = 120
	c.TopK = 8

	c.LogLevel = "info"
	c.Port = 8080
}
