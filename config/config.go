package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Supported vector store backends.
const (
	StoreSQLite = "sqlite"
	StoreChroma = "chroma"
)

// Supported chat model providers.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Config holds everything the server needs at startup. Values come from the
// environment, optionally seeded from a .env file in the working directory.
type Config struct {
	Host string
	Port string

	DataDir   string
	IndexPath string

	VectorStore      string
	ChromaURL        string
	ChromaCollection string

	LLMProvider    string
	OllamaURL      string
	LLMModel       string
	GeminiModel    string
	GeminiAPIKey   string
	EmbeddingModel string

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	WatchDataDir     bool
	UnidocLicenseKey string
	LogLevel         string
}

// Load reads the .env file (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on environment variables.")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Host:             get("HOST", "0.0.0.0"),
		Port:             get("PORT", "8080"),
		DataDir:          get("DATA_DIR", "data"),
		IndexPath:        get("INDEX_PATH", "vector_index"),
		VectorStore:      strings.ToLower(get("VECTOR_STORE", StoreSQLite)),
		ChromaURL:        get("CHROMA_URL", "http://localhost:8000"),
		ChromaCollection: get("CHROMA_COLLECTION", "pdfchat"),
		LLMProvider:      strings.ToLower(get("LLM_PROVIDER", ProviderOllama)),
		OllamaURL:        get("OLLAMA_URL", "http://localhost:11434"),
		LLMModel:         get("LLM_MODEL", "mistral"),
		GeminiModel:      get("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiAPIKey:     getenv("GEMINI_API_KEY"),
		EmbeddingModel:   get("EMBEDDING_MODEL", "all-minilm"),
		UnidocLicenseKey: getenv("UNIDOC_LICENSE_KEY"),
		LogLevel:         get("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ChunkSize, err = atoi(get("CHUNK_SIZE", "300"), "CHUNK_SIZE"); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = atoi(get("CHUNK_OVERLAP", "50"), "CHUNK_OVERLAP"); err != nil {
		return nil, err
	}
	if cfg.TopK, err = atoi(get("TOP_K", "5"), "TOP_K"); err != nil {
		return nil, err
	}
	if cfg.WatchDataDir, err = strconv.ParseBool(get("WATCH_DATA_DIR", "false")); err != nil {
		return nil, fmt.Errorf("invalid WATCH_DATA_DIR: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK < 1 {
		return fmt.Errorf("TOP_K must be at least 1, got %d", c.TopK)
	}
	switch c.VectorStore {
	case StoreSQLite, StoreChroma:
	default:
		return fmt.Errorf("unsupported VECTOR_STORE %q", c.VectorStore)
	}
	switch c.LLMProvider {
	case ProviderOllama:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set when LLM_PROVIDER is %q", ProviderGemini)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func atoi(v, key string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
