// Package config loads service configuration from the environment.
//
// A .env file in the working directory is loaded first (best effort),
// then PACTEX_* environment variables override the built-in defaults.
// The Gemini API key is read from GEMINI_API_KEY and is required.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Gemini    GeminiConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
	// AdminToken guards /admin endpoints when set. Empty disables auth.
	AdminToken string
}

type GeminiConfig struct {
	APIKey         string
	EmbedModel     string
	GenModel       string
	EmbedBatchSize int
}

type RetrievalConfig struct {
	TopK       int
	Collection string
}

type StorageConfig struct {
	DataDir string
	// XLSXPath is the default spreadsheet consulted by startup
	// auto-population and by populate requests with no explicit path.
	XLSXPath string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Gemini: GeminiConfig{
			EmbedModel:     "text-embedding-004",
			GenModel:       "gemini-1.5-flash-latest",
			EmbedBatchSize: 50,
		},
		Retrieval: RetrievalConfig{
			TopK:       3,
			Collection: "contracts_v1",
		},
		Storage: StorageConfig{
			DataDir:  "data",
			XLSXPath: filepath.Join("data", "contracts.xlsx"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a .env file (if present) and the
// environment, validates it, and returns it. A missing or invalid
// required value is a hard error; callers are expected to exit.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadFromEnv(os.Getenv)
}

func loadFromEnv(getenv func(string) string) (Config, error) {
	cfg := defaults()

	cfg.Gemini.APIKey = getenv("GEMINI_API_KEY")

	setString(&cfg.Gemini.EmbedModel, getenv("PACTEX_EMBED_MODEL"))
	setString(&cfg.Gemini.GenModel, getenv("PACTEX_GEN_MODEL"))
	setString(&cfg.Retrieval.Collection, getenv("PACTEX_COLLECTION"))
	setString(&cfg.Storage.DataDir, getenv("PACTEX_DATA_DIR"))
	setString(&cfg.Storage.XLSXPath, getenv("PACTEX_XLSX_PATH"))
	setString(&cfg.Log.Level, getenv("PACTEX_LOG_LEVEL"))
	setString(&cfg.Server.AdminToken, getenv("PACTEX_ADMIN_TOKEN"))

	if err := setInt(&cfg.Server.Port, getenv("PACTEX_PORT")); err != nil {
		return Config{}, fmt.Errorf("PACTEX_PORT: %w", err)
	}
	if err := setInt(&cfg.Retrieval.TopK, getenv("PACTEX_TOP_K")); err != nil {
		return Config{}, fmt.Errorf("PACTEX_TOP_K: %w", err)
	}
	if err := setInt(&cfg.Gemini.EmbedBatchSize, getenv("PACTEX_EMBED_BATCH_SIZE")); err != nil {
		return Config{}, fmt.Errorf("PACTEX_EMBED_BATCH_SIZE: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Gemini.APIKey == "" {
		return fmt.Errorf("missing required config: GEMINI_API_KEY is not set")
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("PACTEX_TOP_K must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Gemini.EmbedBatchSize < 1 || cfg.Gemini.EmbedBatchSize > 100 {
		return fmt.Errorf("PACTEX_EMBED_BATCH_SIZE must be between 1 and 100, got %d", cfg.Gemini.EmbedBatchSize)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("PACTEX_PORT must be a valid port, got %d", cfg.Server.Port)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v string) error {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("not an integer: %q", v)
	}
	*dst = n
	return nil
}
