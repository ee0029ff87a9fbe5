// Package config loads service configuration from a YAML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Server configures the HTTP transport.
type Server struct {
	Addr        string        `yaml:"addr"`
	MetricsAddr string        `yaml:"metrics_addr"`
	CORSOrigin  string        `yaml:"cors_origin"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst   int           `yaml:"rate_burst"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout must exceed synth.timeout or slow generations are cut off.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Embed selects the embedding backend.
type Embed struct {
	Provider   string        `yaml:"provider"` // ollama | openai
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	// RateLimit caps ingest embedding calls per second. 0 disables it.
	RateLimit float64 `yaml:"rate_limit"`
}

// Generator selects the generative backend.
type Generator struct {
	Provider string `yaml:"provider"` // anthropic | openai | ollama
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

// Store selects the evidence store.
type Store struct {
	Kind       string `yaml:"kind"` // qdrant | sqlite | memory
	QdrantAddr string `yaml:"qdrant_addr"`
	Collection string `yaml:"collection"`
	SQLitePath string `yaml:"sqlite_path"`

	// SkipExisting makes ingestion skip ids the store already holds instead
	// of re-embedding them. Edited bulletins keep their old text while set.
	SkipExisting bool `yaml:"skip_existing"`
}

// Retrieval tunes the evidence retriever.
type Retrieval struct {
	K            int           `yaml:"k"`
	MinScore     float32       `yaml:"min_score"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

// Synth tunes the diagnosis synthesizer.
type Synth struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	BreakerFails   int           `yaml:"breaker_fails"`
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`
}

// Engine tunes the orchestrator.
type Engine struct {
	InferVehicle bool `yaml:"infer_vehicle"`
	EmbedRetry   int  `yaml:"embed_retry"` // attempts, 1 means no retry
}

// NATS configures the message bus. An empty URL disables it.
type NATS struct {
	URL     string `yaml:"url"`
	Queue   string `yaml:"queue"`
	Workers int    `yaml:"workers"` // concurrent diagnoses per replica
}

// Neo4j configures the component graph. An empty URL disables it.
type Neo4j struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Config is the root configuration.
type Config struct {
	Server    Server    `yaml:"server"`
	Embed     Embed     `yaml:"embed"`
	Generator Generator `yaml:"generator"`
	Store     Store     `yaml:"store"`
	Retrieval Retrieval `yaml:"retrieval"`
	Synth     Synth     `yaml:"synth"`
	Engine    Engine    `yaml:"engine"`
	NATS      NATS      `yaml:"nats"`
	Neo4j     Neo4j     `yaml:"neo4j"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path, then applies .env and environment overrides. A missing
// file yields defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg, os.Getenv)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown providers and store kinds.
func (c *Config) Validate() error {
	switch c.Embed.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config: unknown embed provider %q", c.Embed.Provider)
	}
	switch c.Generator.Provider {
	case "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("config: unknown generator provider %q", c.Generator.Provider)
	}
	switch c.Store.Kind {
	case "qdrant", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	if c.Embed.Dimensions <= 0 {
		return fmt.Errorf("config: embed.dimensions must be positive, got %d", c.Embed.Dimensions)
	}
	return nil
}

func applyDefaults(c *Config) {
	setStr(&c.Server.Addr, ":8080")
	setStr(&c.Server.CORSOrigin, "*")
	setDur(&c.Server.ReadTimeout, 15*time.Second)
	setDur(&c.Server.WriteTimeout, 60*time.Second)
	if c.Server.RateLimit > 0 && c.Server.RateBurst == 0 {
		c.Server.RateBurst = int(c.Server.RateLimit) + 1
	}

	setStr(&c.Embed.Provider, "ollama")
	switch c.Embed.Provider {
	case "ollama":
		setStr(&c.Embed.Model, "nomic-embed-text")
		setStr(&c.Embed.BaseURL, "http://localhost:11434")
		setInt(&c.Embed.Dimensions, 768)
	case "openai":
		setStr(&c.Embed.Model, "text-embedding-3-small")
		setInt(&c.Embed.Dimensions, 1536)
	}
	setDur(&c.Embed.Timeout, 5*time.Second)

	setStr(&c.Generator.Provider, "anthropic")
	switch c.Generator.Provider {
	case "anthropic":
		setStr(&c.Generator.Model, "claude-3-5-haiku-latest")
	case "openai":
		setStr(&c.Generator.Model, "gpt-4o-mini")
	case "ollama":
		setStr(&c.Generator.Model, "llama3.1:8b")
		setStr(&c.Generator.BaseURL, "http://localhost:11434")
	}

	setStr(&c.Store.Kind, "qdrant")
	setStr(&c.Store.QdrantAddr, "localhost:6334")
	setStr(&c.Store.Collection, "wessley_evidence")
	setStr(&c.Store.SQLitePath, filepath.Join("data", "evidence.db"))

	setInt(&c.Retrieval.K, 5)
	if c.Retrieval.MinScore == 0 {
		c.Retrieval.MinScore = 0.15
	}
	setDur(&c.Retrieval.StoreTimeout, 3*time.Second)

	setDur(&c.Synth.Timeout, 30*time.Second)
	setInt(&c.Synth.MaxTokens, 1500)
	setInt(&c.Synth.BreakerFails, 5)
	setDur(&c.Synth.BreakerTimeout, 30*time.Second)

	setInt(&c.Engine.EmbedRetry, 1)
	setStr(&c.NATS.Queue, "diagnose")
	setInt(&c.NATS.Workers, 8)
	setStr(&c.Neo4j.User, "neo4j")
	setStr(&c.Neo4j.Database, "neo4j")
}

// applyEnv overrides fields from the environment. getenv is injected for tests.
func applyEnv(c *Config, getenv func(string) string) {
	env := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	env(&c.Server.Addr, "WESSLEY_ADDR")
	if p := getenv("PORT"); p != "" && getenv("WESSLEY_ADDR") == "" {
		c.Server.Addr = ":" + p
	}
	env(&c.Server.MetricsAddr, "WESSLEY_METRICS_ADDR")
	env(&c.Server.CORSOrigin, "CORS_ORIGIN")

	env(&c.Embed.Provider, "WESSLEY_EMBED_PROVIDER")
	env(&c.Embed.Model, "WESSLEY_EMBED_MODEL")
	env(&c.Embed.BaseURL, "WESSLEY_EMBED_URL", "OLLAMA_URL")
	env(&c.Generator.Provider, "WESSLEY_GENERATOR_PROVIDER")
	env(&c.Generator.Model, "WESSLEY_GENERATOR_MODEL")
	env(&c.Generator.BaseURL, "WESSLEY_GENERATOR_URL")

	switch c.Generator.Provider {
	case "anthropic":
		env(&c.Generator.APIKey, "ANTHROPIC_API_KEY")
	case "openai":
		env(&c.Generator.APIKey, "OPENAI_API_KEY")
	}
	if c.Embed.Provider == "openai" {
		env(&c.Embed.APIKey, "OPENAI_API_KEY")
	}
	if v := getenv("WESSLEY_EMBED_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Embed.RateLimit = f
		}
	}
	if v := getenv("WESSLEY_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embed.Dimensions = n
		}
	}

	env(&c.Store.Kind, "WESSLEY_STORE")
	env(&c.Store.QdrantAddr, "QDRANT_URL")
	env(&c.Store.Collection, "QDRANT_COLLECTION")
	env(&c.Store.SQLitePath, "WESSLEY_SQLITE_PATH")

	env(&c.NATS.URL, "NATS_URL")
	if v := getenv("WESSLEY_NATS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.NATS.Workers = n
		}
	}
	env(&c.Neo4j.URL, "NEO4J_URL")
	env(&c.Neo4j.User, "NEO4J_USER")
	env(&c.Neo4j.Password, "NEO4J_PASS")

	if v := getenv("WESSLEY_SKIP_EXISTING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Store.SkipExisting = b
		}
	}
	if v := getenv("WESSLEY_INFER_VEHICLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Engine.InferVehicle = b
		}
	}
}

func setStr(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func setDur(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}
