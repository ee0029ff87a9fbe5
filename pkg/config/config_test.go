package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieval.K != 5 || cfg.Synth.Timeout != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Engine.EmbedRetry != 1 {
		t.Fatalf("embed retry = %d, want 1", cfg.Engine.EmbedRetry)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wessley.yaml")
	data := `
server:
  addr: ":9090"
embed:
  provider: openai
  dimensions: 256
generator:
  provider: ollama
store:
  kind: sqlite
  sqlite_path: /tmp/ev.db
retrieval:
  k: 3
  store_timeout: 2s
synth:
  timeout: 10s
engine:
  infer_vehicle: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Retrieval.K != 3 || cfg.Retrieval.StoreTimeout != 2*time.Second {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.Embed.Model != "text-embedding-3-small" || cfg.Embed.Dimensions != 256 {
		t.Fatalf("embed = %+v", cfg.Embed)
	}
	if cfg.Generator.Model != "llama3.1:8b" || cfg.Generator.BaseURL == "" {
		t.Fatalf("generator = %+v", cfg.Generator)
	}
	if !cfg.Engine.InferVehicle || cfg.Synth.Timeout != 10*time.Second {
		t.Fatalf("engine/synth = %+v %+v", cfg.Engine, cfg.Synth)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{}
	applyEnv(cfg, envMap(map[string]string{
		"PORT":                       "7070",
		"WESSLEY_GENERATOR_PROVIDER": "openai",
		"OPENAI_API_KEY":             "sk-test",
		"ANTHROPIC_API_KEY":          "ignored",
		"QDRANT_URL":                 "qdrant:6334",
		"NATS_URL":                   "nats://bus:4222",
		"WESSLEY_INFER_VEHICLE":      "true",
		"WESSLEY_EMBED_DIMENSIONS":   "384",
		"WESSLEY_NATS_WORKERS":       "3",
		"WESSLEY_SKIP_EXISTING":      "true",
	}))
	applyDefaults(cfg)
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Generator.APIKey != "sk-test" || cfg.Generator.Model != "gpt-4o-mini" {
		t.Errorf("generator = %+v", cfg.Generator)
	}
	if cfg.Store.QdrantAddr != "qdrant:6334" || cfg.NATS.URL != "nats://bus:4222" || cfg.NATS.Workers != 3 {
		t.Errorf("store/nats = %+v %+v", cfg.Store, cfg.NATS)
	}
	if !cfg.Store.SkipExisting {
		t.Error("skip_existing not read from env")
	}
	if !cfg.Engine.InferVehicle || cfg.Embed.Dimensions != 384 {
		t.Errorf("engine = %+v embed = %+v", cfg.Engine, cfg.Embed)
	}
}

func TestApplyEnv_AddrWinsOverPort(t *testing.T) {
	cfg := &Config{}
	applyEnv(cfg, envMap(map[string]string{"PORT": "7070", "WESSLEY_ADDR": "127.0.0.1:1"}))
	if cfg.Server.Addr != "127.0.0.1:1" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg.Store.Kind = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown store error")
	}
	cfg = Default()
	cfg.Generator.Provider = "gemini"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	want := Default()
	want.Retrieval.K = 7
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Retrieval.K != 7 || got.Store.Collection != want.Store.Collection {
		t.Fatalf("got %+v", got)
	}
}

func TestRateBurstDefault(t *testing.T) {
	cfg := &Config{Server: Server{RateLimit: 10}}
	applyDefaults(cfg)
	if cfg.Server.RateBurst != 11 {
		t.Fatalf("burst = %d", cfg.Server.RateBurst)
	}
}
