package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	server := cfg.GetServer()
	if server.ListenAddress != "0.0.0.0:8000" || server.MaxUploadBytes != 10<<20 || server.MaxImagePixels != 40_000_000 {
		t.Errorf("unexpected server defaults: %+v", server)
	}
	if server.RequestTimeout != 180*time.Second {
		t.Errorf("request timeout = %v", server.RequestTimeout)
	}
	if len(server.AllowedOrigins) != 1 || server.AllowedOrigins[0] != "*" {
		t.Errorf("allowed origins = %v", server.AllowedOrigins)
	}

	if n := cfg.GetNeural(); n.ImageSize != 224 || len(n.Classes) != 6 {
		t.Errorf("unexpected neural defaults: %+v", n)
	}
	if h := cfg.GetHybrid(); h.ImageSize != 260 || h.Name != "dental_lens_v4" {
		t.Errorf("unexpected hybrid defaults: %+v", h)
	}
	if a := cfg.GetAutoencoder(); a.Threshold != 0.05 {
		t.Errorf("threshold = %v", a.Threshold)
	}

	e := cfg.GetExplain()
	if e.Segments != 50 || e.Seed != 42 || e.KernelWidth != 0.25 || e.DefaultSamples != 300 {
		t.Errorf("unexpected explain defaults: %+v", e)
	}
	if g := cfg.GetGemini(); g.ModelName != "gemini-2.0-flash" {
		t.Errorf("gemini model = %q", g.ModelName)
	}
	if w := cfg.GetWorkers(); w.Inference != 4 || w.Explain != 1 {
		t.Errorf("unexpected workers: %+v", w)
	}
}

func TestNewWithFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
server:
  listen_address: "127.0.0.1:9000"
cache:
  type: sqlite
  ttl: 30m
explain:
  segments: 80
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("TEETH_WORKERS_INFERENCE", "8")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := NewWithFile(path)
	if err != nil {
		t.Fatalf("NewWithFile: %v", err)
	}

	if got := cfg.GetServer().ListenAddress; got != "127.0.0.1:9000" {
		t.Errorf("listen address = %q", got)
	}
	if c := cfg.GetCache(); c.Type != "sqlite" || c.TTL != 30*time.Minute {
		t.Errorf("unexpected cache config: %+v", c)
	}
	if got := cfg.GetExplain().Segments; got != 80 {
		t.Errorf("segments = %d", got)
	}
	if got := cfg.GetWorkers().Inference; got != 8 {
		t.Errorf("inference workers = %d", got)
	}
	if got := cfg.GetGemini().APIKey; got != "secret" {
		t.Errorf("gemini api key = %q", got)
	}
}

func TestMalformedDurationFallsBack(t *testing.T) {
	v := NewEmptyViper()
	v.Set("cache.ttl", "soon")
	if got := NewFromViper(v).GetCache().TTL; got != time.Hour {
		t.Errorf("ttl = %v, want fallback of 1h", got)
	}
}
