package factory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mikey/teethanalyzer/internal/adapters/cache"
	"github.com/mikey/teethanalyzer/internal/adapters/httpapi"
	"github.com/mikey/teethanalyzer/internal/adapters/openai"
	"github.com/mikey/teethanalyzer/internal/config"
	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap/zaptest"
)

func newConfig(t *testing.T, values map[string]any) *config.Config {
	t.Helper()
	v := config.NewEmptyViper()
	for k, val := range values {
		v.Set(k, val)
	}
	return config.NewFromViper(v)
}

func TestCreateChatClientWithoutKeyIsDisabled(t *testing.T) {
	cfg := newConfig(t, map[string]any{"llm.provider": "gemini", "gemini.api_key": ""})
	client, err := NewLLMFactory(cfg, zaptest.NewLogger(t)).CreateChatClient()
	if err != nil {
		t.Fatalf("CreateChatClient() error = %v", err)
	}

	err = client.StreamChat(context.Background(), &core.ChatTurn{Prompt: "hi"}, func(string) bool { return true })
	var upstream *core.UpstreamChatError
	if !errors.As(err, &upstream) || upstream.Provider != "gemini" {
		t.Fatalf("expected UpstreamChatError from gemini, got %v", err)
	}
}

func TestCreateChatClientProviders(t *testing.T) {
	cfg := newConfig(t, map[string]any{"llm.provider": "openai", "openai.api_key": "sk-test"})
	client, err := NewLLMFactory(cfg, zaptest.NewLogger(t)).CreateChatClient()
	if err != nil {
		t.Fatalf("CreateChatClient() error = %v", err)
	}
	if _, ok := client.(*openai.OpenAIClient); !ok {
		t.Errorf("expected OpenAI client, got %T", client)
	}

	cfg = newConfig(t, map[string]any{"llm.provider": "carrier-pigeon"})
	if _, err := NewLLMFactory(cfg, zaptest.NewLogger(t)).CreateChatClient(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestCreateCacheRepository(t *testing.T) {
	cfg := newConfig(t, map[string]any{"cache.type": "memory", "cache.max_entries": 8})
	f := NewCacheFactory(cfg, zaptest.NewLogger(t))

	repo, err := f.CreateCacheRepository()
	if err != nil {
		t.Fatalf("CreateCacheRepository() error = %v", err)
	}
	mc, ok := repo.(*cache.MemoryCache)
	if !ok {
		t.Fatalf("expected memory cache, got %T", repo)
	}
	mc.Stop()

	if !f.IsCacheEnabled() || f.GetCacheTTL() <= 0 {
		t.Errorf("unexpected cache settings enabled=%v ttl=%v", f.IsCacheEnabled(), f.GetCacheTTL())
	}

	cfg = newConfig(t, map[string]any{"cache.type": "redis"})
	if _, err := NewCacheFactory(cfg, zaptest.NewLogger(t)).CreateCacheRepository(); err == nil {
		t.Error("expected error for unknown cache type")
	}
}

func TestModelFactoryWiresConfiguration(t *testing.T) {
	cfg := newConfig(t, map[string]any{
		"models.hybrid.image_size":    128,
		"models.hybrid.metadata_path": filepath.Join(t.TempDir(), "metadata.json"),
		"workers.inference":           3,
	})
	f := NewModelFactory(cfg, zaptest.NewLogger(t))

	server := f.CreateServingClient()
	hybrid := f.CreateHybridClassifier(server)
	if hybrid.InputSize() != 128 {
		t.Errorf("hybrid input size = %d", hybrid.InputSize())
	}

	registry := f.CreateRegistry(f.CreateNeuralClassifier(server), hybrid, f.CreateAnomalyGate(server))
	if got := registry.Names(); len(got) != 3 || got[1] != core.ModelHybrid {
		t.Errorf("registry names = %v", got)
	}
	if opts := f.CreateServiceOptions(); opts.InferenceWorkers != 3 {
		t.Errorf("inference workers = %d", opts.InferenceWorkers)
	}
	if f.CreateExplainer(hybrid) == nil {
		t.Error("explainer not created")
	}
}

func TestCreateFrontend(t *testing.T) {
	cfg := newConfig(t, map[string]any{"server.frontend": "http"})
	frontend, err := NewFrontendFactory(cfg, zaptest.NewLogger(t)).CreateFrontend(nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateFrontend() error = %v", err)
	}
	if _, ok := frontend.(*httpapi.Server); !ok {
		t.Errorf("expected HTTP server, got %T", frontend)
	}

	cfg = newConfig(t, map[string]any{"server.frontend": "cli"})
	if _, err := NewFrontendFactory(cfg, zaptest.NewLogger(t)).CreateFrontend(nil, nil, nil); err == nil {
		t.Error("expected error when cli options are missing")
	}
}
