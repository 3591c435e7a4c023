package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/testutil"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	service   *core.DiagnosisService
	registry  *core.ModelRegistry
	neural    *testutil.MockClassifier
	hybrid    *testutil.MockClassifier
	gate      *testutil.MockGate
	explainer *testutil.MockExplainer
	cache     *testutil.MockCache
}

func newFixture(t *testing.T, cacheEnabled bool) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &fixture{
		registry:  core.NewModelRegistry(logger),
		neural:    &testutil.MockClassifier{NameValue: core.ModelNeural, LabelsValue: []string{"Calculus", "Gingivitis"}},
		hybrid:    &testutil.MockClassifier{NameValue: core.ModelHybrid, LabelsValue: []string{"Calculus", "Gingivitis"}},
		gate:      &testutil.MockGate{},
		explainer: &testutil.MockExplainer{},
		cache:     testutil.NewMockCache(),
	}
	f.hybrid.PredictFunc = func(ctx context.Context, images [][]byte) (*core.ClassificationResult, error) {
		return &core.ClassificationResult{Label: "Gingivitis", ClassIndex: 1, Confidence: 0.8, Source: core.SourceHybrid}, nil
	}
	f.registry.Register(f.neural)
	f.registry.Register(f.hybrid)
	f.registry.Register(f.gate)
	t.Cleanup(func() { f.registry.LoadAll(context.Background()) })

	f.service = core.NewDiagnosisService(f.registry, f.neural, f.hybrid, f.gate, f.explainer, f.cache, logger,
		core.ServiceOptions{CacheEnabled: cacheEnabled, CacheTTL: time.Hour, InferenceWorkers: 2, ExplainWorkers: 1})
	return f
}

func TestExplainRejectsSampleCountBeforeInference(t *testing.T) {
	for _, n := range []int{0, 99, 1001, -5} {
		f := newFixture(t, false)
		_, err := f.service.Explain(context.Background(), []byte("img"), n)

		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("num_samples=%d: expected ValidationError, got %v", n, err)
		}
		if _, predicts := f.hybrid.CallCounts(); predicts != 0 {
			t.Fatalf("num_samples=%d: classifier invoked %d times", n, predicts)
		}
		if load, _ := f.hybrid.CallCounts(); load != 0 {
			t.Fatalf("num_samples=%d: model loaded before validation", n)
		}
		if f.explainer.Calls() != 0 {
			t.Fatalf("num_samples=%d: explainer invoked", n)
		}
	}
}

func TestExplainTargetsHybridPrediction(t *testing.T) {
	f := newFixture(t, false)
	var gotTarget int
	var gotLabel string
	f.explainer.ExplainFunc = func(ctx context.Context, image []byte, target int, label string, n int) (*core.ExplanationArtifact, error) {
		gotTarget, gotLabel = target, label
		return &core.ExplanationArtifact{NumSamples: n}, nil
	}

	d, err := f.service.Explain(context.Background(), []byte("img"), core.MinExplanationSamples)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if gotTarget != 1 || gotLabel != "Gingivitis" {
		t.Fatalf("explained %d/%q, want 1/Gingivitis", gotTarget, gotLabel)
	}
	if d.Prediction.Label != "Gingivitis" || d.Explanation.NumSamples != core.MinExplanationSamples {
		t.Fatalf("unexpected diagnosis %+v", d)
	}
}

func TestExplainFailureProducesNoArtifact(t *testing.T) {
	f := newFixture(t, true)
	f.explainer.ExplainFunc = func(ctx context.Context, image []byte, target int, label string, n int) (*core.ExplanationArtifact, error) {
		return nil, &core.ExplanationError{Stage: "segmentation", Err: errors.New("boom")}
	}

	d, err := f.service.Explain(context.Background(), []byte("img"), 300)
	if d != nil {
		t.Fatalf("expected no diagnosis, got %+v", d)
	}
	var eerr *core.ExplanationError
	if !errors.As(err, &eerr) {
		t.Fatalf("expected ExplanationError, got %v", err)
	}
	for key := range f.cache.Entries {
		if strings.HasSuffix(key, "explain:300") {
			t.Fatalf("failed explanation was cached")
		}
	}
}

func TestPredictFastUsesCache(t *testing.T) {
	f := newFixture(t, true)
	img := []byte("same image")

	first, err := f.service.PredictFast(context.Background(), img)
	if err != nil {
		t.Fatalf("PredictFast: %v", err)
	}
	second, err := f.service.PredictFast(context.Background(), img)
	if err != nil {
		t.Fatalf("PredictFast: %v", err)
	}
	if _, predicts := f.hybrid.CallCounts(); predicts != 1 {
		t.Fatalf("expected one classifier call, got %d", predicts)
	}
	if first.Label != second.Label || second.ClassIndex != 1 {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestUnavailableModelIsReported(t *testing.T) {
	f := newFixture(t, false)
	f.gate.LoadFunc = func(ctx context.Context) error { return errors.New("weights missing") }

	_, err := f.service.ValidateImage(context.Background(), []byte("img"))
	var unavailable *core.ModelUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
	if f.gate.ValidateCalls != 0 {
		t.Fatalf("gate should not run when unavailable")
	}

	status := f.service.Health(context.Background(), core.ModelAutoencoder)
	if status.Available || status.Error == "" {
		t.Fatalf("unexpected status %+v", status)
	}

	// other models keep working
	if _, err := f.service.PredictDisease(context.Background(), [][]byte{[]byte("img")}); err != nil {
		t.Fatalf("PredictDisease: %v", err)
	}
}

func TestConcurrentFirstRequestsLoadOnce(t *testing.T) {
	f := newFixture(t, false)
	release := make(chan struct{})
	f.neural.LoadFunc = func(ctx context.Context) error {
		<-release
		return nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.PredictDisease(context.Background(), [][]byte{[]byte("img")})
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("PredictDisease: %v", err)
		}
	}
	if load, predicts := f.neural.CallCounts(); load != 1 || predicts != 16 {
		t.Fatalf("load=%d predicts=%d, want 1 and 16", load, predicts)
	}
}

func TestHealthDoesNotWaitForLoad(t *testing.T) {
	f := newFixture(t, false)
	release := make(chan struct{})
	releaseLoad := sync.OnceFunc(func() { close(release) })
	t.Cleanup(releaseLoad)
	f.hybrid.LoadFunc = func(ctx context.Context) error {
		<-release
		return nil
	}
	go f.registry.LoadAll(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	status := f.service.Health(ctx, core.ModelHybrid)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Health blocked for %v", elapsed)
	}
	if status.Available {
		t.Fatalf("model reported available before load completed: %+v", status)
	}

	releaseLoad()
	if err := f.registry.Ensure(context.Background(), core.ModelHybrid); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	status = f.service.Health(context.Background(), core.ModelHybrid)
	if !status.Available || len(status.Labels) != 2 {
		t.Fatalf("unexpected status after load %+v", status)
	}
	if load, _ := f.hybrid.CallCounts(); load != 1 {
		t.Fatalf("hybrid loaded %d times", load)
	}
}

func TestHealthStartsLoading(t *testing.T) {
	f := newFixture(t, false)
	loaded := make(chan struct{})
	f.gate.LoadFunc = func(ctx context.Context) error {
		close(loaded)
		return nil
	}

	f.service.Health(context.Background(), core.ModelAutoencoder)
	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("Health did not start loading the model")
	}
	if err := f.registry.Ensure(context.Background(), core.ModelAutoencoder); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
}

func TestPredictDiseaseRequiresImages(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.service.PredictDisease(context.Background(), nil)
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateSampleCountBounds(t *testing.T) {
	for n, ok := range map[int]bool{99: false, 100: true, 300: true, 1000: true, 1001: false} {
		err := core.ValidateSampleCount(n)
		if (err == nil) != ok {
			t.Errorf("ValidateSampleCount(%d) = %v", n, err)
		}
	}
}
