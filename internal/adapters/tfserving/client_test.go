package tfserving

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPredictFlattensNestedPredictions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/models/dental:predict" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			SignatureName string      `json:"signature_name"`
			Instances     [][]float64 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.SignatureName != "features" || len(req.Instances) != 2 {
			t.Errorf("unexpected body %+v", req)
		}
		w.Write([]byte(`{"predictions": [[[0.1, 0.2]], [[0.3], [0.4]]]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, zap.NewNop())
	got, err := c.Predict(context.Background(), "dental", "features", [][]float64{{1}, {2}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 2 || got[1][1] != 0.4 {
		t.Fatalf("unexpected predictions %v", got)
	}
}

func TestPredictReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "Servable not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := c.Predict(context.Background(), "missing", "", []int{1})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	var state atomic.Value
	state.Store("AVAILABLE")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model_version_status":[{"version":"1","state":"` + state.Load().(string) + `","status":{"error_code":"OK","error_message":""}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	if err := c.Status(context.Background(), "dental"); err != nil {
		t.Fatalf("Status: %v", err)
	}
	state.Store("LOADING")
	if err := c.Status(context.Background(), "dental"); err == nil {
		t.Fatalf("expected error for LOADING model")
	}
}
