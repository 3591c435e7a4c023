package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mikey/teethanalyzer/internal/core"
	"github.com/mikey/teethanalyzer/internal/imaging"
	"go.uber.org/zap"
)

const (
	statusSuccess   = "success"
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// hybridPrediction is the wire form of a hybrid classification. Label, Confidence and
// Source repeat the hybrid decision under the generic result keys.
type hybridPrediction struct {
	Label            string             `json:"label"`
	Confidence       float64            `json:"confidence"`
	Source           core.Source        `json:"source"`
	HybridPrediction string             `json:"hybrid_prediction"`
	HybridConfidence float64            `json:"hybrid_confidence"`
	CNNPrediction    string             `json:"cnn_prediction"`
	CNNConfidence    float64            `json:"cnn_confidence"`
	AllScores        map[string]float64 `json:"all_scores"`
	ModelUsed        string             `json:"model_used"`
}

func newHybridPrediction(r *core.ClassificationResult) hybridPrediction {
	return hybridPrediction{
		Label:            r.Label,
		Confidence:       r.Confidence,
		Source:           r.Source,
		HybridPrediction: r.Label,
		HybridConfidence: r.Confidence,
		CNNPrediction:    r.CNNLabel,
		CNNConfidence:    r.CNNConfidence,
		AllScores:        r.AllScores,
		ModelUsed:        r.ModelUsed,
	}
}

type predictResponse struct {
	Prediction [2]string `json:"prediction"`
}

type predictFastResponse struct {
	Status     string           `json:"status"`
	Prediction hybridPrediction `json:"prediction"`
}

type validateResponse struct {
	Status              string  `json:"status"`
	IsValid             bool    `json:"is_valid"`
	ReconstructionError float64 `json:"reconstruction_error"`
	Threshold           float64 `json:"threshold"`
	Confidence          float64 `json:"confidence"`
}

type explanationResponse struct {
	Status           string                     `json:"status"`
	Prediction       *hybridPrediction          `json:"prediction,omitempty"`
	ExplanationImage string                     `json:"explanation_image"`
	Statistics       core.ExplanationStatistics `json:"lime_statistics"`
	NumSamples       int                        `json:"num_samples"`
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image,omitempty"`
}

// FormatConfidence renders a probability as a percentage with two decimals
func FormatConfidence(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	images, err := s.readUploads(w, r)
	if err != nil {
		s.writeError(w, r, "Prediction", err)
		return
	}

	result, err := s.service.PredictDisease(r.Context(), images)
	if err != nil {
		s.writeError(w, r, "Prediction", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, predictResponse{
		Prediction: [2]string{result.Label, FormatConfidence(result.Confidence)},
	})
}

func (s *Server) handlePredictFast(w http.ResponseWriter, r *http.Request) {
	image, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, "Fast prediction", err)
		return
	}

	result, err := s.service.PredictFast(r.Context(), image)
	if err != nil {
		s.writeError(w, r, "Fast prediction", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, predictFastResponse{
		Status:     statusSuccess,
		Prediction: newHybridPrediction(result),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	image, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, "Validation", err)
		return
	}

	verdict, err := s.service.ValidateImage(r.Context(), image)
	if err != nil {
		s.writeError(w, r, "Validation", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, validateResponse{
		Status:              statusSuccess,
		IsValid:             !verdict.IsAnomalous,
		ReconstructionError: verdict.ReconstructionError,
		Threshold:           verdict.Threshold,
		Confidence:          verdict.Confidence,
	})
}

func (s *Server) handleGenerateExplanation(w http.ResponseWriter, r *http.Request) {
	diagnosis, ok := s.explain(w, r, "LIME generation")
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, newExplanationResponse(diagnosis, false))
}

func (s *Server) handlePredictWithExplanation(w http.ResponseWriter, r *http.Request) {
	diagnosis, ok := s.explain(w, r, "LIME explanation")
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, newExplanationResponse(diagnosis, true))
}

// explain runs the shared part of both explanation endpoints
func (s *Server) explain(w http.ResponseWriter, r *http.Request, action string) (*core.Diagnosis, bool) {
	image, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, action, err)
		return nil, false
	}
	numSamples, err := s.sampleCount(r)
	if err != nil {
		s.writeError(w, r, action, err)
		return nil, false
	}

	loggerFrom(r.Context(), s.logger).Info("Explaining upload", zap.Int("num_samples", numSamples))

	diagnosis, err := s.service.Explain(r.Context(), image, numSamples)
	if err != nil {
		s.writeError(w, r, action, err)
		return nil, false
	}
	return diagnosis, true
}

func newExplanationResponse(d *core.Diagnosis, withPrediction bool) explanationResponse {
	resp := explanationResponse{
		Status:           statusSuccess,
		ExplanationImage: base64.StdEncoding.EncodeToString(d.Explanation.Image),
		Statistics:       d.Explanation.Statistics,
		NumSamples:       d.Explanation.NumSamples,
	}
	if withPrediction {
		p := newHybridPrediction(d.Prediction)
		resp.Prediction = &p
	}
	return resp
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, "Chat", err)
			return
		}
		s.writeError(w, r, "Chat", &core.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	if req.Prompt == "" {
		s.writeError(w, r, "Chat", &core.ValidationError{Field: "prompt", Message: "prompt is required"})
		return
	}

	turn := &core.ChatTurn{Prompt: req.Prompt}
	if req.Image != "" {
		data, mime, err := imaging.DecodeBase64Image(req.Image)
		if err != nil {
			s.writeError(w, r, "Chat", err)
			return
		}
		turn.Image = data
		turn.ImageMIME = mime
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	logger := loggerFrom(r.Context(), s.logger)
	fragments := 0
	for fragment := range s.relay.Relay(r.Context(), turn) {
		if _, err := w.Write([]byte(fragment)); err != nil {
			logger.Info("Chat client went away", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		fragments++
	}
	logger.Debug("Chat stream finished", zap.Int("fragments", fragments))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	models := make(map[string]core.ModelStatus, 3)
	for _, name := range []string{core.ModelNeural, core.ModelHybrid, core.ModelAutoencoder} {
		models[name] = s.service.Health(r.Context(), name)
	}

	status, code := statusHealthy, http.StatusOK
	if !models[core.ModelHybrid].Available {
		status, code = statusUnhealthy, http.StatusServiceUnavailable
	}

	s.writeJSON(w, r, code, map[string]any{
		"status":  status,
		"service": "dental-api",
		"model":   "CNN + LightGBM Hybrid",
		"models":  models,
	})
}

func (s *Server) handleExplainHealth(w http.ResponseWriter, r *http.Request) {
	status := s.service.Health(r.Context(), core.ModelHybrid)
	if !status.Available {
		s.writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{
			Detail: "LIME model not available: " + status.Error,
		})
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":          statusHealthy,
		"model_loaded":    true,
		"model_type":      "LightGBM Hybrid",
		"num_classes":     len(status.Labels),
		"disease_classes": status.Labels,
	})
}

func (s *Server) handleAutoencoderHealth(w http.ResponseWriter, r *http.Request) {
	status := s.service.Health(r.Context(), core.ModelAutoencoder)
	if !status.Available {
		s.writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{
			Detail: "Autoencoder model not available: " + status.Error,
		})
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":       statusHealthy,
		"model_loaded": true,
		"model_type":   "Convolutional Autoencoder",
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"message":   "Dental Disease Detection API - Hybrid CNN + LightGBM",
		"endpoints": endpointIndex,
	})
}
