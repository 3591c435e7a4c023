package httpapi

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Prediction
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("POST /predict-fast", s.handlePredictFast)
	mux.HandleFunc("POST /validate-autoencoder", s.handleValidate)
	mux.HandleFunc("POST /generate-lime", s.handleGenerateExplanation)
	mux.HandleFunc("POST /predict-with-lime", s.handlePredictWithExplanation)

	// Chat
	mux.HandleFunc("POST /chat-stream", s.handleChatStream)

	// Health
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /lime/health", s.handleExplainHealth)
	mux.HandleFunc("GET /autoencoder/health", s.handleAutoencoderHealth)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	return mux
}

var endpointIndex = map[string]map[string]string{
	"prediction": {
		"/predict":              "Neural network prediction over one or more images",
		"/predict-fast":         "Fast prediction (CNN + LightGBM, no explanation)",
		"/validate-autoencoder": "Check that an image looks like an intra-oral photograph",
		"/generate-lime":        "Generate the LIME explanation separately",
		"/predict-with-lime":    "Complete prediction with LIME explanation (slower)",
	},
	"chatbot": {
		"/chat-stream": "Streaming chatbot responses",
	},
	"health": {
		"/health":             "Service status",
		"/lime/health":        "Check hybrid model status",
		"/autoencoder/health": "Check autoencoder status",
	},
}
