package remote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deskmate-ai/deskmate/conversation"
)

type queryRequest struct {
	Text string `json:"text"`
}

type queryResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewServer returns an http.Handler serving the query endpoint over the
// given engine.
func NewServer(engine *Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, queryResponse{Error: "invalid request body"})

			return
		}

		response, err := engine.Query(r.Context(), req.Text)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, conversation.ErrEmptyQuery) {
				status = http.StatusBadRequest
			}

			writeJSON(w, status, queryResponse{Error: err.Error()})

			return
		}

		writeJSON(w, http.StatusOK, queryResponse{Response: response})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, statusCode int, payload queryResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
