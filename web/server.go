// Package web exposes Deskmate as a minimal browser chat:
//
//	GET  /              -> embedded single-page chat UI
//	POST /api/sessions  -> {"session_id": "..."}
//	POST /api/chat      -> {"tool_activity": [...], "final_text": "..."}
//
// Chat history lives in the page; the server only owns sessions and turns.
package web

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deskmate-ai/deskmate"
	"github.com/deskmate-ai/deskmate/conversation"
	"github.com/deskmate-ai/deskmate/logging"
	"github.com/deskmate-ai/deskmate/session"
)

// UserID attributes web sessions and turns.
const UserID = "web_user"

//go:embed index.html
var indexPage []byte

// ServerOptions configures the web server.
type ServerOptions struct {
	// Logger receives structured log output.
	Logger logging.Logger
}

// Server handles the chat endpoints over one Deskmate instance.
type Server struct {
	desk    *deskmate.Deskmate
	handler *conversation.Handler
	logger  logging.Logger
}

// NewServer returns an http.Handler with the chat routes bound.
func NewServer(desk *deskmate.Deskmate, optFns ...func(o *ServerOptions)) http.Handler {
	opts := ServerOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		desk:    desk,
		handler: desk.Handler(UserID),
		logger:  opts.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("POST /api/chat", s.handleChat)

	return mux
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.desk.NewSession(UserID)
	if err != nil {
		s.logger.Error("web.session.create_failed", "error", err.Error())
		encode(w, http.StatusInternalServerError, errorResponse{Error: "failed to create session"})

		return
	}

	s.logger.Info("web.session.created", "session_id", sess.ID)
	encode(w, http.StatusCreated, sessionResponse{SessionID: sess.ID})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		encode(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

		return
	}

	if req.SessionID == "" {
		encode(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})

		return
	}

	result, err := s.handler.HandleTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		encode(w, chatErrorStatus(err), errorResponse{Error: err.Error()})

		return
	}

	encode(w, http.StatusOK, result)
}

// chatErrorStatus maps turn errors onto HTTP statuses: bad input is the
// caller's fault, a missing session is addressable, everything else is an
// upstream failure.
func chatErrorStatus(err error) int {
	switch {
	case errors.Is(err, conversation.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func encode(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
