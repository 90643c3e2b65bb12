package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"echobot/pkg/chat"
	"echobot/pkg/llm"
	"echobot/pkg/router"
)

const healthTimeout = 3 * time.Second

// Pinger is a backend reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Backends maps a backend name to its probe;
// a name absent from the map is reported as unconfigured.
type Options struct {
	Router   *router.Router
	Logger   *zap.Logger
	Limits   chat.Limits
	Backends map[string]Pinger
}

// Server is the JSON API the presentation front-end talks to. It owns the
// per-session transcripts; everything else is delegated to the Router.
type Server struct {
	router   *router.Router
	logger   *zap.Logger
	limits   chat.Limits
	backends map[string]Pinger

	mu       sync.RWMutex
	sessions map[string]*chat.Transcript
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		router:   opts.Router,
		logger:   logger,
		limits:   opts.Limits,
		backends: opts.Backends,
		sessions: make(map[string]*chat.Transcript),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/health", s.handleHealth)
	return mux
}

// ChatRequest is one user message, optionally continuing a session.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse carries the reply and the session the transcript lives under.
type ChatResponse struct {
	Response  string            `json:"response"`
	SessionID string            `json:"session_id"`
	Intent    router.Kind       `json:"intent"`
	Artifacts []router.Artifact `json:"artifacts,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		s.sendError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	s.logger.Info("chat request",
		zap.String("session", req.SessionID),
		zap.Int("message_length", len(req.Message)))

	transcript := s.transcript(req.SessionID)

	// "/new-chat" resets the session instead of going through the router.
	if strings.EqualFold(strings.TrimSpace(req.Message), "/new-chat") {
		transcript.Clear()
		s.sendJSON(w, http.StatusOK, ChatResponse{
			Response:  "Started a new conversation.",
			SessionID: req.SessionID,
			Intent:    router.Kind("new_chat"),
		})
		return
	}

	transcript.Append(llm.RoleUser, req.Message)
	reply := s.router.Handle(r.Context(), req.Message, transcript.Messages())
	transcript.Append(llm.RoleAssistant, reply.Text)

	s.sendJSON(w, http.StatusOK, ChatResponse{
		Response:  reply.Text,
		SessionID: req.SessionID,
		Intent:    reply.Intent,
		Artifacts: reply.Artifacts,
	})
}

// BackendHealth is one backend's slice of the health report.
type BackendHealth struct {
	Configured bool   `json:"configured"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// HealthResponse is the /api/health payload. Status is unhealthy only when
// a configured backend fails its probe; unconfigured backends merely have
// their commands disabled.
type HealthResponse struct {
	Status   string                   `json:"status"`
	Backends map[string]BackendHealth `json:"backends"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	resp := HealthResponse{
		Status:   "healthy",
		Backends: make(map[string]BackendHealth),
	}

	for _, name := range []string{"jenkins", "reportportal", "jira", "model"} {
		pinger, configured := s.backends[name]
		if !configured || pinger == nil {
			resp.Backends[name] = BackendHealth{}
			continue
		}

		pingCtx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := pinger.Ping(pingCtx)
		cancel()

		if err != nil {
			resp.Status = "unhealthy"
			resp.Backends[name] = BackendHealth{Configured: true, Error: err.Error()}
			continue
		}
		resp.Backends[name] = BackendHealth{Configured: true, OK: true}
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// transcript returns the session's transcript, creating it on first use.
func (s *Server) transcript(sessionID string) *chat.Transcript {
	s.mu.RLock()
	transcript, exists := s.sessions[sessionID]
	s.mu.RUnlock()
	if exists {
		return transcript
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if transcript, exists = s.sessions[sessionID]; exists {
		return transcript
	}
	transcript = chat.NewTranscriptWithLimits(s.limits)
	s.sessions[sessionID] = transcript
	return transcript
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response failed", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
