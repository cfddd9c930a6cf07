package server

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"bugboard/internal/ratelimit"
	"bugboard/internal/util"
	"bugboard/pkg/discord"
	"bugboard/pkg/queue"
	"bugboard/services/sync/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	WebhookSecret  string
	SyncLimiter    *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes HTTP endpoints for the sync service.
type Server struct {
	app            *app.App
	webhookSecret  string
	syncLimiter    *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	s := &Server{
		app:            cfg.App,
		webhookSecret:  strings.TrimSpace(cfg.WebhookSecret),
		syncLimiter:    cfg.SyncLimiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog(
			util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/discord/webhook", s.withWebhookSecret(s.handleWebhook))
	s.mux.HandleFunc("/discord/sync", s.handleSync)
	s.mux.HandleFunc("/discord/sync/jobs/", s.handleJobByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withWebhookSecret guards the push endpoint with the shared static secret
// the relay bot is configured with.
func (s *Server) withWebhookSecret(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.webhookSecret == "" {
			writeError(w, http.StatusInternalServerError, "webhook secret not configured")
			return
		}
		token, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var msg discord.Message
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(msg.ID) == "" {
		writeError(w, http.StatusBadRequest, "message id required")
		return
	}
	summary, accepted := s.app.HandleWebhookMessage(r.Context(), msg)
	if !accepted {
		writeJSON(w, http.StatusOK, map[string]any{"accepted": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "summary": summary})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.syncLimiter != nil {
		ip := util.ClientIP(r, s.trustedProxies)
		if !s.syncLimiter.Allow(ip) {
			writeError(w, http.StatusTooManyRequests, "too many sync requests")
			return
		}
	}

	var req syncRequest
	if r.Body != nil {
		// Body is optional; an empty request syncs the configured channels.
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	job, err := s.app.EnqueueSync(r.Context(), queue.SyncParams{
		ChannelIDs: req.ChannelIDs,
		Limit:      req.Limit,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/discord/sync/jobs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	job, ok, err := s.app.JobStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

type syncRequest struct {
	ChannelIDs []string `json:"channelIds"`
	Limit      int      `json:"limit"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
