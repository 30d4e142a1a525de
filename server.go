package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"i4.energy/across/smsbridge/bridge"
)

// Server exposes the HTTP API: health, discovered devices, negotiation
// diagnostics, and message submission.
type Server struct {
	Logger *slog.Logger
	Queue  *bridge.Queue

	// Status returns the transport loop's latest snapshot.
	Status func() bridge.Status

	// InventoryPath and DiagnosticsPath point at the JSON artifacts
	// written during startup.
	InventoryPath   string
	DiagnosticsPath string
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/devices", s.serveArtifact(s.InventoryPath))
	r.Get("/diagnostics", s.serveArtifact(s.DiagnosticsPath))
	r.Post("/sms", s.handleSMS)

	return r
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// handleHealth reports liveness plus the modem snapshot. The endpoint
// answers 200 even with no modem; degraded is a state, not a failure.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type HealthResponse struct {
		Status    string `json:"status"`
		Connected bool   `json:"modem_connected"`
		Device    string `json:"device,omitempty"`
		Pending   int    `json:"pending_messages"`
		Abandoned int    `json:"abandoned_messages"`
	}

	resp := HealthResponse{Status: "ok"}
	if s.Status != nil {
		st := s.Status()
		resp.Connected = st.Connected
		resp.Device = st.Device
		resp.Pending = st.Pending
		resp.Abandoned = st.Abandoned
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// serveArtifact returns a handler that serves one of the startup JSON
// artifacts verbatim.
func (s *Server) serveArtifact(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := os.ReadFile(path)
		if err != nil {
			s.sendError(w, "artifact not available", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	}
}

// handleSMS enqueues an outbound message. Delivery is asynchronous; 202
// means accepted, not sent.
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	type SMSRequest struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}

	var req SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Queue.Enqueue(req.To, req.Message); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.Logger.Info("message accepted", "to", req.To, "message_length", len(req.Message))
	w.WriteHeader(http.StatusAccepted)
}
