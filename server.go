package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"i4.energy/across/loranode/modem"
	"i4.energy/across/loranode/region"
	"i4.energy/across/loranode/rn"
)

// Node is the part of the modem the server drives
type Node interface {
	Send(ctx context.Context, payload []byte, port uint8, confirmed bool, sf int) (modem.TxStatus, error)
	Status(ctx context.Context) (modem.StatusReport, error)
}

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger    *slog.Logger
	Modem     Node
	Downlinks *DownlinkLog
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /uplink", s.handleUplink)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /downlinks", s.handleDownlinks)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to encode response", "error", err)
	}
}

// handleUplink transmits a hex encoded payload
func (s *Server) handleUplink(w http.ResponseWriter, r *http.Request) {
	type UplinkRequest struct {
		Port      int    `json:"port"`
		Payload   string `json:"payload"`
		Confirmed bool   `json:"confirmed"`
		SF        int    `json:"sf"`
	}
	type UplinkResponse struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	}

	var req UplinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Port < modem.MinPort || req.Port > modem.MaxPort {
		s.sendError(w, "'port' must be within 1..223", http.StatusBadRequest)
		return
	}
	payload, err := hex.DecodeString(req.Payload)
	if err != nil || len(payload) == 0 {
		s.sendError(w, "'payload' must be non-empty hex", http.StatusBadRequest)
		return
	}

	status, err := s.Modem.Send(r.Context(), payload, uint8(req.Port), req.Confirmed, req.SF)
	if err != nil {
		s.Logger.Error("Failed to send uplink", "error", err, "port", req.Port, "status", status.String())

		code := http.StatusBadGateway
		switch {
		case errors.Is(err, region.ErrInvalidSpreadingFactor):
			code = http.StatusBadRequest
		case errors.Is(err, modem.ErrAlreadyClosed):
			code = http.StatusServiceUnavailable
		}
		s.sendJSON(w, UplinkResponse{Status: status.String(), Message: err.Error()}, code)
		return
	}

	s.Logger.Info("Uplink sent successfully", "port", req.Port, "payload_length", len(payload), "status", status.String())
	s.sendJSON(w, UplinkResponse{Status: status.String()}, http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.Modem.Status(r.Context())
	if err != nil {
		s.Logger.Error("Failed to query modem status", "error", err)
		s.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.sendJSON(w, report, http.StatusOK)
}

func (s *Server) handleDownlinks(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.Downlinks.List(), http.StatusOK)
}

// DownlinkEntry is a received downlink as reported by GET /downlinks
type DownlinkEntry struct {
	Port       uint8     `json:"port"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// DownlinkLog keeps the most recent downlinks. It is registered as the
// modem's downlink handler.
type DownlinkLog struct {
	mu      sync.Mutex
	size    int
	entries []DownlinkEntry
	now     func() time.Time
}

func NewDownlinkLog(size int) *DownlinkLog {
	if size < 1 {
		size = 1
	}
	return &DownlinkLog{size: size, now: time.Now}
}

func (l *DownlinkLog) HandleDownlink(d modem.Downlink) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, DownlinkEntry{
		Port:       d.Port,
		Payload:    rn.EncodeHex(d.Payload),
		ReceivedAt: l.now(),
	})
	if n := len(l.entries); n > l.size {
		l.entries = slices.Delete(l.entries, 0, n-l.size)
	}
}

// List returns the kept downlinks, oldest first
func (l *DownlinkLog) List() []DownlinkEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DownlinkEntry{}, l.entries...)
}
