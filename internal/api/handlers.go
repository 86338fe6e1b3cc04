// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ManuGH/radiosync/internal/engine"
	"github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/profile"
)

const maxBodyBytes = 4 << 10

// VolumeRequest sets volume, mute or both.
type VolumeRequest struct {
	Volume *float64 `json:"volume,omitempty"`
	Muted  *bool    `json:"muted,omitempty"`
}

// NetworkRequest reports the host's effective connection type.
type NetworkRequest struct {
	Class string `json:"class"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "connect", s.ctrl.Connect)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "disconnect", s.ctrl.Disconnect)
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "interact", s.ctrl.Interact)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Volume == nil && req.Muted == nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "volume or muted is required")
		return
	}
	s.command(w, r, "volume", func(ctx context.Context) error {
		if req.Volume != nil {
			if err := s.ctrl.SetVolume(ctx, *req.Volume); err != nil {
				return err
			}
		}
		if req.Muted != nil {
			return s.ctrl.SetMuted(ctx, *req.Muted)
		}
		return nil
	})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	class := profile.ParseNetworkClass(req.Class)
	s.command(w, r, "network", func(ctx context.Context) error {
		return s.ctrl.SetNetwork(ctx, class)
	})
}

// command runs fn and answers with the resulting status snapshot.
func (s *Server) command(w http.ResponseWriter, r *http.Request, name string, fn func(context.Context) error) {
	if err := fn(r.Context()); err != nil {
		status := http.StatusInternalServerError
		code := "command_failed"
		switch {
		case errors.Is(err, engine.ErrStopped):
			status, code = http.StatusServiceUnavailable, "engine_stopped"
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status, code = http.StatusServiceUnavailable, "request_cancelled"
		}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().
			Err(err).
			Str("event", "api.command_failed").
			Str("command", name).
			Msg("control command failed")
		writeError(w, r, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeError(w, r, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}
