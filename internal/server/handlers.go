package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/bugmaschine/vembed/pkg/logger"
	"github.com/bugmaschine/vembed/pkg/telemetry"
)

// Messages shown to end users by the front end.
const (
	MsgInvalidURL    = "URL inválida"
	MsgNotEmbeddable = "Não foi possível encontrar uma URL incorporável"
)

type ResolveRequest struct {
	URL string `json:"url"`
}

type ResolveResponse struct {
	Success     bool   `json:"success"`
	EmbedURL    string `json:"embedUrl,omitempty"`
	Provider    string `json:"provider,omitempty"`
	ResolvedURL string `json:"resolvedUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, msg, resolvedURL string) {
	writeJSON(w, status, ResolveResponse{Success: false, Error: msg, ResolvedURL: resolvedURL})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, MsgInvalidURL, "")
		return
	}

	ctx := logger.With(r.Context(), "url", req.URL)
	if s.opts.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ResolveTimeout)
		defer cancel()
	}
	log := logger.FromContext(ctx)

	res, err := s.resolver.Resolve(ctx, req.URL)
	switch {
	case err == nil:
		log.Info("resolved", "embed", res.EmbedURL, "provider", res.Provider, "stage", res.Stage)
		writeJSON(w, http.StatusOK, ResolveResponse{
			Success:     true,
			EmbedURL:    res.EmbedURL,
			Provider:    res.Provider.String(),
			ResolvedURL: res.ResolvedURL,
		})
	case errors.Is(err, resolver.ErrInvalidURL):
		writeFailure(w, http.StatusBadRequest, MsgInvalidURL, "")
	case errors.Is(err, resolver.ErrNotEmbeddable):
		log.Info("no embeddable url", "landed", resolver.ResolvedURLOf(err))
		writeFailure(w, http.StatusOK, MsgNotEmbeddable, resolver.ResolvedURLOf(err))
	default:
		log.Error("resolution failed", "error", err)
		telemetry.CaptureError(ctx, err, map[string]string{"operation": "resolve"})
		writeFailure(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
