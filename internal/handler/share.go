package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fortuneai/internal/service"
)

// ShareHandler serves the public, unauthenticated side of share links.
type ShareHandler struct {
	shares *service.ShareService
	logger *slog.Logger
}

// NewShareHandler creates a ShareHandler.
func NewShareHandler(shares *service.ShareService, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{shares: shares, logger: logger}
}

// Resolve handles GET /api/share/{token}.
//
// The capability token in the URL is the only credential. An unknown token,
// a revoked link, and an expired link all return the same 404 — a caller
// probing tokens learns nothing about which readings exist.
func (h *ShareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	shared, err := h.shares.PublicLookup(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Shared reading not found"})
		return
	}

	writeJSON(w, http.StatusOK, shared)
}
