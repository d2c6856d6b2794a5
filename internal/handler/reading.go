package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/fortuneai/internal/auth"
	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
	"github.com/sakif/fortuneai/internal/service"
)

// ReadingHandler exposes the reading history CRUD surface plus the share
// and export sub-resources. Every route here sits behind RequireAuth, so
// UserIDFromContext always succeeds.
type ReadingHandler struct {
	readings *service.ReadingService
	shares   *service.ShareService
	exports  *service.ExportService
	logger   *slog.Logger
}

// NewReadingHandler creates a ReadingHandler.
func NewReadingHandler(
	readings *service.ReadingService,
	shares *service.ShareService,
	exports *service.ExportService,
	logger *slog.Logger,
) *ReadingHandler {
	return &ReadingHandler{
		readings: readings,
		shares:   shares,
		exports:  exports,
		logger:   logger,
	}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *ReadingHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/share", h.IssueShare)
		r.Delete("/share", h.RevokeShare)
		r.Post("/export", h.RequestExport)
		r.Get("/export", h.DownloadExport)
	})
}

type createReadingRequest struct {
	ReadingTypeID string   `json:"readingTypeId"`
	Prompt        string   `json:"prompt"`
	AIResponse    string   `json:"aiResponse"`
	Title         string   `json:"title"`
	Tags          []string `json:"tags"`
}

type createReadingResponse struct {
	Success   bool   `json:"success"`
	ReadingID string `json:"readingId"`
}

// Create handles POST /api/readings.
func (h *ReadingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	reading, err := h.readings.Create(r.Context(), userID, req.ReadingTypeID, req.Prompt, req.AIResponse, req.Title, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createReadingResponse{
		Success:   true,
		ReadingID: reading.ID,
	})
}

type listReadingsResponse struct {
	Readings []model.Reading `json:"readings"`
}

// List handles GET /api/readings.
//
// Query parameters: ?type= filters to one reading type, ?favorites=true
// keeps only favorited readings, ?limit= and ?offset= page the results.
func (h *ReadingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	opts := repository.ListOptions{
		ReadingTypeID: r.URL.Query().Get("type"),
		FavoriteOnly:  r.URL.Query().Get("favorites") == "true",
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}

	readings, err := h.readings.List(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	// Empty history serialises as [], not null.
	if readings == nil {
		readings = []model.Reading{}
	}

	writeJSON(w, http.StatusOK, listReadingsResponse{Readings: readings})
}

// Get handles GET /api/readings/{id}.
func (h *ReadingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	reading, err := h.readings.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

type updateReadingRequest struct {
	Title      *string   `json:"title"`
	Tags       *[]string `json:"tags"`
	IsFavorite *bool     `json:"isFavorite"`
}

type mutationResponse struct {
	Success bool `json:"success"`
}

// Update handles PATCH /api/readings/{id}. Absent fields are left
// untouched; only the fields present in the body are written.
func (h *ReadingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	outcome, err := h.readings.Update(r.Context(), userID, id, repository.UpdateFields{
		Title:      req.Title,
		Tags:       req.Tags,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeOutcome(w, outcome)
}

// Delete handles DELETE /api/readings/{id}.
func (h *ReadingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	outcome, err := h.readings.Delete(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeOutcome(w, outcome)
}

type issueShareResponse struct {
	Success    bool   `json:"success"`
	ShareToken string `json:"shareToken"`
	ShareURL   string `json:"shareUrl"`
	ExpiresAt  string `json:"expiresAt"`
}

// IssueShare handles POST /api/readings/{id}/share. Issuing a new link for
// an already-shared reading rotates the token; the old link stops working.
func (h *ReadingHandler) IssueShare(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	link, err := h.shares.IssueLink(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, issueShareResponse{
		Success:    true,
		ShareToken: link.Token,
		ShareURL:   link.URL,
		ExpiresAt:  link.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// RevokeShare handles DELETE /api/readings/{id}/share.
func (h *ReadingHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	outcome, err := h.shares.RevokeLink(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeOutcome(w, outcome)
}

type exportRequest struct {
	Format string `json:"format"`
}

type exportResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl"`
}

// RequestExport handles POST /api/readings/{id}/export. It validates the
// format and ownership, then hands back the URL the client fetches the
// document from.
func (h *ReadingHandler) RequestExport(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	format, err := service.ParseFormat(req.Format)
	if err != nil {
		writeError(w, err)
		return
	}

	ref, err := h.exports.Export(r.Context(), userID, id, format)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, exportResponse{
		Success:     true,
		DownloadURL: ref.DownloadURL,
	})
}

// DownloadExport handles GET /api/readings/{id}/export?format=.
func (h *ReadingHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	format, err := service.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.exports.Render(r.Context(), userID, id, format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Bytes); err != nil {
		h.logger.Debug("export download aborted", slog.String("error", err.Error()))
	}
}

// writeOutcome translates a mutation outcome into the HTTP envelope. Both
// outcomes read as success to the client: a mutation on an unowned or
// missing reading matches zero rows, and admitting which would leak whether
// the reading exists. The distinction stays server-side, in the service's
// return value and its logs.
func (h *ReadingHandler) writeOutcome(w http.ResponseWriter, _ service.MutationOutcome) {
	writeJSON(w, http.StatusOK, mutationResponse{Success: true})
}
