package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/service"
)

// ReadingTypeHandler serves the reading-type catalogue the frontend builds
// its picker from. Public: the catalogue is the same for everyone.
type ReadingTypeHandler struct {
	types  *service.ReadingTypeService
	logger *slog.Logger
}

// NewReadingTypeHandler creates a ReadingTypeHandler.
func NewReadingTypeHandler(types *service.ReadingTypeService, logger *slog.Logger) *ReadingTypeHandler {
	return &ReadingTypeHandler{types: types, logger: logger}
}

type listTypesResponse struct {
	ReadingTypes []model.ReadingType `json:"readingTypes"`
}

// List handles GET /api/reading-types.
func (h *ReadingTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.types.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if types == nil {
		types = []model.ReadingType{}
	}
	writeJSON(w, http.StatusOK, listTypesResponse{ReadingTypes: types})
}
