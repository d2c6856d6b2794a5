package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
)

// ReadingTypeService exposes the seeded reading-type catalogue.
// Read-mostly; no mutations go through here.
type ReadingTypeService struct {
	types  repository.ReadingTypeRepository
	logger *slog.Logger
}

func NewReadingTypeService(types repository.ReadingTypeRepository, logger *slog.Logger) *ReadingTypeService {
	return &ReadingTypeService{types: types, logger: logger}
}

// ListActive returns the catalogue shown on the new-reading page.
func (s *ReadingTypeService) ListActive(ctx context.Context) ([]model.ReadingType, error) {
	types, err := s.types.ListActiveTypes(ctx)
	if err != nil {
		s.logger.Error("failed to list reading types", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing reading types: %w", err)
	}
	return types, nil
}
