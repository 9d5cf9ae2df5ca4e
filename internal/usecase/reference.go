package usecase

import (
	"context"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
)

// ReferenceUseCase serves the offline evaluation artefacts.
type ReferenceUseCase struct {
	store domrepo.ReferenceStore
}

func NewReferenceUseCase(store domrepo.ReferenceStore) *ReferenceUseCase {
	return &ReferenceUseCase{store: store}
}

func (uc *ReferenceUseCase) Metrics(ctx context.Context) (models.MetricsTable, error) {
	return uc.store.Metrics(ctx)
}

// EvalSeries returns the newest limit points in time order; limit <= 0 returns all.
func (uc *ReferenceUseCase) EvalSeries(ctx context.Context, limit int) ([]models.EvalPoint, error) {
	return uc.store.EvalSeries(ctx, limit)
}
