package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/haven/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReconciliationRunRepository implements ledger.ReconciliationRunRepository using GORM
type GormReconciliationRunRepository struct {
	db *gorm.DB
}

// NewGormReconciliationRunRepository creates a new GormReconciliationRunRepository
func NewGormReconciliationRunRepository(db *gorm.DB) *GormReconciliationRunRepository {
	return &GormReconciliationRunRepository{db: db}
}

var _ ledger.ReconciliationRunRepository = (*GormReconciliationRunRepository)(nil)

// Save stores a reconciliation run
func (r *GormReconciliationRunRepository) Save(ctx context.Context, run *ledger.ReconciliationRun) error {
	return r.db.WithContext(ctx).Create(models.ReconciliationRunModelFromDomain(run)).Error
}

// FindByID finds a reconciliation run by report ID
func (r *GormReconciliationRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.ReconciliationRun, error) {
	var model models.ReconciliationRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	run := model.ToDomain()
	return &run, nil
}

// FindRecent returns one page of runs with the total count
func (r *GormReconciliationRunRepository) FindRecent(ctx context.Context, filter shared.Filter) ([]ledger.ReconciliationRun, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ReconciliationRunModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Order(runOrdering.clause(filter.OrderBy, filter.OrderDir))
	if filter.Limited() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var runModels []models.ReconciliationRunModel
	if err := query.Find(&runModels).Error; err != nil {
		return nil, 0, err
	}
	runs := make([]ledger.ReconciliationRun, len(runModels))
	for i := range runModels {
		runs[i] = runModels[i].ToDomain()
	}
	return runs, total, nil
}
