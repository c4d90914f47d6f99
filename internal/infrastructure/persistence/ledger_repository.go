package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entryBatchSize bounds the rows per INSERT when a transaction appends entries
const entryBatchSize = 100

// GormLedgerRepository implements ledger.Repository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

var _ ledger.Repository = (*GormLedgerRepository)(nil)

// Save creates or updates a ledger. Existing rows are updated only when the
// stored version still equals the version the ledger was loaded at; entries
// are append-only so only entries past the stored sequence are inserted.
func (r *GormLedgerRepository) Save(ctx context.Context, l *ledger.FinancialLedger) error {
	model := models.FinancialLedgerModelFromDomain(l)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if l.IsNew() {
			if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
				return err
			}
		} else {
			result := tx.Model(&models.FinancialLedgerModel{}).
				Where("id = ? AND version = ?", l.ID, l.PersistedVersion()).
				Updates(map[string]any{
					"name":            model.Name,
					"status":          model.Status,
					"status_reason":   model.StatusReason,
					"redaction_level": model.RedactionLevel,
					"total_debits":    model.TotalDebits,
					"total_credits":   model.TotalCredits,
					"last_modified":   model.LastModified,
					"close_reason":    model.CloseReason,
					"closed_by":       model.ClosedBy,
					"closed_at":       model.ClosedAt,
					"updated_at":      model.UpdatedAt,
					"version":         model.Version,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ledger.ErrVersionConflict
			}
		}
		return r.appendChildren(tx, model)
	})
	if err != nil {
		return err
	}
	l.MarkPersisted()
	return nil
}

func (r *GormLedgerRepository) appendChildren(tx *gorm.DB, model *models.FinancialLedgerModel) error {
	var maxSequence int64
	if err := tx.Model(&models.LedgerEntryModel{}).
		Where("ledger_id = ?", model.ID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSequence).Error; err != nil {
		return err
	}

	var pending []models.LedgerEntryModel
	for _, e := range model.Entries {
		if e.Sequence > maxSequence {
			pending = append(pending, e)
		}
	}
	if len(pending) > 0 {
		if err := tx.CreateInBatches(pending, entryBatchSize).Error; err != nil {
			return err
		}
	}

	if len(model.Communications) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Communications).Error; err != nil {
			return err
		}
	}
	if len(model.Documents) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.Documents).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID finds a ledger by its ID
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.FinancialLedger, error) {
	var model models.FinancialLedgerModel
	if err := r.preload(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrLedgerNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByClientID finds all ledgers of a client
func (r *GormLedgerRepository) FindByClientID(ctx context.Context, clientID uuid.UUID) ([]*ledger.FinancialLedger, error) {
	return r.findWhere(ctx, "client_id = ?", clientID)
}

// FindByEnrollmentID finds all ledgers of a program enrollment
func (r *GormLedgerRepository) FindByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) ([]*ledger.FinancialLedger, error) {
	return r.findWhere(ctx, "enrollment_id = ?", enrollmentID)
}

// FindByHouseholdID finds all ledgers of a household
func (r *GormLedgerRepository) FindByHouseholdID(ctx context.Context, householdID uuid.UUID) ([]*ledger.FinancialLedger, error) {
	return r.findWhere(ctx, "household_id = ?", householdID)
}

// FindByClientIDAndStatus finds a client's ledgers in the given status
func (r *GormLedgerRepository) FindByClientIDAndStatus(ctx context.Context, clientID uuid.UUID, status ledger.LedgerStatus) ([]*ledger.FinancialLedger, error) {
	return r.findWhere(ctx, "client_id = ? AND status = ?", clientID, status)
}

// FindActiveByPayeeID finds ACTIVE ledgers with entries paid to the payee
func (r *GormLedgerRepository) FindActiveByPayeeID(ctx context.Context, payeeID string) ([]*ledger.FinancialLedger, error) {
	return r.findWhere(ctx,
		"status = ? AND id IN (SELECT ledger_id FROM ledger_entries WHERE payee_id = ?)",
		ledger.LedgerStatusActive, payeeID)
}

// FindByFundingSourceCode finds ledgers with entries for the funding source
func (r *GormLedgerRepository) FindByFundingSourceCode(ctx context.Context, code string) ([]*ledger.FinancialLedger, error) {
	return r.findWhere(ctx,
		"id IN (SELECT ledger_id FROM ledger_entries WHERE funding_source_code = ?)", code)
}

// FindAll finds ledgers matching the filter
func (r *GormLedgerRepository) FindAll(ctx context.Context, filter ledger.LedgerFilter) ([]*ledger.FinancialLedger, error) {
	var ledgerModels []models.FinancialLedgerModel
	query := r.applyFilter(r.preload(r.db.WithContext(ctx)).Model(&models.FinancialLedgerModel{}), filter)
	if err := query.Find(&ledgerModels).Error; err != nil {
		return nil, err
	}
	return toLedgers(ledgerModels), nil
}

// Count counts ledgers matching the filter
func (r *GormLedgerRepository) Count(ctx context.Context, filter ledger.LedgerFilter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.FinancialLedgerModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByID removes a ledger and its records
func (r *GormLedgerRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{
			&models.LedgerEntryModel{},
			&models.LedgerCommunicationModel{},
			&models.LedgerDocumentModel{},
		} {
			if err := tx.Where("ledger_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&models.FinancialLedgerModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ledger.ErrLedgerNotFound
		}
		return nil
	})
}

// FindUnbalanced finds ledgers whose stored totals disagree
func (r *GormLedgerRepository) FindUnbalanced(ctx context.Context) ([]*ledger.FinancialLedger, error) {
	return r.findWhere(ctx, "total_debits <> total_credits")
}

// FindWithOverdueArrears finds ledgers with arrears entries recorded before the cutoff
func (r *GormLedgerRepository) FindWithOverdueArrears(ctx context.Context, cutoff time.Time) ([]*ledger.FinancialLedger, error) {
	return r.findWhere(ctx,
		"id IN (SELECT ledger_id FROM ledger_entries WHERE kind IN ? AND entry_type = ? AND recorded_at < ?)",
		[]ledger.TransactionKind{ledger.KindRentArrears, ledger.KindUtilityArrears},
		ledger.EntryTypeDebit, cutoff)
}

// FindWithUnmatchedDeposits finds ledgers with deposits recorded before the
// cutoff that are not fully consumed. Candidates are selected in SQL and the
// FIFO matching runs on the loaded entries.
func (r *GormLedgerRepository) FindWithUnmatchedDeposits(ctx context.Context, cutoff time.Time) ([]*ledger.FinancialLedger, error) {
	candidates, err := r.findWhere(ctx,
		"id IN (SELECT ledger_id FROM ledger_entries WHERE kind = ? AND entry_type = ? AND recorded_at < ?)",
		ledger.KindFundingDeposit, ledger.EntryTypeCredit, cutoff)
	if err != nil {
		return nil, err
	}
	out := make([]*ledger.FinancialLedger, 0, len(candidates))
	for _, l := range candidates {
		if len(ledger.UnmatchedDepositsBefore(l.Entries(), cutoff)) > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *GormLedgerRepository) findWhere(ctx context.Context, query string, args ...any) ([]*ledger.FinancialLedger, error) {
	var ledgerModels []models.FinancialLedgerModel
	if err := r.preload(r.db.WithContext(ctx)).
		Where(query, args...).
		Order("created_at ASC").
		Find(&ledgerModels).Error; err != nil {
		return nil, err
	}
	return toLedgers(ledgerModels), nil
}

func (r *GormLedgerRepository) preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Preload("Communications", func(db *gorm.DB) *gorm.DB {
			return db.Order("recorded_at ASC")
		}).
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("uploaded_at ASC")
		})
}

func (r *GormLedgerRepository) applyFilter(query *gorm.DB, filter ledger.LedgerFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Limited() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	return query.Order(ledgerOrdering.clause(filter.OrderBy, filter.OrderDir))
}

func (r *GormLedgerRepository) applyFilterWithoutPagination(query *gorm.DB, filter ledger.LedgerFilter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.HouseholdID != nil {
		query = query.Where("household_id = ?", *filter.HouseholdID)
	}
	if filter.EnrollmentID != nil {
		query = query.Where("enrollment_id = ?", *filter.EnrollmentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.VAWAProtected != nil {
		query = query.Where("vawa_protected = ?", *filter.VAWAProtected)
	}
	if filter.FundingSourceCode != "" {
		query = query.Where("id IN (SELECT ledger_id FROM ledger_entries WHERE funding_source_code = ?)", filter.FundingSourceCode)
	}
	return query
}

func toLedgers(ledgerModels []models.FinancialLedgerModel) []*ledger.FinancialLedger {
	ledgers := make([]*ledger.FinancialLedger, len(ledgerModels))
	for i := range ledgerModels {
		ledgers[i] = ledgerModels[i].ToDomain()
	}
	return ledgers
}
