package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLedgerStatsProvider implements LedgerStatsProvider using GORM.
// It queries the financial_ledgers table directly for aggregated counts.
type GormLedgerStatsProvider struct {
	db *gorm.DB
}

// NewGormLedgerStatsProvider creates a new GormLedgerStatsProvider.
func NewGormLedgerStatsProvider(db *gorm.DB) *GormLedgerStatsProvider {
	return &GormLedgerStatsProvider{db: db}
}

// CountByStatus returns the number of ledgers per lifecycle status.
func (p *GormLedgerStatsProvider) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Status string `gorm:"column:status"`
		Count  int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("financial_ledgers").
		Select("status, COUNT(*) as count").
		Group("status").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Status] = r.Count
	}
	return m, nil
}

// CountUnbalanced returns the number of ledgers whose stored totals disagree.
func (p *GormLedgerStatsProvider) CountUnbalanced(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("financial_ledgers").
		Where("total_debits <> total_credits").
		Count(&count).Error
	return count, err
}
