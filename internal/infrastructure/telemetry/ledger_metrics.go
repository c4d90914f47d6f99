package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics provides business metrics for the financial ledger.
// It tracks recorded transactions, alert delivery, sweeps and reconciliation.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	transactionTotal       *Counter
	transactionAmountTotal *Counter
	alertTotal             *Counter
	alertDeliveryFailures  *Counter
	reconciliationTotal    *Counter

	// Histogram metrics
	sweepDuration *Histogram

	// Gauge metrics (point-in-time values)
	sweepAlerts            *Gauge
	reconciliationFindings *Gauge
	reconciliationAmount   *Gauge
	ledgerCount            *Gauge
	unbalancedLedgerCount  *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	statsProvider LedgerStatsProvider
}

// LedgerStatsProvider provides ledger population data for periodic collection.
// It lets the telemetry layer read ledger state without depending on the domain.
type LedgerStatsProvider interface {
	// CountByStatus returns the number of ledgers per lifecycle status
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// CountUnbalanced returns the number of ledgers whose totals disagree
	CountUnbalanced(ctx context.Context) (int64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StatsProvider   LedgerStatsProvider
}

// SweepDurationBuckets are bucket boundaries for alert sweep duration (seconds).
var SweepDurationBuckets = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		statsProvider: cfg.StatsProvider,
	}

	var err error
	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&lm.transactionTotal, "ledger_transaction_total", "Total number of transactions recorded", "{transactions}"},
		{&lm.transactionAmountTotal, "ledger_transaction_amount_total", "Total amount recorded in cents", "{cents}"},
		{&lm.alertTotal, "ledger_alert_total", "Total number of financial alerts raised", "{alerts}"},
		{&lm.alertDeliveryFailures, "ledger_alert_delivery_failures_total", "Total number of failed alert deliveries", "{deliveries}"},
		{&lm.reconciliationTotal, "ledger_reconciliation_total", "Total number of reconciliation runs", "{runs}"},
	}
	for _, c := range counters {
		if *c.target, err = NewCounter(cfg.Meter, c.name, c.description, c.unit); err != nil {
			return nil, err
		}
	}

	gauges := []struct {
		target      **Gauge
		name        string
		description string
		unit        string
	}{
		{&lm.sweepAlerts, "ledger_sweep_alerts", "Alerts produced by the last sweep", "{alerts}"},
		{&lm.reconciliationFindings, "ledger_reconciliation_discrepancies", "Discrepancies found by the last reconciliation", "{discrepancies}"},
		{&lm.reconciliationAmount, "ledger_reconciliation_discrepancy_amount", "Discrepancy amount of the last reconciliation in cents", "{cents}"},
		{&lm.ledgerCount, "ledger_count", "Current number of ledgers", "{ledgers}"},
		{&lm.unbalancedLedgerCount, "ledger_unbalanced_count", "Current number of ledgers whose totals disagree", "{ledgers}"},
	}
	for _, g := range gauges {
		if *g.target, err = NewGauge(cfg.Meter, g.name, g.description, g.unit); err != nil {
			return nil, err
		}
	}

	lm.sweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "ledger_sweep_duration_seconds",
		Description: "Duration of alert sweeps",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// =============================================================================
// Transaction Metrics
// =============================================================================

// RecordTransaction records one posted transaction and its amount.
func (lm *LedgerMetrics) RecordTransaction(ctx context.Context, kind string, amount decimal.Decimal) {
	lm.transactionTotal.Inc(ctx, AttrTransactionKind.String(kind))
	lm.transactionAmountTotal.Add(ctx, toCents(amount), AttrTransactionKind.String(kind))
}

// =============================================================================
// Alert Metrics
// =============================================================================

// RecordAlert records a raised alert.
func (lm *LedgerMetrics) RecordAlert(ctx context.Context, alertType, severity string) {
	lm.alertTotal.Inc(ctx,
		AttrAlertType.String(alertType),
		AttrAlertSeverity.String(severity),
	)
}

// RecordAlertDeliveryFailure records an alert that could not be delivered to a recipient.
func (lm *LedgerMetrics) RecordAlertDeliveryFailure(ctx context.Context, alertType string) {
	lm.alertDeliveryFailures.Inc(ctx, AttrAlertType.String(alertType))
}

// RecordSweep records the duration of a sweep and the alerts it produced per type.
func (lm *LedgerMetrics) RecordSweep(ctx context.Context, d time.Duration, counts map[string]int) {
	lm.sweepDuration.RecordDuration(ctx, d)
	for alertType, n := range counts {
		lm.sweepAlerts.Record(ctx, int64(n), AttrAlertType.String(alertType))
	}
}

// =============================================================================
// Reconciliation Metrics
// =============================================================================

// RecordReconciliation records the outcome of a reconciliation run.
func (lm *LedgerMetrics) RecordReconciliation(ctx context.Context, discrepancies int, total decimal.Decimal, balanced bool) {
	lm.reconciliationTotal.Inc(ctx, AttrBalanced.Bool(balanced))
	lm.reconciliationFindings.Record(ctx, int64(discrepancies))
	lm.reconciliationAmount.Record(ctx, toCents(total))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of the ledger population gauges.
// This is non-blocking - use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go lm.runPeriodicCollection(ctx, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	lm.CollectLedgerStats(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.CollectLedgerStats(ctx)
		}
	}
}

// CollectLedgerStats records the ledger population gauges once.
func (lm *LedgerMetrics) CollectLedgerStats(ctx context.Context) {
	if lm.statsProvider == nil {
		lm.logger.Debug("No stats provider configured, skipping ledger metrics collection")
		return
	}

	byStatus, err := lm.statsProvider.CountByStatus(ctx)
	if err != nil {
		lm.logger.Warn("Failed to count ledgers by status", zap.Error(err))
	} else {
		for status, n := range byStatus {
			lm.ledgerCount.Record(ctx, n, AttrLedgerStatus.String(status))
		}
	}

	unbalanced, err := lm.statsProvider.CountUnbalanced(ctx)
	if err != nil {
		lm.logger.Warn("Failed to count unbalanced ledgers", zap.Error(err))
	} else {
		lm.unbalancedLedgerCount.Record(ctx, unbalanced)
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
