package telemetry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haven/ledger/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

type fakeStatsProvider struct {
	calls      atomic.Int32
	byStatus   map[string]int64
	unbalanced int64
	err        error
}

func (f *fakeStatsProvider) CountByStatus(ctx context.Context) (map[string]int64, error) {
	f.calls.Add(1)
	return f.byStatus, f.err
}

func (f *fakeStatsProvider) CountUnbalanced(ctx context.Context) (int64, error) {
	return f.unbalanced, f.err
}

func TestNewLedgerMetrics(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, lm)
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{})

	require.Error(t, err)
	assert.Nil(t, lm)
	assert.Equal(t, "NewLedgerMetrics: meter cannot be nil", err.Error())
}

func TestLedgerMetrics_RecordTransaction(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter: provider.Meter("test"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	lm.RecordTransaction(ctx, "RENT_PAYMENT", decimal.RequireFromString("850.25"))
	lm.RecordTransaction(ctx, "RENT_PAYMENT", decimal.RequireFromString("100"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["ledger_transaction_total"])
	assert.Equal(t, int64(95025), sums["ledger_transaction_amount_total"])
}

func TestLedgerMetrics_RecordAlertsAndSweeps(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter: noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	lm.RecordAlert(ctx, "OVERDUE_ARREARS", "HIGH")
	lm.RecordAlertDeliveryFailure(ctx, "OVERDUE_ARREARS")
	lm.RecordSweep(ctx, 2*time.Second, map[string]int{"OVERDUE_ARREARS": 3})
	lm.RecordReconciliation(ctx, 2, decimal.RequireFromString("12.50"), false)
}

func TestLedgerMetrics_CollectLedgerStats(t *testing.T) {
	t.Run("without provider", func(t *testing.T) {
		lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter: noop.NewMeterProvider().Meter("test"),
		})
		require.NoError(t, err)
		lm.CollectLedgerStats(context.Background())
	})

	t.Run("provider errors are tolerated", func(t *testing.T) {
		provider := &fakeStatsProvider{err: errors.New("db down")}
		lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:         noop.NewMeterProvider().Meter("test"),
			StatsProvider: provider,
		})
		require.NoError(t, err)
		lm.CollectLedgerStats(context.Background())
		assert.Equal(t, int32(1), provider.calls.Load())
	})
}

func TestLedgerMetrics_PeriodicCollection(t *testing.T) {
	provider := &fakeStatsProvider{byStatus: map[string]int64{"ACTIVE": 4}, unbalanced: 1}
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:         noop.NewMeterProvider().Meter("test"),
		StatsProvider: provider,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lm.StartPeriodicCollection(ctx, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return provider.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	lm.Stop()
	lm.Stop()
}
