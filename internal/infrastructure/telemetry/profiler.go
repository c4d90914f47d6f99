package telemetry

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/haven/ledger/internal/infrastructure/config"
)

// Profiling label keys. Values must stay low-cardinality: no ledger or client ids.
const (
	ProfileLabelRoute     = "route"
	ProfileLabelMethod    = "method"
	ProfileLabelOperation = "operation"
)

// Profiler is a running Pyroscope profiler, or a no-op when disabled
type Profiler struct {
	p      *pyroscope.Profiler
	logger *zap.Logger
}

// StartProfiler starts continuous profiling when cfg enables it
func StartProfiler(cfg config.TelemetryConfig, env string, logger *zap.Logger) (*Profiler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	prof := &Profiler{logger: logger}
	if !cfg.ProfilingEnabled {
		return prof, nil
	}
	if cfg.PyroscopeEndpoint == "" {
		return nil, fmt.Errorf("pyroscope endpoint is required when profiling is enabled")
	}

	tags := map[string]string{"env": env}
	if host, err := os.Hostname(); err == nil {
		tags["hostname"] = host
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.PyroscopeEndpoint,
		Logger:          pyroscopeLogger{logger.Sugar()},
		Tags:            tags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	prof.p = p
	logger.Info("Continuous profiling started", zap.String("server", cfg.PyroscopeEndpoint))
	return prof, nil
}

// Enabled reports whether profiles are being collected
func (p *Profiler) Enabled() bool { return p != nil && p.p != nil }

// Stop flushes and stops the profiler
func (p *Profiler) Stop() error {
	if !p.Enabled() {
		return nil
	}
	return p.p.Stop()
}

// WithLabels runs fn with pprof labels attached to ctx. Empty values are skipped.
func WithLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	kv := labelPairs(labels)
	if len(kv) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(kv...), fn)
}

func labelPairs(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if k != "" && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	kv := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		kv = append(kv, k, labels[k])
	}
	return kv
}

type pyroscopeLogger struct {
	s *zap.SugaredLogger
}

func (l pyroscopeLogger) Infof(format string, args ...any)  { l.s.Debugf(format, args...) }
func (l pyroscopeLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l pyroscopeLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
