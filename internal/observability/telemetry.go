package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskibarqy/matchpulse/internal/config"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

type stopFunc func(ctx context.Context) error

type backend struct {
	name string
	stop stopFunc
}

// Telemetry holds the tracing and profiling backends enabled for this
// process.
type Telemetry struct {
	logger   *logging.Logger
	backends []backend
}

// Start brings up every backend enabled in cfg: uptrace tracing, pyroscope
// profiling and the pprof listener. If one fails, the ones already started
// are stopped before the error is returned.
func Start(cfg config.Config, logger *logging.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = logging.Default()
	}
	t := &Telemetry{logger: logger}

	starters := []struct {
		name    string
		enabled bool
		start   func(config.Config, *logging.Logger) (stopFunc, error)
	}{
		{"uptrace", cfg.UptraceEnabled && cfg.UptraceDSN != "", startTracing},
		{"pyroscope", cfg.PyroscopeEnabled, startProfiling},
		{"pprof", cfg.PprofEnabled, startPprof},
	}
	for _, item := range starters {
		if !item.enabled {
			logger.Debug("telemetry backend disabled", "backend", item.name)
			continue
		}
		stop, err := item.start(cfg, logger.Named(item.name))
		if err != nil {
			_ = t.Shutdown(context.Background())
			return nil, fmt.Errorf("start %s: %w", item.name, err)
		}
		t.backends = append(t.backends, backend{name: item.name, stop: stop})
		logger.Info("telemetry backend started", "backend", item.name)
	}
	return t, nil
}

// Enabled lists the running backends in start order.
func (t *Telemetry) Enabled() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.backends))
	for _, item := range t.backends {
		out = append(out, item.name)
	}
	return out
}

// Shutdown stops the backends in reverse start order. It is safe to call on
// a nil Telemetry and more than once.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error
	for i := len(t.backends) - 1; i >= 0; i-- {
		item := t.backends[i]
		if err := item.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", item.name, err))
		}
	}
	t.backends = nil
	return errors.Join(errs...)
}
