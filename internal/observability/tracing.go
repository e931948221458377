package observability

import (
	"github.com/uptrace/uptrace-go/uptrace"

	"github.com/riskibarqy/matchpulse/internal/config"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

// startTracing installs the global OpenTelemetry providers. Spans from the
// feed client, the HTTP middleware and the archive queries export from here.
func startTracing(cfg config.Config, logger *logging.Logger) (stopFunc, error) {
	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
	)
	logger.Info("exporting traces", "environment", cfg.AppEnv)
	return uptrace.Shutdown, nil
}
