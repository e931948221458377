package httpapi

import (
	"net/http"

	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

type RouterConfig struct {
	ServiceName        string
	CORSAllowedOrigins []string
}

func NewRouter(handler *Handler, logger *logging.Logger, cfg RouterConfig) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "matchpulse"
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler)
	registerResourceRoutes(mux, handler)
	registerRealtimeRoutes(mux, handler)

	return RequestTracing(serviceName, RequestLogging(logger, CORS(cfg.CORSAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic recovered", "panic", rec, "path", r.URL.Path)
				writeError(r.Context(), w, errPanic)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
