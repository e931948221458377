package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("FEED_LEAGUES", "")
	t.Setenv("FEED_LEAGUES_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.ServiceName != "matchpulse" {
		t.Fatalf("unexpected service defaults: addr=%q name=%q", cfg.HTTPAddr, cfg.ServiceName)
	}
	if cfg.FeedBaseURL != "https://v3.football.api-sports.io" {
		t.Fatalf("unexpected feed base url %q", cfg.FeedBaseURL)
	}
	if cfg.PollLiveInterval != 2*time.Second || cfg.PollUpcomingInterval != 3*time.Second || cfg.PollLeagueInterval != 10*time.Second {
		t.Fatalf("unexpected poll intervals: %+v", cfg)
	}
	if cfg.PollUpcomingDays != 3 || cfg.SyncWorkers != 8 || cfg.HubSubscriberBuffer != 64 {
		t.Fatalf("unexpected sizing defaults: days=%d workers=%d buffer=%d", cfg.PollUpcomingDays, cfg.SyncWorkers, cfg.HubSubscriberBuffer)
	}
	if cfg.FeedDedupWindow != 500*time.Millisecond || cfg.LeagueCatalogTTL != 30*time.Second {
		t.Fatalf("unexpected cache defaults: dedup=%s catalog=%s", cfg.FeedDedupWindow, cfg.LeagueCatalogTTL)
	}
	if cfg.StorePruneSchedule != "@every 10m" {
		t.Fatalf("unexpected prune schedule %q", cfg.StorePruneSchedule)
	}
	if !cfg.FeedCircuitEnabled || cfg.RedisEnabled || cfg.TelegramEnabled || cfg.RawArchiveEnabled {
		t.Fatalf("unexpected feature toggles: %+v", cfg)
	}
	if len(cfg.TrackedLeagues) != 0 {
		t.Fatalf("expected no tracked leagues, got %+v", cfg.TrackedLeagues)
	}
}

func TestLoad_MissingFeedKeyIsNotFatal(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("FEED_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("missing key must surface at fetch time, got %v", err)
	}
	if cfg.FeedAPIKey != "" {
		t.Fatalf("expected empty key")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"POLL_LIVE_INTERVAL":   "fast",
		"SYNC_WORKERS":         "0",
		"POLL_UPCOMING_DAYS":   "15",
		"FEED_MAX_RETRIES":     "-1",
		"FEED_CIRCUIT_ENABLED": "maybe",
		"FEED_LEAGUES":         "39",
		"FEED_DEDUP_WINDOW":    "-1s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestLoad_FeedCircuitBreaker(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("FEED_CIRCUIT_ENABLED", "false")
	t.Setenv("FEED_CIRCUIT_FAILURE_COUNT", "7")
	t.Setenv("FEED_CIRCUIT_OPEN_TIMEOUT", "30s")
	t.Setenv("FEED_CIRCUIT_HALF_OPEN_MAX_REQ", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	breaker := cfg.FeedCircuitBreaker()
	if breaker.Enabled || breaker.FailureThreshold != 7 || breaker.OpenTimeout != 30*time.Second || breaker.HalfOpenMaxReq != 3 {
		t.Fatalf("unexpected breaker config: %+v", breaker)
	}
}

func TestLoad_TrackedLeaguesFromEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leagues.yaml")
	content := []byte("leagues:\n  - id: 140\n    season: 2026\n    interval: 30s\n  - id: 135\n    season: 2025\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write leagues file: %v", err)
	}

	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("POLL_LEAGUE_INTERVAL", "12s")
	t.Setenv("FEED_LEAGUES", "39:2025, 140:2025")
	t.Setenv("FEED_LEAGUES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.TrackedLeagues) != 3 {
		t.Fatalf("expected 3 tracked leagues, got %+v", cfg.TrackedLeagues)
	}

	want := []TrackedLeague{
		{ID: 39, Season: 2025, Interval: 12 * time.Second},
		{ID: 140, Season: 2026, Interval: 30 * time.Second},
		{ID: 135, Season: 2025, Interval: 12 * time.Second},
	}
	for i, league := range cfg.TrackedLeagues {
		if league != want[i] {
			t.Fatalf("league %d: got=%+v want=%+v", i, league, want[i])
		}
	}

	seasons := cfg.TrackedLeagueSeasons()
	if seasons[140] != 2026 || seasons[39] != 2025 {
		t.Fatalf("unexpected season map: %+v", seasons)
	}
}

func TestLoad_LeaguesFileRejectsInvalidRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leagues.yaml")
	if err := os.WriteFile(path, []byte("leagues:\n  - id: 0\n    season: 2025\n"), 0o600); err != nil {
		t.Fatalf("write leagues file: %v", err)
	}

	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("FEED_LEAGUES_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for league id 0")
	}
}

func TestLoad_TelegramRequiresTokenAndChat(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("TELEGRAM_ENABLED", "true")
	t.Setenv("TELEGRAM_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without TELEGRAM_TOKEN")
	}

	t.Setenv("TELEGRAM_TOKEN", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid TELEGRAM_CHAT_ID")
	}

	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TelegramChatID != -100123 {
		t.Fatalf("unexpected chat id %d", cfg.TelegramChatID)
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", `uptrace-dsn="https://token@api.uptrace.dev?grpc=4317"`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected dsn %q", cfg.UptraceDSN)
	}
}

func TestLoad_PyroscopeAppNameDefaultsToServiceName(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("SERVICE_NAME", "matchpulse-staging")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "http://pyroscope:4040")
	t.Setenv("PYROSCOPE_APP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PyroscopeAppName != "matchpulse-staging" {
		t.Fatalf("unexpected pyroscope app name %q", cfg.PyroscopeAppName)
	}
}

func TestLoad_CORSOriginsParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %+v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_DedupWindowMustBeShorterThanEveryPollInterval(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "defaults", env: map[string]string{}},
		{name: "in flight only", env: map[string]string{"FEED_DEDUP_WINDOW": "0s"}},
		{name: "equal to live interval", env: map[string]string{"FEED_DEDUP_WINDOW": "2s"}, wantErr: true},
		{name: "longer than upcoming interval", env: map[string]string{"FEED_DEDUP_WINDOW": "1s", "POLL_UPCOMING_INTERVAL": "800ms"}, wantErr: true},
		{name: "longer than a league override", env: map[string]string{"FEED_DEDUP_WINDOW": "1s", "FEED_LEAGUES_FILE": "leagues.yaml"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv("FEED_LEAGUES", "")
			t.Setenv("FEED_LEAGUES_FILE", "")
			for key, value := range tc.env {
				if key == "FEED_LEAGUES_FILE" {
					path := filepath.Join(t.TempDir(), value)
					if err := os.WriteFile(path, []byte("leagues:\n  - id: 39\n    season: 2025\n    interval: 900ms\n"), 0o600); err != nil {
						t.Fatalf("write leagues file: %v", err)
					}
					value = path
				}
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got window=%s shortest=%s", cfg.FeedDedupWindow, cfg.ShortestPollInterval())
				}
				return
			}
			if err != nil {
				t.Fatalf("load config: %v", err)
			}
			if cfg.FeedDedupWindow >= cfg.ShortestPollInterval() {
				t.Fatalf("window %s not below %s", cfg.FeedDedupWindow, cfg.ShortestPollInterval())
			}
		})
	}
}
