package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/matchpulse/internal/platform/logging"
	"github.com/riskibarqy/matchpulse/internal/platform/resilience"
	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	CORSAllowedOrigins []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level

	FeedBaseURL               string
	FeedAPIKey                string
	FeedTimeout               time.Duration
	FeedMaxRetries            int
	FeedRequestsPerMinute     int
	FeedDedupWindow           time.Duration
	FeedCircuitEnabled        bool
	FeedCircuitFailureCount   int
	FeedCircuitOpenTimeout    time.Duration
	FeedCircuitHalfOpenMaxReq int
	TrackedLeagues            []TrackedLeague

	PollLiveInterval     time.Duration
	PollUpcomingInterval time.Duration
	PollUpcomingDays     int
	PollLeagueInterval   time.Duration
	LeagueCatalogTTL     time.Duration

	SyncWorkers         int
	HubSubscriberBuffer int
	StoreRetention      time.Duration
	StorePruneSchedule  string

	RawArchiveEnabled   bool
	RawArchiveRetention time.Duration
	Database            Database

	RedisEnabled      bool
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisSnapshotTTL  time.Duration
	RedisStream       string
	RedisStreamMaxLen int64

	TelegramEnabled      bool
	TelegramToken        string
	TelegramChatID       int64
	TelegramSendInterval time.Duration

	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

// TrackedLeague is a league polled on its own schedule.
type TrackedLeague struct {
	ID       int64         `yaml:"id"`
	Season   int           `yaml:"season"`
	Interval time.Duration `yaml:"interval"`
}

type leaguesFile struct {
	Leagues []TrackedLeague `yaml:"leagues"`
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:                     appEnv,
		ServiceName:                getEnv("SERVICE_NAME", "matchpulse"),
		ServiceVersion:             getEnv("SERVICE_VERSION", "dev"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins:         splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:                   parseLogLevel(getEnv("LOG_LEVEL", "info")),
		FeedBaseURL:                strings.TrimSpace(getEnv("FEED_BASE_URL", "https://v3.football.api-sports.io")),
		FeedAPIKey:                 strings.TrimSpace(getEnv("FEED_API_KEY", "")),
		StorePruneSchedule:         strings.TrimSpace(getEnv("STORE_PRUNE_SCHEDULE", "@every 10m")),
		RedisAddr:                  strings.TrimSpace(getEnv("REDIS_ADDR", "localhost:6379")),
		RedisPassword:              getEnv("REDIS_PASSWORD", ""),
		RedisStream:                strings.TrimSpace(getEnv("REDIS_STREAM", "matches.changes")),
		TelegramToken:              strings.TrimSpace(getEnv("TELEGRAM_TOKEN", "")),
		UptraceDSN:                 strings.TrimSpace(getEnv("UPTRACE_DSN", "")),
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"APP_READ_TIMEOUT", "10s", &cfg.ReadTimeout},
		{"APP_WRITE_TIMEOUT", "15s", &cfg.WriteTimeout},
		{"FEED_TIMEOUT", "10s", &cfg.FeedTimeout},
		{"FEED_CIRCUIT_OPEN_TIMEOUT", "15s", &cfg.FeedCircuitOpenTimeout},
		{"POLL_LIVE_INTERVAL", "2s", &cfg.PollLiveInterval},
		{"POLL_UPCOMING_INTERVAL", "3s", &cfg.PollUpcomingInterval},
		{"POLL_LEAGUE_INTERVAL", "10s", &cfg.PollLeagueInterval},
		{"LEAGUE_CATALOG_TTL", "30s", &cfg.LeagueCatalogTTL},
		{"STORE_RETENTION", "6h", &cfg.StoreRetention},
		{"RAW_ARCHIVE_RETENTION", "168h", &cfg.RawArchiveRetention},
		{"REDIS_SNAPSHOT_TTL", "6h", &cfg.RedisSnapshotTTL},
		{"TELEGRAM_SEND_INTERVAL", "1s", &cfg.TelegramSendInterval},
		{"PYROSCOPE_UPLOAD_RATE", "15s", &cfg.PyroscopeUploadRate},
	}
	for _, item := range durations {
		value, err := time.ParseDuration(getEnv(item.key, item.fallback))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", item.key, err)
		}
		if value <= 0 {
			return Config{}, fmt.Errorf("%s must be > 0", item.key)
		}
		*item.dst = value
	}

	dedup, err := time.ParseDuration(getEnv("FEED_DEDUP_WINDOW", "500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_DEDUP_WINDOW: %w", err)
	}
	if dedup < 0 {
		return Config{}, fmt.Errorf("FEED_DEDUP_WINDOW must be >= 0")
	}
	cfg.FeedDedupWindow = dedup

	ints := []struct {
		key      string
		fallback int
		min      int
		dst      *int
	}{
		{"FEED_MAX_RETRIES", 1, 0, &cfg.FeedMaxRetries},
		{"FEED_REQUESTS_PER_MINUTE", 300, 0, &cfg.FeedRequestsPerMinute},
		{"FEED_CIRCUIT_FAILURE_COUNT", 5, 1, &cfg.FeedCircuitFailureCount},
		{"FEED_CIRCUIT_HALF_OPEN_MAX_REQ", 2, 1, &cfg.FeedCircuitHalfOpenMaxReq},
		{"POLL_UPCOMING_DAYS", 3, 1, &cfg.PollUpcomingDays},
		{"SYNC_WORKERS", 8, 1, &cfg.SyncWorkers},
		{"HUB_SUBSCRIBER_BUFFER", 64, 1, &cfg.HubSubscriberBuffer},
		{"REDIS_DB", 0, 0, &cfg.RedisDB},
	}
	for _, item := range ints {
		value, err := getEnvAsInt(item.key, item.fallback)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", item.key, err)
		}
		if value < item.min {
			return Config{}, fmt.Errorf("%s must be >= %d", item.key, item.min)
		}
		*item.dst = value
	}
	if cfg.PollUpcomingDays > 14 {
		return Config{}, fmt.Errorf("POLL_UPCOMING_DAYS must be <= 14")
	}

	bools := []struct {
		key      string
		fallback string
		dst      *bool
	}{
		{"FEED_CIRCUIT_ENABLED", "true", &cfg.FeedCircuitEnabled},
		{"RAW_ARCHIVE_ENABLED", "false", &cfg.RawArchiveEnabled},
		{"REDIS_ENABLED", "false", &cfg.RedisEnabled},
		{"TELEGRAM_ENABLED", "false", &cfg.TelegramEnabled},
		{"PPROF_ENABLED", "false", &cfg.PprofEnabled},
		{"UPTRACE_ENABLED", "false", &cfg.UptraceEnabled},
		{"PYROSCOPE_ENABLED", "false", &cfg.PyroscopeEnabled},
	}
	for _, item := range bools {
		value, err := strconv.ParseBool(getEnv(item.key, item.fallback))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", item.key, err)
		}
		*item.dst = value
	}

	streamMaxLen, err := strconv.ParseInt(getEnv("REDIS_STREAM_MAX_LEN", "10000"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse REDIS_STREAM_MAX_LEN: %w", err)
	}
	cfg.RedisStreamMaxLen = streamMaxLen

	database, err := LoadDatabase()
	if err != nil {
		return Config{}, err
	}
	cfg.Database = database
	if cfg.RawArchiveEnabled && cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DB_URL is required when RAW_ARCHIVE_ENABLED=true")
	}
	if cfg.RedisEnabled && cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if cfg.RedisStream == "" {
		return Config{}, fmt.Errorf("REDIS_STREAM cannot be empty")
	}

	if cfg.TelegramEnabled {
		if cfg.TelegramToken == "" {
			return Config{}, fmt.Errorf("TELEGRAM_TOKEN is required when TELEGRAM_ENABLED=true")
		}
		chatID, err := strconv.ParseInt(strings.TrimSpace(getEnv("TELEGRAM_CHAT_ID", "")), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = chatID
	}

	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))

	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))

	leagues, err := parseLeagues(getEnv("FEED_LEAGUES", ""))
	if err != nil {
		return Config{}, fmt.Errorf("parse FEED_LEAGUES: %w", err)
	}
	if path := strings.TrimSpace(getEnv("FEED_LEAGUES_FILE", "")); path != "" {
		fromFile, err := loadLeaguesFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("parse FEED_LEAGUES_FILE: %w", err)
		}
		leagues = mergeLeagues(leagues, fromFile)
	}
	for i := range leagues {
		if leagues[i].Interval <= 0 {
			leagues[i].Interval = cfg.PollLeagueInterval
		}
	}
	cfg.TrackedLeagues = leagues

	if shortest := cfg.ShortestPollInterval(); cfg.FeedDedupWindow >= shortest {
		return Config{}, fmt.Errorf("FEED_DEDUP_WINDOW (%s) must be shorter than the shortest poll interval (%s)", cfg.FeedDedupWindow, shortest)
	}

	return cfg, nil
}

// ShortestPollInterval is the smallest interval of any poll class. A class's
// next tick must never be answered from the feed dedup window.
func (c Config) ShortestPollInterval() time.Duration {
	shortest := min(c.PollLiveInterval, c.PollUpcomingInterval, c.PollLeagueInterval)
	for _, league := range c.TrackedLeagues {
		if league.Interval > 0 {
			shortest = min(shortest, league.Interval)
		}
	}
	return shortest
}

// FeedCircuitBreaker returns the feed breaker settings.
func (c Config) FeedCircuitBreaker() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		Enabled:          c.FeedCircuitEnabled,
		FailureThreshold: c.FeedCircuitFailureCount,
		OpenTimeout:      c.FeedCircuitOpenTimeout,
		HalfOpenMaxReq:   c.FeedCircuitHalfOpenMaxReq,
	}
}

// TrackedLeagueSeasons maps tracked league ids to their season.
func (c Config) TrackedLeagueSeasons() map[int64]int {
	out := make(map[int64]int, len(c.TrackedLeagues))
	for _, league := range c.TrackedLeagues {
		out[league.ID] = league.Season
	}
	return out
}

// parseLeagues reads "league:season" pairs, e.g. "39:2025,140:2025".
func parseLeagues(raw string) ([]TrackedLeague, error) {
	out := make([]TrackedLeague, 0)
	for _, item := range splitCSV(raw) {
		segments := strings.SplitN(item, ":", 2)
		if len(segments) != 2 {
			return nil, fmt.Errorf("invalid league item %q, expected league_id:season", item)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(segments[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid league id in item %q: %w", item, err)
		}
		season, err := strconv.Atoi(strings.TrimSpace(segments[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid season in item %q: %w", item, err)
		}
		if id <= 0 || season <= 0 {
			return nil, fmt.Errorf("league id and season must be > 0 in item %q", item)
		}
		out = append(out, TrackedLeague{ID: id, Season: season})
	}
	return out, nil
}

func loadLeaguesFile(path string) ([]TrackedLeague, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file leaguesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	for _, league := range file.Leagues {
		if league.ID <= 0 || league.Season <= 0 {
			return nil, fmt.Errorf("league id and season must be > 0, got id=%d season=%d", league.ID, league.Season)
		}
		if league.Interval < 0 {
			return nil, fmt.Errorf("league %d interval must be >= 0", league.ID)
		}
	}
	return file.Leagues, nil
}

// mergeLeagues lets file entries override env entries with the same id.
func mergeLeagues(base, override []TrackedLeague) []TrackedLeague {
	index := make(map[int64]int, len(base))
	out := make([]TrackedLeague, 0, len(base)+len(override))
	for _, league := range append(append([]TrackedLeague{}, base...), override...) {
		if pos, ok := index[league.ID]; ok {
			out[pos] = league
			continue
		}
		index[league.ID] = len(out)
		out = append(out, league)
	}
	return out
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
