package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/matchpulse/internal/config"
)

const (
	dbPingTimeout      = 5 * time.Second
	maxTracedQuerySize = 512
)

// openDB connects the raw archive database with query tracing enabled.
func openDB(cfg config.Database) (*sqlx.DB, error) {
	opts := []otelsql.Option{otelsql.WithQueryFormatter(traceQuery)}
	if name := cfg.Name(); name != "" {
		opts = append(opts, otelsql.WithDBName(name))
	}

	db, err := otelsqlx.Open("postgres", cfg.DSN(), opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database %q: %w", cfg.Name(), err)
	}
	return db, nil
}

// traceQuery collapses whitespace so multi-line statements read as one span
// attribute, truncated to maxTracedQuerySize bytes.
func traceQuery(query string) string {
	flat := strings.Join(strings.Fields(query), " ")
	if len(flat) <= maxTracedQuerySize {
		return flat
	}
	return flat[:maxTracedQuerySize] + "..."
}
