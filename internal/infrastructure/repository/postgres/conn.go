package postgres

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"
)

const (
	pingTimeout           = 5 * time.Second
	maxTracedQueryLength  = 512
	preparedBinaryParam   = "disable_prepared_binary_result"
	defaultMaxOpenConns   = 10
	defaultConnMaxIdleAge = 5 * time.Minute
)

var queryWhitespace = regexp.MustCompile(`\s+`)

type OpenConfig struct {
	DSN                   string
	DisablePreparedBinary bool
	MaxOpenConns          int
}

// Open connects through the otel-instrumented driver and pings once before
// handing the pool back.
func Open(ctx context.Context, cfg OpenConfig) (*sqlx.DB, error) {
	dsn := NormalizeDSN(cfg.DSN, cfg.DisablePreparedBinary)

	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(DatabaseName(dsn)),
		otelsql.WithQueryFormatter(FormatQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxIdleTime(defaultConnMaxIdleAge)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NormalizeDSN adds disable_prepared_binary_result=yes for poolers that
// cannot handle binary results of prepared statements. An explicit value in
// the DSN wins. Keyword/value DSNs are returned as-is.
func NormalizeDSN(raw string, disablePreparedBinary bool) string {
	if !disablePreparedBinary {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		return raw
	}

	query := parsed.Query()
	if query.Get(preparedBinaryParam) != "" {
		return raw
	}
	query.Set(preparedBinaryParam, "yes")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// DatabaseName reads the database from either URL or keyword/value form.
func DatabaseName(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if parsed, err := url.Parse(dsn); err == nil && parsed.Scheme != "" {
		if name := strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/")); name != "" {
			return name
		}
	}

	for _, field := range strings.Fields(dsn) {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key != "dbname" {
			continue
		}
		if name := strings.Trim(strings.TrimSpace(value), `"'`); name != "" {
			return name
		}
	}
	return ""
}

// FormatQueryForTrace collapses whitespace and caps the statement length
// recorded on db spans.
func FormatQueryForTrace(query string) string {
	query = queryWhitespace.ReplaceAllString(strings.TrimSpace(query), " ")
	if len(query) <= maxTracedQueryLength {
		return query
	}
	return query[:maxTracedQueryLength] + "..."
}
