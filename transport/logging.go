package transport

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/match"
)

const redacted = "REDACTED"

// DefaultRedactPatterns are wildcard patterns, matched against lower cased query
// parameter names, whose values never reach a log line.
var DefaultRedactPatterns = []string{"*token*", "*secret*", "*password*", "key", "api_key", "apikey"}

// Redact returns raw with the values of matching query parameters replaced and the
// userinfo password masked. With no patterns DefaultRedactPatterns apply. A raw
// value that does not parse is returned unchanged.
func Redact(raw string, patterns ...string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	patterns = lo.Ternary(len(patterns) == 0, DefaultRedactPatterns, patterns)
	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		for i, pair := range pairs {
			name, _, found := strings.Cut(pair, "=")
			decoded, err := url.QueryUnescape(name)
			if err != nil {
				decoded = name
			}
			if sensitive(strings.ToLower(decoded), patterns) {
				pairs[i] = name + lo.Ternary(found, "="+redacted, "")
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}
	return u.Redacted()
}

func sensitive(name string, patterns []string) bool {
	return lo.ContainsBy(patterns, func(p string) bool {
		return match.Match(name, strings.ToLower(p))
	})
}

type logging struct {
	next     Doer
	logger   *slog.Logger
	patterns []string
}

// WithLogging wraps next so that every exchange is logged at debug level, or at
// warn level when it fails. URLs are passed through Redact with patterns.
func WithLogging(next Doer, logger *slog.Logger, patterns ...string) Doer {
	return &logging{next: next, logger: logger, patterns: patterns}
}

func (l *logging) Do(req *http.Request) (*http.Response, error) {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	resp, err := l.next.Do(req)
	attrs := []any{
		slog.String("method", req.Method),
		slog.String("url", Redact(req.URL.String(), l.patterns...)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		logger.WarnContext(req.Context(), "request failed", append(attrs, slog.Any("error", err))...)
		return nil, err
	}
	logger.DebugContext(req.Context(), "request done", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}
