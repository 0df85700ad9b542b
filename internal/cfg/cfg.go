package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"
)

// Classifier names accepted by the -classifier flag.
const (
	ClassifierNone   = "none"
	ClassifierClaude = "claude"
	ClassifierOpenAI = "openai"
)

// Config holds the application flags. It satisfies the go-core
// cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	DatabaseURL       string
	DBMaxConns        int
	DBSlowQueryMs     int
	SQLitePath        string
	StatsCacheSeconds int

	Classifier           string
	ClaudeAPIKey         string
	ClaudeModel          string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	EnrichTimeoutSeconds int
	EnrichConcurrency    int

	SlackWebhookURL string
	PublicURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (takes precedence over -sqlite-path)")
	fs.IntVar(&c.DBMaxConns, "db-max-conns", 0, "PostgreSQL pool size (0 = pgx default)")
	fs.IntVar(&c.DBSlowQueryMs, "db-slow-query-ms", 250, "log PostgreSQL queries slower than this many milliseconds (0 = log every query)")
	fs.StringVar(&c.SQLitePath, "sqlite-path", "", "SQLite database file (empty with no -database-url = in-memory store)")
	fs.IntVar(&c.StatsCacheSeconds, "stats-cache-seconds", 0, "seconds to cache the stats aggregate (0 = disabled, max 3600)")

	fs.StringVar(&c.Classifier, "classifier", ClassifierNone, "enrichment provider: none, claude or openai")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude classifier")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-haiku-4-5", "Claude model used for classification")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI-compatible classifier")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "", "base URL of an OpenAI-compatible endpoint (empty = api.openai.com)")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o-mini", "model used by the OpenAI-compatible classifier")
	fs.IntVar(&c.EnrichTimeoutSeconds, "enrich-timeout-seconds", 30, "per-item enrichment timeout (1..300)")
	fs.IntVar(&c.EnrichConcurrency, "enrich-concurrency", 4, "maximum concurrent classifier calls (1..64)")

	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notifications")
	fs.StringVar(&c.PublicURL, "public-url", "", "externally reachable base URL, used for links in notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.DBMaxConns < 0 {
		errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS %d (must be >= 0)", c.DBMaxConns))
	}
	if c.DBSlowQueryMs < 0 {
		errs = append(errs, fmt.Errorf("invalid DB_SLOW_QUERY_MS %d (must be >= 0)", c.DBSlowQueryMs))
	}
	if c.StatsCacheSeconds < 0 || c.StatsCacheSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid STATS_CACHE_SECONDS %d (must be 0..3600)", c.StatsCacheSeconds))
	}

	// The selected classifier needs its credentials
	switch c.Classifier {
	case ClassifierNone:
	case ClassifierClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when CLASSIFIER=claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when CLASSIFIER=claude"))
		}
	case ClassifierOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when CLASSIFIER=openai"))
		}
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required when CLASSIFIER=openai"))
		}
		if c.OpenAIBaseURL != "" && !validHTTPURL(c.OpenAIBaseURL) {
			errs = append(errs, fmt.Errorf("invalid OPENAI_BASE_URL %q (must be an http(s) URL)", c.OpenAIBaseURL))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER %q (must be none, claude or openai)", c.Classifier))
	}
	if c.Classifier != ClassifierNone && (c.EnrichTimeoutSeconds <= 0 || c.EnrichTimeoutSeconds > 300) {
		errs = append(errs, fmt.Errorf("invalid ENRICH_TIMEOUT_SECONDS %d (must be 1..300)", c.EnrichTimeoutSeconds))
	}
	if c.Classifier != ClassifierNone && (c.EnrichConcurrency <= 0 || c.EnrichConcurrency > 64) {
		errs = append(errs, fmt.Errorf("invalid ENRICH_CONCURRENCY %d (must be 1..64)", c.EnrichConcurrency))
	}

	if c.SlackWebhookURL != "" && !validHTTPURL(c.SlackWebhookURL) {
		errs = append(errs, errors.New("invalid SLACK_WEBHOOK_URL (must be an http(s) URL)"))
	}
	if c.PublicURL != "" && !validHTTPURL(c.PublicURL) {
		errs = append(errs, fmt.Errorf("invalid PUBLIC_URL %q (must be an http(s) URL)", c.PublicURL))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnrichTimeout returns the per-item enrichment timeout.
func (c *Config) EnrichTimeout() time.Duration {
	return time.Duration(c.EnrichTimeoutSeconds) * time.Second
}

// StatsTTL returns how long a stats snapshot may be served from cache.
func (c *Config) StatsTTL() time.Duration {
	return time.Duration(c.StatsCacheSeconds) * time.Second
}

// SlowQuery returns the slow query logging threshold.
func (c *Config) SlowQuery() time.Duration {
	return time.Duration(c.DBSlowQueryMs) * time.Millisecond
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
