package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
	"time"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		DBSlowQueryMs:         250,
		Classifier:            ClassifierNone,
		EnrichTimeoutSeconds:  30,
		EnrichConcurrency:     4,
	}
}

func with(mut func(*Config)) Config {
	c := validBase()
	mut(&c)
	return c
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.Classifier != ClassifierNone {
		t.Errorf("Classifier = %q, want %q", c.Classifier, ClassifierNone)
	}
	if c.ClaudeModel != "claude-haiku-4-5" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-haiku-4-5")
	}
	if c.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("OpenAIModel = %q, want %q", c.OpenAIModel, "gpt-4o-mini")
	}
	if c.EnrichTimeoutSeconds != 30 {
		t.Errorf("EnrichTimeoutSeconds = %d, want 30", c.EnrichTimeoutSeconds)
	}
	if c.EnrichConcurrency != 4 {
		t.Errorf("EnrichConcurrency = %d, want 4", c.EnrichConcurrency)
	}
	if c.StatsCacheSeconds != 0 {
		t.Errorf("StatsCacheSeconds = %d, want 0", c.StatsCacheSeconds)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://localhost/feedback",
		"-sqlite-path", "/var/lib/feedback/db.sqlite",
		"-classifier", "openai",
		"-openai-api-key", "sk-override",
		"-openai-base-url", "http://llm.internal:8000/v1",
		"-stats-cache-seconds", "15",
		"-public-url", "https://triage.example.com",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.DatabaseURL != "postgres://localhost/feedback" {
		t.Errorf("DatabaseURL = %q", c.DatabaseURL)
	}
	if c.SQLitePath != "/var/lib/feedback/db.sqlite" {
		t.Errorf("SQLitePath = %q", c.SQLitePath)
	}
	if c.Classifier != ClassifierOpenAI {
		t.Errorf("Classifier = %q, want openai", c.Classifier)
	}
	if c.OpenAIAPIKey != "sk-override" {
		t.Errorf("OpenAIAPIKey = %q, want %q", c.OpenAIAPIKey, "sk-override")
	}
	if c.OpenAIBaseURL != "http://llm.internal:8000/v1" {
		t.Errorf("OpenAIBaseURL = %q", c.OpenAIBaseURL)
	}
	if c.StatsTTL() != 15*time.Second {
		t.Errorf("StatsTTL = %v, want 15s", c.StatsTTL())
	}
	if c.PublicURL != "https://triage.example.com" {
		t.Errorf("PublicURL = %q", c.PublicURL)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("override config should validate, got: %v", err)
	}
}

func TestDurations(t *testing.T) {
	t.Parallel()

	c := Config{EnrichTimeoutSeconds: 12, StatsCacheSeconds: 5, DBSlowQueryMs: 1500}
	if c.EnrichTimeout() != 12*time.Second {
		t.Errorf("EnrichTimeout = %v", c.EnrichTimeout())
	}
	if c.StatsTTL() != 5*time.Second {
		t.Errorf("StatsTTL = %v", c.StatsTTL())
	}
	if c.SlowQuery() != 1500*time.Millisecond {
		t.Errorf("SlowQuery = %v", c.SlowQuery())
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name:    "minimum valid values",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 1, 2, 1 }),
			wantErr: false,
		},
		{
			name:    "maximum valid values",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 299, 300, 65535 }),
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       with(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			cfg:       with(func(c *Config) { c.DrainSeconds = -1 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:    "drain at upper bound",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }),
			wantErr: true, // budget must be greater than drain
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:    "budget is drain plus one",
			cfg:     with(func(c *Config) { c.ShutdownBudgetSeconds = 61 }),
			wantErr: false,
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       with(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       with(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Storage
		{
			name:      "negative pool size",
			cfg:       with(func(c *Config) { c.DBMaxConns = -1 }),
			wantErr:   true,
			errSubstr: []string{"DB_MAX_CONNS"},
		},
		{
			name:      "negative slow query threshold",
			cfg:       with(func(c *Config) { c.DBSlowQueryMs = -5 }),
			wantErr:   true,
			errSubstr: []string{"DB_SLOW_QUERY_MS"},
		},
		{
			name:      "stats cache above max",
			cfg:       with(func(c *Config) { c.StatsCacheSeconds = 3601 }),
			wantErr:   true,
			errSubstr: []string{"STATS_CACHE_SECONDS"},
		},
		// Classifier selection
		{
			name:      "unknown classifier",
			cfg:       with(func(c *Config) { c.Classifier = "gemini" }),
			wantErr:   true,
			errSubstr: []string{"CLASSIFIER"},
		},
		{
			name:      "claude without key",
			cfg:       with(func(c *Config) { c.Classifier, c.ClaudeModel = ClassifierClaude, "m" }),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_API_KEY"},
		},
		{
			name:      "claude without model",
			cfg:       with(func(c *Config) { c.Classifier, c.ClaudeAPIKey = ClassifierClaude, "k" }),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_MODEL"},
		},
		{
			name:    "claude configured",
			cfg:     with(func(c *Config) { c.Classifier, c.ClaudeAPIKey, c.ClaudeModel = ClassifierClaude, "k", "m" }),
			wantErr: false,
		},
		{
			name:      "openai without key",
			cfg:       with(func(c *Config) { c.Classifier, c.OpenAIModel = ClassifierOpenAI, "m" }),
			wantErr:   true,
			errSubstr: []string{"OPENAI_API_KEY"},
		},
		{
			name: "openai bad base url",
			cfg: with(func(c *Config) {
				c.Classifier, c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIBaseURL = ClassifierOpenAI, "k", "m", "llm.internal"
			}),
			wantErr:   true,
			errSubstr: []string{"OPENAI_BASE_URL"},
		},
		{
			name:    "openai configured",
			cfg:     with(func(c *Config) { c.Classifier, c.OpenAIAPIKey, c.OpenAIModel = ClassifierOpenAI, "k", "m" }),
			wantErr: false,
		},
		{
			name: "enrich timeout zero with classifier",
			cfg: with(func(c *Config) {
				c.Classifier, c.ClaudeAPIKey, c.ClaudeModel, c.EnrichTimeoutSeconds = ClassifierClaude, "k", "m", 0
			}),
			wantErr:   true,
			errSubstr: []string{"ENRICH_TIMEOUT_SECONDS"},
		},
		{
			name: "enrich concurrency zero with classifier",
			cfg: with(func(c *Config) {
				c.Classifier, c.ClaudeAPIKey, c.ClaudeModel, c.EnrichConcurrency = ClassifierClaude, "k", "m", 0
			}),
			wantErr:   true,
			errSubstr: []string{"ENRICH_CONCURRENCY"},
		},
		{
			name: "enrich concurrency above max",
			cfg: with(func(c *Config) {
				c.Classifier, c.OpenAIAPIKey, c.OpenAIModel, c.EnrichConcurrency = ClassifierOpenAI, "k", "m", 65
			}),
			wantErr:   true,
			errSubstr: []string{"ENRICH_CONCURRENCY"},
		},
		{
			name:    "enrich timeout ignored without classifier",
			cfg:     with(func(c *Config) { c.EnrichTimeoutSeconds = 0 }),
			wantErr: false,
		},
		// URLs
		{
			name:      "bad slack webhook",
			cfg:       with(func(c *Config) { c.SlackWebhookURL = "ftp://hooks.slack.com/x" }),
			wantErr:   true,
			errSubstr: []string{"SLACK_WEBHOOK_URL"},
		},
		{
			name:      "bad public url",
			cfg:       with(func(c *Config) { c.PublicURL = "/relative" }),
			wantErr:   true,
			errSubstr: []string{"PUBLIC_URL"},
		},
		// Error accumulation
		{
			name:      "all fields invalid",
			cfg:       Config{Classifier: ClassifierClaude, StatsCacheSeconds: -1},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "STATS_CACHE_SECONDS", "CLAUDE_API_KEY", "CLAUDE_MODEL", "ENRICH_TIMEOUT_SECONDS"},
		},
		// Extreme values
		{
			name:      "extreme negative values",
			cfg:       Config{DrainSeconds: math.MinInt32, ShutdownBudgetSeconds: math.MinInt32, APIPort: math.MinInt32, Classifier: ClassifierNone},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port int
		classifier, key     string
	}{
		{60, 90, 8080, "none", ""},
		{1, 2, 1, "claude", "k"},
		{299, 300, 65535, "openai", "k"},
		{0, 0, 0, "", ""},
		{-1, -1, -1, "claude", ""},
		{300, 300, 65535, "none", "k"},
		{301, 302, 65536, "openai", ""},
		{150, 100, 8080, "none", ""},
		{math.MinInt32, math.MinInt32, math.MinInt32, "x", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.classifier, s.key)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, classifier, key string) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			Classifier:            classifier,
			ClaudeAPIKey:          key,
			ClaudeModel:           "m",
			OpenAIAPIKey:          key,
			OpenAIModel:           "m",
			EnrichTimeoutSeconds:  30,
			EnrichConcurrency:     4,
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		var classifierOK bool
		switch classifier {
		case ClassifierNone:
			classifierOK = true
		case ClassifierClaude, ClassifierOpenAI:
			classifierOK = key != ""
		}

		allValid := drainOK && budgetOK && portOK && crossOK && classifierOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
