// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) returns the defaults; Load layers file and env on top.
//   - Durations accept Go syntax ("90s", "1h").
//   - Errors wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// Sources holds per-source adapter and cache settings.
	Sources Sources `koanf:"sources"`

	// Page bounds list endpoints.
	Page Page `koanf:"page"`

	// Trend selects how pollution trends are derived for scoring.
	Trend Trend `koanf:"trend"`

	// Weights are the composite scoring constants.
	Weights Weights `koanf:"weights"`

	// Warmup configures background cache refreshes.
	Warmup Warmup `koanf:"warmup"`

	// SeenSize bounds the set of unmapped country inputs already logged.
	SeenSize int `koanf:"seen_size" validate:"gte=1"`
}

// Source configures one upstream. An empty URL serves the built-in sample rows.
type Source struct {
	URL          string        `koanf:"url" validate:"omitempty,url"`
	Format       string        `koanf:"format" validate:"omitempty,oneof=auto json csv"`
	TTL          time.Duration `koanf:"ttl" validate:"gt=0"`
	Capacity     int           `koanf:"capacity" validate:"gte=1"`
	StaleOnError bool          `koanf:"stale_on_error"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	// Rate is requests per second; zero disables limiting.
	Rate  float64 `koanf:"rate" validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0"`
	// Headers are sent with every upstream request.
	Headers map[string]string `koanf:"headers"`
}

// Sources lists the five upstreams.
type Sources struct {
	Permits        Source `koanf:"permits"`
	Emissions      Source `koanf:"emissions"`
	Certifications Source `koanf:"certifications"`
	Regional       Source `koanf:"regional"`
	Gridded        Source `koanf:"gridded"`
}

// Page bounds pagination.
type Page struct {
	DefaultLimit int `koanf:"default_limit" validate:"gte=1,ltefield=MaxLimit"`
	MaxLimit     int `koanf:"max_limit" validate:"gte=1"`
}

// Trend configures the pollution trend provider.
type Trend struct {
	// Source is gridded, regional or auto (edgar and eea are accepted aliases).
	Source            string `koanf:"source" validate:"oneof=gridded regional auto edgar eea"`
	Pollutant         string `koanf:"pollutant" validate:"required"`
	Window            int    `koanf:"window" validate:"gte=1,lte=50"`
	RegionalIndicator string `koanf:"regional_indicator"`
}

// Weights mirrors the scoring constants.
type Weights struct {
	Base               float64 `koanf:"base" validate:"gte=0,lte=100"`
	CertificationBonus float64 `koanf:"certification_bonus"`
	EmissionsReference float64 `koanf:"emissions_reference" validate:"gt=0"`
	EmissionsWeight    float64 `koanf:"emissions_weight"`
	EmissionsCap       float64 `koanf:"emissions_cap" validate:"gte=0"`
	PollutionWeight    float64 `koanf:"pollution_weight"`
	PollutionCap       float64 `koanf:"pollution_cap" validate:"gte=0"`
	RenewablesTarget   float64 `koanf:"renewables_target" validate:"gt=0"`
	RenewablesWeight   float64 `koanf:"renewables_weight"`
	RenewablesCap      float64 `koanf:"renewables_cap" validate:"gte=0"`
	PolicyBonus        float64 `koanf:"policy_bonus"`
	PolicyPenalty      float64 `koanf:"policy_penalty"`
}

// Warmup configures the cache warmer.
type Warmup struct {
	Enabled   bool          `koanf:"enabled"`
	Workers   int           `koanf:"workers" validate:"gte=1"`
	QueueSize int           `koanf:"queue_size" validate:"gte=1"`
	Interval  time.Duration `koanf:"interval" validate:"gte=0"`
}

func defaultSource(ttl time.Duration) Source {
	return Source{
		Format:       "auto",
		TTL:          ttl,
		Capacity:     128,
		FetchTimeout: 30 * time.Second,
	}
}

// New creates a Config with defaults. Context is accepted first to follow
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Sources: Sources{
			Permits:        defaultSource(time.Hour),
			Emissions:      defaultSource(6 * time.Hour),
			Certifications: defaultSource(24 * time.Hour),
			Regional:       defaultSource(24 * time.Hour),
			Gridded:        defaultSource(24 * time.Hour),
		},
		Page: Page{DefaultLimit: 50, MaxLimit: 100},
		Trend: Trend{
			Source:    "gridded",
			Pollutant: "PM2.5",
			Window:    3,
		},
		Weights: Weights{
			Base:               50,
			CertificationBonus: 30,
			EmissionsReference: 1_000_000,
			EmissionsWeight:    30,
			EmissionsCap:       30,
			PollutionWeight:    15,
			PollutionCap:       15,
			RenewablesTarget:   20,
			RenewablesWeight:   20,
			RenewablesCap:      20,
			PolicyBonus:        5,
			PolicyPenalty:      5,
		},
		Warmup: Warmup{
			Enabled:   true,
			Workers:   min(runtime.NumCPU(), 4),
			QueueSize: 64,
			Interval:  15 * time.Minute,
		},
		SeenSize: 4096,
	}
}
