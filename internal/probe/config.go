// Package probe drives a running API with concurrent read traffic and checks
// that every answer is a well-formed envelope.
package probe

import (
	"time"

	"github.com/okian/cevs/pkg/logger"
)

// Config holds configuration for a probe run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Requests  int           // Number of requests to issue
	Workers   int           // Number of concurrent workers
	Rate      float64       // Requests per second across workers, 0 for unlimited
	Timeout   time.Duration // HTTP request timeout
	Companies []string      // Companies scored by the composite checks
	Country   string        // Country used for filtered requests and trends
	Verbose   bool
	Log       logger.Logger
}

// Stats holds run statistics.
type Stats struct {
	Sent        int
	Succeeded   int
	Unavailable int
	Failed      int
	Stale       int
	Violations  []string
	PerPath     map[string]int
	Duration    time.Duration
}

// OK reports whether the run saw no transport failures or envelope violations.
func (s *Stats) OK() bool { return s.Failed == 0 && len(s.Violations) == 0 }
