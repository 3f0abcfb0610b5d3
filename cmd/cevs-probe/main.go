package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/cevs/internal/probe"
	"github.com/okian/cevs/pkg/logger"
)

// Default configuration constants.
const (
	defaultRequests    = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultProbeBudget = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		requests  = flag.Int("requests", defaultRequests, "Number of requests to issue")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		rps       = flag.Float64("rate", 0, "Requests per second, 0 for unlimited")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		companies = flag.String("companies", "PT Hijau Lestari,Eco Manufacturing GmbH", "Comma separated companies to score")
		country   = flag.String("country", "Indonesia", "Country for filtered requests")
		format    = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every request")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultProbeBudget)
	defer cancel()

	stats, err := probe.Run(ctx, probe.Config{
		BaseURL:   strings.TrimRight(*baseURL, "/"),
		Requests:  *requests,
		Workers:   *workers,
		Rate:      *rps,
		Timeout:   *timeout,
		Companies: splitList(*companies),
		Country:   *country,
		Verbose:   *verbose,
		Log:       logger.Named("probe"),
	})
	if err != nil {
		os.Stderr.WriteString("probe failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	for _, v := range stats.Violations {
		os.Stderr.WriteString("violation: " + v + "\n")
	}
	if !stats.OK() {
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
