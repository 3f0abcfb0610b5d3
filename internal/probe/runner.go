package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/types"
	"github.com/okian/cevs/pkg/logger"
)

// ErrUnhealthy is returned when the health check fails.
var ErrUnhealthy = errors.New("service unhealthy")

// Run checks health, drives cfg.Requests reads across the endpoints and then
// re-scores every company to check the answers agree.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rate", cfg.Rate))

	if err := checkHealth(ctx, c); err != nil {
		return nil, err
	}

	stats := &Stats{PerPath: map[string]int{}}
	var mu sync.Mutex
	record := func(path string, code int, env envelope, err error) {
		mu.Lock()
		defer mu.Unlock()
		stats.Sent++
		stats.PerPath[path]++
		switch {
		case err != nil:
			stats.Failed++
			stats.Violations = append(stats.Violations, err.Error())
			return
		case code == http.StatusOK:
			stats.Succeeded++
		case code == http.StatusServiceUnavailable:
			stats.Unavailable++
		}
		if env.Stale {
			stats.Stale++
		}
		if verr := verifyEnvelope(path, code, env); verr != nil {
			stats.Violations = append(stats.Violations, verr.Error())
		}
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, cfg.Workers)

	targets := plan(cfg)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Requests; i++ {
		path := targets[i%len(targets)]
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			code, env, err := c.get(gctx, path)
			record(path, code, env, err)
			if cfg.Verbose {
				log.Debug(gctx, "request", logger.String("path", path), logger.Int("status", code))
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, company := range cfg.Companies {
		if err := checkScore(ctx, c, company, cfg.Country); err != nil {
			stats.Violations = append(stats.Violations, err.Error())
		}
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "final statistics",
		logger.Int("sent", stats.Sent),
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("unavailable", stats.Unavailable),
		logger.Int("failed", stats.Failed),
		logger.Int("stale", stats.Stale),
		logger.Int("violations", len(stats.Violations)),
		logger.Duration("duration", stats.Duration))
	return stats, ctx.Err()
}

func checkHealth(ctx context.Context, c *client) error {
	code, env, err := c.get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if code != http.StatusOK || env.Status != types.StatusSuccess {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, code)
	}
	return nil
}

// plan lists the request paths cycled through by the workers.
func plan(cfg Config) []string {
	country := url.QueryEscape(cfg.Country)
	paths := []string{
		"/permits",
		"/permits?page=2&limit=1",
		"/global/emissions",
		"/global/iso",
		"/global/eea",
		"/stats",
		"/stats/permits",
	}
	if country != "" {
		paths = append(paths,
			"/global/iso?country="+country,
			"/global/eea?country="+country,
			"/global/edgar?country="+country,
		)
	}
	for _, company := range cfg.Companies {
		paths = append(paths,
			"/permits/search?q="+url.QueryEscape(company),
			"/global/cevs/"+url.PathEscape(company),
		)
	}
	return paths
}

// checkScore scores company twice and compares the answers.
func checkScore(ctx context.Context, c *client, company, country string) error {
	path := "/global/cevs/" + url.PathEscape(company)
	if country != "" {
		path += "?country=" + url.QueryEscape(country)
	}
	first, err := fetchScore(ctx, c, path)
	if err != nil {
		return err
	}
	second, err := fetchScore(ctx, c, path)
	if err != nil {
		return err
	}
	return compareScores(company, first, second)
}

func fetchScore(ctx context.Context, c *client, path string) (score model.CompositeScore, err error) {
	code, env, err := c.get(ctx, path)
	if err != nil {
		return score, err
	}
	if code != http.StatusOK {
		return score, fmt.Errorf("%s: status %d", path, code)
	}
	return verifyScore(path, env.Data)
}
