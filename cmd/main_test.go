package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/cevs/internal/app"
	"github.com/okian/cevs/internal/config"
	"github.com/okian/cevs/pkg/logger"
)

func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.Addr = "127.0.0.1:0"
	cfg.Warmup.Enabled = false
	return cfg
}

func TestNewHandler(t *testing.T) {
	convey.Convey("Given a handler over the sample sources", t, func() {
		svc, err := service.New(context.Background(), service.WithConfig(testConfig()), service.WithLogger(logger.Nop()))
		convey.So(err, convey.ShouldBeNil)
		h := newHandler(svc, logger.Nop())

		get := func(path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			return rec
		}

		convey.Convey("Then the business routes are mounted", func() {
			convey.So(get("/healthz").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/permits").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/global/cevs/Acme").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the docs are mounted on the same router", func() {
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			rec := get("/openapi.yaml")
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(rec.Body.String(), convey.ShouldContainSubstring, "openapi:")
		})

		convey.Convey("Then every response carries a request id", func() {
			convey.So(get("/stats").Header().Get("X-Request-ID"), convey.ShouldNotBeEmpty)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- run(ctx, testConfig(), logger.Nop()) }()
		cancel()

		convey.Convey("Then run shuts down cleanly", func() {
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(5 * time.Second):
				convey.So("run did not return", convey.ShouldBeEmpty)
			}
		})
	})

	convey.Convey("Given an invalid source url", t, func() {
		cfg := testConfig()
		cfg.Sources.Permits.URL = "://bad"

		convey.Convey("Then run fails before listening", func() {
			convey.So(run(context.Background(), cfg, logger.Nop()), convey.ShouldNotBeNil)
		})
	})
}
