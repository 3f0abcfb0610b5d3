package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/cevs/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New(ctx))
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CEVS_ADDR", ":8080")
			_ = os.Setenv("CEVS_PAGE__MAX_LIMIT", "200")
			_ = os.Setenv("CEVS_SOURCES__PERMITS__TTL", "90s")
			_ = os.Setenv("CEVS_SOURCES__PERMITS__STALE_ON_ERROR", "true")
			_ = os.Setenv("CEVS_TREND__SOURCE", "auto")
			_ = os.Setenv("CEVS_WEIGHTS__BASE", "40")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override nested defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Page.MaxLimit, convey.ShouldEqual, 200)
				convey.So(cfg.Page.DefaultLimit, convey.ShouldEqual, 50)
				convey.So(cfg.Sources.Permits.TTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.Sources.Permits.StaleOnError, convey.ShouldBeTrue)
				convey.So(cfg.Sources.Permits.Capacity, convey.ShouldEqual, 128)
				convey.So(cfg.Sources.Emissions.StaleOnError, convey.ShouldBeFalse)
				convey.So(cfg.Trend.Source, convey.ShouldEqual, "auto")
				convey.So(cfg.Weights.Base, convey.ShouldEqual, 40)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
log_format: json
sources:
  gridded:
    url: "https://example.org/edgar.csv"
    format: csv
    ttl: 2h
trend:
  window: 5
warmup:
  workers: 2
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("CEVS_CONFIG", tmpFile)
			_ = os.Setenv("CEVS_WARMUP__WORKERS", "3")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Sources.Gridded.URL, convey.ShouldEqual, "https://example.org/edgar.csv")
				convey.So(cfg.Sources.Gridded.Format, convey.ShouldEqual, "csv")
				convey.So(cfg.Sources.Gridded.TTL, convey.ShouldEqual, 2*time.Hour)
				convey.So(cfg.Sources.Gridded.FetchTimeout, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.Trend.Window, convey.ShouldEqual, 5)
				convey.So(cfg.Trend.Pollutant, convey.ShouldEqual, "PM2.5")
				convey.So(cfg.Warmup.Workers, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CEVS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CEVS_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CEVS_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error naming the field", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "Addr")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When values break constraints", func() {
			_ = os.Setenv("CEVS_PAGE__DEFAULT_LIMIT", "500")
			_ = os.Setenv("CEVS_TREND__SOURCE", "satellite")
			_ = os.Setenv("CEVS_SOURCES__REGIONAL__TTL", "0s")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "Page.DefaultLimit")
			convey.So(err.Error(), convey.ShouldContainSubstring, "Trend.Source")
			convey.So(err.Error(), convey.ShouldContainSubstring, "Sources.Regional.TTL")
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CEVS_PAGE__MAX_LIMIT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CEVS_CONFIG",
		"CEVS_ADDR",
		"CEVS_PAGE__MAX_LIMIT",
		"CEVS_PAGE__DEFAULT_LIMIT",
		"CEVS_SOURCES__PERMITS__TTL",
		"CEVS_SOURCES__PERMITS__STALE_ON_ERROR",
		"CEVS_SOURCES__REGIONAL__TTL",
		"CEVS_TREND__SOURCE",
		"CEVS_WEIGHTS__BASE",
		"CEVS_WARMUP__WORKERS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "cevs-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
