package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/cevs/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Page.DefaultLimit, convey.ShouldEqual, 50)
			convey.So(cfg.Page.MaxLimit, convey.ShouldEqual, 100)
			convey.So(cfg.Trend.Source, convey.ShouldEqual, "gridded")
			convey.So(cfg.Trend.Window, convey.ShouldEqual, 3)
			convey.So(cfg.Sources.Permits.TTL, convey.ShouldEqual, time.Hour)
			convey.So(cfg.Sources.Gridded.StaleOnError, convey.ShouldBeFalse)
			convey.So(cfg.Weights.Base, convey.ShouldEqual, 50)
			convey.So(cfg.Warmup.Workers, convey.ShouldBeGreaterThanOrEqualTo, 1)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
