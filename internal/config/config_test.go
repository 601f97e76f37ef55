package config_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/okian/gradebook/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LatenessFudge(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.WeightTolerance, convey.ShouldEqual, 1e-6)
			convey.So(cfg.DropExhaustiveLimit, convey.ShouldEqual, 20)
			convey.So(cfg.DropFallback, convey.ShouldEqual, "error")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.RevisionHistory, convey.ShouldEqual, 64)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
