package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/gradebook/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"GRADEBOOK_CONFIG",
	"GRADEBOOK_LOG_LEVEL",
	"GRADEBOOK_WORKER_COUNT",
	"GRADEBOOK_DROP_FALLBACK",
	"GRADEBOOK_MISSING_AS_ZERO",
	"GRADEBOOK_LATENESS_FUDGE_SECONDS",
}

func clearConfigEnvVars() {
	for _, name := range configEnvVars {
		_ = os.Unsetenv(name)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
				convey.So(cfg.DropExhaustiveLimit, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("GRADEBOOK_LOG_LEVEL", "debug")
			_ = os.Setenv("GRADEBOOK_WORKER_COUNT", "3")
			_ = os.Setenv("GRADEBOOK_DROP_FALLBACK", "greedy")
			_ = os.Setenv("GRADEBOOK_MISSING_AS_ZERO", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.DropFallback, convey.ShouldEqual, "greedy")
				convey.So(cfg.MissingAsZero, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeFile(t, t.TempDir(), "gradebook.yaml", `
log_level: warn
lateness_fudge_seconds: 60
robust_placement: upper_edge
`)
			_ = os.Setenv("GRADEBOOK_CONFIG", path)
			_ = os.Setenv("GRADEBOOK_LATENESS_FUDGE_SECONDS", "120")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars win over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
				convey.So(cfg.LatenessFudgeSeconds, convey.ShouldEqual, 120)
				convey.So(cfg.RobustPlacement, convey.ShouldEqual, "upper_edge")
			})
		})

		convey.Convey("When a .env file sits in the working directory", func() {
			dir := t.TempDir()
			writeFile(t, dir, config.DotEnvFile, "GRADEBOOK_WORKER_COUNT=7\nGRADEBOOK_LOG_LEVEL=error\n")
			t.Chdir(dir)
			_ = os.Setenv("GRADEBOOK_LOG_LEVEL", "debug")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 7)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When a value is out of range", func() {
			_ = os.Setenv("GRADEBOOK_DROP_FALLBACK", "random")
			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("GRADEBOOK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}
