package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/reencuentro/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 300)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.Weights.ExactName, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("REENCUENTRO_ADDR", ":8080")
			_ = os.Setenv("REENCUENTRO_QUEUE_SIZE", "500")
			_ = os.Setenv("REENCUENTRO_WORKER_COUNT", "16")
			_ = os.Setenv("REENCUENTRO_MATCH_THRESHOLD", "450")
			_ = os.Setenv("REENCUENTRO_SAME_STATE_ONLY", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should use environment variable values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 450)
				convey.So(cfg.SameStateOnly, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When nested keys are set with a double underscore", func() {
			_ = os.Setenv("REENCUENTRO_STORE__DRIVER", "sqlite")
			_ = os.Setenv("REENCUENTRO_STORE__PATH", "/tmp/matches.db")
			_ = os.Setenv("REENCUENTRO_WEIGHTS__MUNICIPALITY", "120")
			_ = os.Setenv("REENCUENTRO_NOTIFY__NATS_URL", "nats://localhost:4222")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the nested sections should be populated", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.Store.Path, convey.ShouldEqual, "/tmp/matches.db")
				convey.So(cfg.Weights.Municipality, convey.ShouldEqual, 120)
				convey.So(cfg.Weights.State, convey.ShouldEqual, 50)
				convey.So(cfg.Notify.NATSURL, convey.ShouldEqual, "nats://localhost:4222")
				convey.So(cfg.Notify.Subject, convey.ShouldEqual, "reencuentro.matches")
			})
		})

		convey.Convey("When loading config from a YAML file", func() {
			yamlContent := `
addr: ":9090"
queue_size: 3000
worker_count: 24
match_threshold: 350
store:
  driver: sqlite
  path: matches.db
weights:
  gender: 180
  exact_name: 600
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("REENCUENTRO_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should use file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 3000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 350)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.Weights.Gender, convey.ShouldEqual, 180)
				convey.So(cfg.Weights.ExactName, convey.ShouldEqual, 600)
			})

			convey.Convey("Then missing fields should keep their defaults", func() {
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.Weights.GivenName, convey.ShouldEqual, 100)
				convey.So(cfg.MaxListLimit, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 3000
worker_count: 24
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("REENCUENTRO_CONFIG", tmpFile)
			_ = os.Setenv("REENCUENTRO_ADDR", ":8080")
			_ = os.Setenv("REENCUENTRO_WORKER_COUNT", "32")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 3000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("REENCUENTRO_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("REENCUENTRO_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("REENCUENTRO_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a weight is negative", func() {
			_ = os.Setenv("REENCUENTRO_WEIGHTS__TRAIT", "-5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "trait")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"REENCUENTRO_CONFIG",
		"REENCUENTRO_ADDR",
		"REENCUENTRO_QUEUE_SIZE",
		"REENCUENTRO_WORKER_COUNT",
		"REENCUENTRO_MATCH_THRESHOLD",
		"REENCUENTRO_SAME_STATE_ONLY",
		"REENCUENTRO_STORE__DRIVER",
		"REENCUENTRO_STORE__PATH",
		"REENCUENTRO_WEIGHTS__MUNICIPALITY",
		"REENCUENTRO_WEIGHTS__TRAIT",
		"REENCUENTRO_NOTIFY__NATS_URL",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "reencuentro-config-*.yaml")
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
