package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/formguide/internal/config"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.InputFormat, convey.ShouldEqual, config.FormatCSV)
			convey.So(cfg.Driver, convey.ShouldEqual, config.FormatSQLite)
			convey.So(cfg.CrawlWorkers, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.RequestTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the default policy skips malformed records", func() {
			p, err := cfg.MalformedPolicy()
			convey.So(err, convey.ShouldBeNil)
			convey.So(p, convey.ShouldEqual, model.PolicySkip)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with bad values", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown format", func(c *config.Config) { c.InputFormat = "xml" }},
			{"unknown driver", func(c *config.Config) { c.Driver = "mysql" }},
			{"unknown policy", func(c *config.Config) { c.Policy = "lenient" }},
			{"negative timeout", func(c *config.Config) { c.RequestTimeoutMS = -1 }},
		}
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
