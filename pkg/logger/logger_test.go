package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := InitWithOptions(Options{Format: "xml"})

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithOptions(Options{Writer: &buf, Format: FormatJSON}), ShouldBeNil)
		So(SetLevelString("info"), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging through a named child with fields", func() {
			Named("enrich").With(String("run_id", "r1")).Info(ctx, "pass finished", Int("records", 3), Error(errors.New("boom")))

			Convey("Then the line carries component, fields and source", func() {
				var line map[string]any
				So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)
				So(line["msg"], ShouldEqual, "pass finished")
				So(line["component"], ShouldEqual, "enrich")
				So(line["run_id"], ShouldEqual, "r1")
				So(line["records"], ShouldEqual, 3.0)
				So(line["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Info(ctx, "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(SetLevelString("DEBUG"), ShouldBeNil)
		So(SetLevelString(" warning "), ShouldBeNil)
		So(SetLevelString(""), ShouldBeNil)
		So(SetLevelString("verbose"), ShouldNotBeNil)
	})
}

func TestNop(t *testing.T) {
	Convey("Given the nop logger", t, func() {
		l := Nop().Named("x").With(String("k", "v"))

		Convey("Then logging is a no-op", func() {
			So(func() { l.Info(context.Background(), "ignored") }, ShouldNotPanic)
		})
	})
}
