package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/formguide/internal/adapters/http/api"
	"github.com/okian/formguide/internal/adapters/repository"
	"github.com/okian/formguide/internal/domain/types"
)

type mockDeps struct {
	horses    map[string][]types.HorseRun
	runs      []types.RunSummary
	err       error
	lastLimit int
}

func (m *mockDeps) HorseHistory(_ context.Context, id string) ([]types.HorseRun, error) {
	if m.err != nil {
		return nil, m.err
	}
	runs, ok := m.horses[id]
	if !ok {
		return nil, fmt.Errorf("horse %q: %w", id, repository.ErrNotFound)
	}
	return runs, nil
}

func (m *mockDeps) Runs(_ context.Context, limit int) ([]types.RunSummary, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDeps) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"runs": 2}}, 10)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func fixtureDeps() *mockDeps {
	start := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	return &mockDeps{
		horses: map[string][]types.HorseRun{
			"HK_2022_H432": {
				{RunID: "run-b", Date: "2024-09-08", RaceIndex: 1, HorseID: "HK_2022_H432", Position: "01", Stats: map[string]float64{}},
				{RunID: "run-b", Date: "2024-09-22", RaceIndex: 10, HorseID: "HK_2022_H432", Position: "03", Stats: map[string]float64{"total_runs": 1, "top1": 1}},
			},
		},
		runs: []types.RunSummary{
			{ID: "run-b", StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour + time.Second), Records: 2},
			{ID: "run-a", StartedAt: start, FinishedAt: start.Add(time.Second), Records: 2},
		},
	}
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(fixtureDeps())

		Convey("Then the health endpoint serves metrics", func() {
			w := do(mux, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint returns JSON", func() {
			w := do(mux, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			var body map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["runs"], ShouldEqual, 2.0)
			So(body["servedAt"], ShouldNotBeEmpty)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
		})

		Convey("Then unknown paths are not found", func() {
			w := do(mux, http.MethodGet, "/nope")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHorseHandler(t *testing.T) {
	Convey("Given a horse handler", t, func() {
		deps := fixtureDeps()
		mux := newMux(deps)

		Convey("When the horse is known", func() {
			w := do(mux, http.MethodGet, "/horses/HK_2022_H432")

			Convey("Then its runs come back oldest first", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					HorseID string           `json:"horse_id"`
					Runs    []types.HorseRun `json:"runs"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.HorseID, ShouldEqual, "HK_2022_H432")
				So(body.Runs, ShouldHaveLength, 2)
				So(body.Runs[1].Stats["top1"], ShouldEqual, 1.0)
				So(body.Runs[0].Stats, ShouldBeEmpty)
			})
		})

		Convey("When the horse is unknown", func() {
			w := do(mux, http.MethodGet, "/horses/nope")

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(w.Body.String(), ShouldContainSubstring, `"code":"not_found"`)
			})
		})

		Convey("When the path is malformed", func() {
			So(do(mux, http.MethodGet, "/horses/").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/horses/a/b").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the store fails", func() {
			deps.err = errors.New("db down")
			w := do(mux, http.MethodGet, "/horses/HK_2022_H432")

			Convey("Then 500 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When the method is not GET", func() {
			So(do(mux, http.MethodPost, "/horses/HK_2022_H432").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRunsHandler(t *testing.T) {
	Convey("Given a runs handler capped at 10", t, func() {
		deps := fixtureDeps()
		mux := newMux(deps)

		Convey("When no limit is given", func() {
			w := do(mux, http.MethodGet, "/runs")

			Convey("Then the cap is used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 10)
				var runs []types.RunSummary
				So(json.Unmarshal(w.Body.Bytes(), &runs), ShouldBeNil)
				So(runs, ShouldHaveLength, 2)
				So(runs[0].ID, ShouldEqual, "run-b")
			})
		})

		Convey("When a limit is given", func() {
			w := do(mux, http.MethodGet, "/runs?limit=1")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 1)
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"abc", "0", "-1", "11"} {
				w := do(mux, http.MethodGet, "/runs?limit="+q)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When there are no runs", func() {
			deps.runs = nil
			w := do(mux, http.MethodGet, "/runs")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})
	})
}

func TestInstrument(t *testing.T) {
	Convey("Given a handler wrapped by Instrument", t, func() {
		h := api.Instrument("teapot", nil, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		})

		Convey("Then the status and body pass through with a request id", func() {
			w := do(h, http.MethodGet, "/teapot")
			So(w.Code, ShouldEqual, http.StatusTeapot)
			So(w.Body.String(), ShouldEqual, "short and stout")
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
		})

		Convey("Then a client request id is kept", func() {
			req := httptest.NewRequest(http.MethodGet, "/teapot", nil)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
		})
	})
}
