package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cevs/internal/adapters/http/api"
	service "github.com/okian/cevs/internal/app"
	"github.com/okian/cevs/internal/config"
	"github.com/okian/cevs/internal/domain/model"
)

type envelope struct {
	Status     string          `json:"status"`
	Data       json.RawMessage `json:"data"`
	Error      *struct{ Code, Message string }
	Pagination *struct {
		Page, Limit, Total int
		TotalPages         int  `json:"total_pages"`
		HasNext            bool `json:"has_next"`
	}
	Filters   map[string]any `json:"filters"`
	Stale     bool           `json:"stale"`
	RequestID string         `json:"request_id"`
}

func newService() *service.Service {
	cfg := config.New(context.Background())
	cfg.Warmup.Enabled = false
	svc, err := service.New(context.Background(), service.WithConfig(cfg))
	if err != nil {
		panic(err)
	}
	return svc
}

func do(h http.Handler, target string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

// brokenDeps fails selected operations.
type brokenDeps struct {
	*service.Service
}

func (b brokenDeps) QueryEmissions(context.Context, service.Query) (service.QueryResult, error) {
	return service.QueryResult{}, model.NewSourceError(model.SourceEmissions, model.ErrorOutage, errors.New("upstream 503"))
}

func (b brokenDeps) QueryRegionalIndicators(context.Context, service.Query) (service.QueryResult, error) {
	return service.QueryResult{}, errors.New("boom")
}

func (b brokenDeps) QueryCertifications(context.Context, service.Query) (service.QueryResult, error) {
	panic("unexpected")
}

func TestListEndpoints(t *testing.T) {
	Convey("Given the API over the sample sources", t, func() {
		h := api.NewServer(newService(), nil).Router()

		Convey("When listing permits by company", func() {
			rec, env := do(h, "/permits?company=hijau")

			Convey("Then one page with one permit is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(env.Status, ShouldEqual, "success")
				So(env.Pagination.Total, ShouldEqual, 1)
				So(env.Pagination.Page, ShouldEqual, 1)
				So(env.Filters["entity"], ShouldEqual, "hijau")
				So(string(env.Data), ShouldContainSubstring, "PT Hijau Lestari")
				So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, env.RequestID)
			})

			Convey("Then each record is a flat field to value mapping", func() {
				var rows []map[string]any
				So(json.Unmarshal(env.Data, &rows), ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0]["source"], ShouldEqual, "permits")
				So(rows[0]["entity"], ShouldEqual, "PT Hijau Lestari")
				So(rows[0]["country"], ShouldEqual, "indonesia")
				So(rows[0], ShouldContainKey, "status")
				So(rows[0], ShouldNotContainKey, "Seq")
				So(rows[0], ShouldNotContainKey, "seq")
				So(rows[0], ShouldNotContainKey, "Entity")
				So(rows[0], ShouldNotContainKey, "attributes")
			})
		})

		Convey("When the caller sends a request id", func() {
			rec, env := do(h, "/permits", api.RequestIDHeader, "abc-123")
			So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
			So(env.RequestID, ShouldEqual, "abc-123")
		})

		Convey("When searching permits", func() {
			rec, env := do(h, "/permits/search?q=sustain")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(env.Pagination.Total, ShouldEqual, 1)

			rec, env = do(h, "/permits/search")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(env.Error.Code, ShouldEqual, "invalid_input")
		})

		Convey("When filtering emissions by state and year", func() {
			rec, env := do(h, "/global/emissions?state=CA&year=2023")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(env.Pagination.Total, ShouldEqual, 1)
			So(string(env.Data), ShouldContainSubstring, "Sample Gas Plant B")
		})

		Convey("When a numeric parameter is malformed", func() {
			rec, env := do(h, "/global/emissions?year=twenty")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(env.Status, ShouldEqual, "error")
			So(env.Error.Message, ShouldContainSubstring, "year")
		})

		Convey("When listing certifications by country", func() {
			rec, env := do(h, "/global/iso?country=Germany")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(env.Pagination.Total, ShouldEqual, 1)
			So(env.Filters["country"], ShouldEqual, "germany")
		})

		Convey("When paging regional indicators", func() {
			rec, env := do(h, "/global/eea?country=DE&limit=2&page=1")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(env.Pagination.Total, ShouldEqual, 5)
			So(env.Pagination.Limit, ShouldEqual, 2)
			So(env.Pagination.HasNext, ShouldBeTrue)
		})
	})
}

func TestTrendAndScoreEndpoints(t *testing.T) {
	Convey("Given the API over the sample sources", t, func() {
		h := api.NewServer(newService(), nil).Router()

		Convey("When asking for a gridded trend", func() {
			rec, env := do(h, "/global/edgar?country=Germany&window=3")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var tr model.Trend
			So(json.Unmarshal(env.Data, &tr), ShouldBeNil)
			So(tr.Years, ShouldResemble, []int{2018, 2020, 2022})
			So(tr.Increase, ShouldBeFalse)
		})

		Convey("When the trend country is missing", func() {
			rec, _ := do(h, "/global/edgar")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When scoring a company", func() {
			rec, env := do(h, "/global/cevs/Sustain%20PT?country=Indonesia")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var score model.CompositeScore
			So(json.Unmarshal(env.Data, &score), ShouldBeNil)
			So(score.Entity, ShouldEqual, "Sustain PT")
			So(score.Country, ShouldEqual, "indonesia")
			So(score.Score, ShouldBeBetweenOrEqual, 0, 100)
			So(score.Components, ShouldNotBeEmpty)
			So(env.Stale, ShouldBeFalse)
		})

		Convey("When the company is blank", func() {
			rec, env := do(h, "/global/cevs/%20")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(env.Error.Code, ShouldEqual, "invalid_input")
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the API over the sample sources", t, func() {
		h := api.NewServer(newService(), nil).Router()

		Convey("When summarizing a source", func() {
			rec, env := do(h, "/stats/permits")
			So(rec.Code, ShouldEqual, http.StatusOK)

			var summary struct {
				Total       int            `json:"total"`
				ByAttribute map[string]int `json:"by_attribute"`
			}
			So(json.Unmarshal(env.Data, &summary), ShouldBeNil)
			So(summary.Total, ShouldEqual, 3)
			So(summary.ByAttribute["Dicabut"], ShouldEqual, 1)
		})

		Convey("When the source is unknown", func() {
			rec, _ := do(h, "/stats/unknown")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When asking for runtime stats", func() {
			rec, env := do(h, "/stats")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(string(env.Data), ShouldContainSubstring, "cache")
		})

		Convey("When checking health and metrics", func() {
			rec, env := do(h, "/healthz")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(string(env.Data), ShouldContainSubstring, `"status":"ok"`)

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			mrec := httptest.NewRecorder()
			h.ServeHTTP(mrec, req)
			body, _ := io.ReadAll(mrec.Body)
			So(mrec.Code, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, "cevs_")
		})

		Convey("When the route does not exist", func() {
			rec, _ := do(h, "/nope")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		h := api.NewServer(brokenDeps{Service: newService()}, nil).Router()

		Convey("Then an unavailable source maps to 503", func() {
			rec, env := do(h, "/global/emissions")
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(env.Error.Code, ShouldEqual, "source_unavailable")
			So(env.Error.Message, ShouldContainSubstring, "emissions")
		})

		Convey("Then other failures map to 500", func() {
			rec, env := do(h, "/global/eea")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(env.Error.Code, ShouldEqual, "internal")
		})

		Convey("Then a panic is recovered as 500", func() {
			rec, env := do(h, "/global/iso")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(env.Status, ShouldEqual, "error")
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given wrapped errors", t, func() {
		bad := api.Wrap("permits", model.InvalidInput("year", "must be an integer"))
		So(errors.Is(bad, api.ErrBadRequest), ShouldBeTrue)
		So(errors.Is(bad, model.ErrInvalidInput), ShouldBeTrue)
		So(bad.Error(), ShouldStartWith, "permits: ")

		down := api.WrapKind("cevs", api.ErrUnavailable, errors.New("timeout"))
		So(errors.Is(down, api.ErrUnavailable), ShouldBeTrue)

		kind := api.NewKind("search", api.ErrBadRequest, "q must not be empty")
		var op *api.OpError
		So(errors.As(kind, &op), ShouldBeTrue)
		So(op.Op, ShouldEqual, "search")
		So(strings.Contains(kind.Error(), "q must not be empty"), ShouldBeTrue)

		So(api.Wrap("noop", nil), ShouldBeNil)
	})
}
