package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
)

func init() { _ = logger.Init() }

// fakeSession records calls and returns scripted errors.
type fakeSession struct {
	responded  []model.Symbol
	respondErr error
	pauseErr   error
	contErr    error
	summary    model.SessionSummary
	hasSummary bool
}

func (f *fakeSession) Respond(_ context.Context, sym model.Symbol) error {
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responded = append(f.responded, sym)
	return nil
}

func (f *fakeSession) Pause() error    { return f.pauseErr }
func (f *fakeSession) Continue() error { return f.contErr }

func (f *fakeSession) Summary() (model.SessionSummary, bool) {
	return f.summary, f.hasSummary
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"phase": "running", "level": 3}
}

func newTestServer(sess *fakeSession) *httptest.Server {
	mux := http.NewServeMux()
	NewServer(sess, fakeStats{}).Register(mux)
	return httptest.NewServer(mux)
}

func TestPostResponse(t *testing.T) {
	Convey("Given a running session behind the API", t, func() {
		sess := &fakeSession{}
		ts := newTestServer(sess)
		defer ts.Close()

		Convey("a valid response is accepted and forwarded", func() {
			resp, err := http.Post(ts.URL+"/responses", "application/json",
				strings.NewReader(`{"symbol":"left"}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			So(sess.responded, ShouldResemble, []model.Symbol{model.SymbolLeft})
		})

		Convey("symbol casing and padding are normalized", func() {
			resp, err := http.Post(ts.URL+"/responses", "application/json",
				strings.NewReader(`{"symbol":" Right "}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			So(sess.responded, ShouldResemble, []model.Symbol{model.SymbolRight})
		})

		Convey("an unknown symbol is rejected with 400", func() {
			resp, err := http.Post(ts.URL+"/responses", "application/json",
				strings.NewReader(`{"symbol":"up"}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(sess.responded, ShouldBeEmpty)
		})

		Convey("malformed JSON is rejected with 400", func() {
			resp, err := http.Post(ts.URL+"/responses", "application/json",
				strings.NewReader(`{"symbol":`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET is not allowed", func() {
			resp, err := http.Get(ts.URL + "/responses")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("a session error maps to 409", func() {
			sess.respondErr = errors.New("session not started")

			resp, err := http.Post(ts.URL+"/responses", "application/json",
				strings.NewReader(`{"symbol":"left"}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestSessionControl(t *testing.T) {
	Convey("Given the session control endpoints", t, func() {
		sess := &fakeSession{}
		ts := newTestServer(sess)
		defer ts.Close()

		Convey("pause acknowledges with the new state", func() {
			resp, err := http.Post(ts.URL+"/session/pause", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var ack ackResponse
			So(json.NewDecoder(resp.Body).Decode(&ack), ShouldBeNil)
			So(ack.Status, ShouldEqual, "paused")
		})

		Convey("an invalid transition maps to 409", func() {
			sess.contErr = errors.New("invalid state transition")

			resp, err := http.Post(ts.URL+"/session/continue", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("summary is 404 before the session completes", func() {
			resp, err := http.Get(ts.URL + "/session/summary")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("summary is served once available", func() {
			sess.hasSummary = true
			sess.summary = model.SessionSummary{SessionID: "abc", TotalTasks: 12, Accuracy: 0.75}

			resp, err := http.Get(ts.URL + "/session/summary")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got model.SessionSummary
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.SessionID, ShouldEqual, "abc")
			So(got.TotalTasks, ShouldEqual, 12)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the observability endpoints", t, func() {
		ts := newTestServer(&fakeSession{})
		defer ts.Close()

		Convey("stats returns the provider snapshot as JSON", func() {
			resp, err := http.Get(ts.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var got map[string]interface{}
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got["phase"], ShouldEqual, "running")
		})

		Convey("stats rejects non-GET methods", func() {
			resp, err := http.Post(ts.URL+"/stats", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("healthz serves the metrics registry", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
