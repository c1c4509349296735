package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venueflow/internal/allocation"
	"venueflow/internal/approval"
	"venueflow/internal/event"
	"venueflow/internal/housekeeping"
	"venueflow/internal/metrics"
	"venueflow/internal/notify"
	"venueflow/internal/store/memstore"
	"venueflow/internal/venue"
	"venueflow/pkg/config"
)

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()

	st := memstore.New()
	memstore.SeedCampus(st)
	st.AddVenue(venue.Venue{ID: "v-1", Name: "Main Hall", Capacity: 100, IsActive: true})
	start := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Hour)
	st.AddEvent(memstore.NewEvent("ev-1", event.StageDraft, start, 2*time.Hour, 40))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := notify.NewDispatcher(notify.NotifierFunc(notifyNothing), m)
	eng := allocation.NewEngine(st, m)

	h := NewRouter(Dependencies{
		Cfg:          config.Config{AppEnv: "test"},
		Approvals:    approval.NewService(st, eng, d, m),
		Engine:       eng,
		Housekeeping: housekeeping.NewService(st, d, m),
		Gatherer:     reg,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, st
}

func do(t *testing.T, srv *httptest.Server, method, path, userID, body string) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func errorCode(t *testing.T, b []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(b, &env), string(b))
	return env.Error.Code
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, b := do(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(b))
}

func TestV1_RequiresActor(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, b := do(t, srv, http.MethodPost, "/v1/events/ev-1/submit", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, b))
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	srv, st := newTestServer(t)

	resp, b := do(t, srv, http.MethodPost, "/v1/events/ev-1/submit", memstore.CoordinatorID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(b))

	// A department head of another department may not act.
	resp, b = do(t, srv, http.MethodPost, "/v1/events/ev-1/approvals", memstore.OtherHodID, `{"action":"Approved"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "PERMISSION_DENIED", errorCode(t, b))
	ev, _ := st.Event("ev-1")
	assert.Equal(t, event.StageSubmitted, ev.Stage)

	resp, b = do(t, srv, http.MethodPost, "/v1/events/ev-1/approvals", memstore.HodID, `{"action":"Approved","comments":"ok"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(b))
	var out approval.Outcome
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, event.StageHodApproved, out.Event.Stage)
	assert.Nil(t, out.Allocation)

	resp, b = do(t, srv, http.MethodGet, "/v1/events/ev-1/approvals", memstore.HodID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(b, &hist))
	assert.Len(t, hist.Items, 2)

	resp, b = do(t, srv, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `venueflow_approval_transitions_total{action="Approved"} 1`)
}

func TestProcess_RejectsUnknownAction(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, b := do(t, srv, http.MethodPost, "/v1/events/ev-1/approvals", memstore.HodID, `{"action":"Escalate"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, b))
}

func TestAllocate_NotReadyBeforeHeadApproval(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, b := do(t, srv, http.MethodPost, "/v1/events/ev-1/allocate", memstore.InstitutionHeadID, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "NOT_READY", errorCode(t, b))
}

func TestFeasibility(t *testing.T) {
	srv, st := newTestServer(t)
	before := st.Writes()

	resp, b := do(t, srv, http.MethodGet, "/v1/events/ev-1/feasibility", memstore.CoordinatorID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(b))
	var rep allocation.Report
	require.NoError(t, json.Unmarshal(b, &rep))
	assert.True(t, rep.Feasible)
	require.NotNil(t, rep.Venue)
	assert.Equal(t, "v-1", rep.Venue.ID)
	assert.Equal(t, before, st.Writes())

	resp, b = do(t, srv, http.MethodGet, "/v1/events/missing/feasibility", memstore.CoordinatorID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, b))
}

func TestHousekeepingRelease_NotReadyBeforeEnd(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, b := do(t, srv, http.MethodPost, "/v1/housekeeping/events/ev-1/release", memstore.InstitutionHeadID, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "NOT_READY", errorCode(t, b))
}

func notifyNothing(_ context.Context, _ notify.Notification) error { return nil }
