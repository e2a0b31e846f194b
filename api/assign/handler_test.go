package assign_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courier-dispatch/api/assign"
	"github.com/kilianp07/courier-dispatch/core/dispatch"
	"github.com/kilianp07/courier-dispatch/core/model"
)

type response struct {
	Assignments   []model.Assignment `json:"assignments"`
	Skipped       int                `json:"skipped"`
	SkippedOrders []model.Skip       `json:"skippedOrders"`
}

type failingAssigner struct{}

func (failingAssigner) Assign(context.Context, model.Snapshot) (dispatch.Run, error) {
	return dispatch.Run{}, errors.New("boom")
}

func buildRouter(t *testing.T, a assign.Assigner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if a == nil {
		engine, err := dispatch.NewEngine(dispatch.DefaultConfig())
		require.NoError(t, err)
		mgr, err := dispatch.NewAssignmentManager(engine, nil, nil, nil, nil)
		require.NoError(t, err)
		a = mgr
	}
	r := gin.New()
	assign.NewHandler(a, nil).Register(r)
	return r
}

func post(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/assign", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAssign_EndToEnd(t *testing.T) {
	r := buildRouter(t, nil)
	w := post(r, `{
		"orders": [{"id": "o1", "cookId": "c1"}],
		"cooks": [{"id": "c1", "lat": 40.0, "lng": -73.0}],
		"drivers": [{"id": "d1", "lat": 40.01, "lng": -73.0}, {"id": "d2", "lat": 41.0, "lng": -73.0}],
		"driverScores": {}
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))

	var out response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Assignments, 1)
	assert.Equal(t, "o1", out.Assignments[0].OrderID)
	assert.Equal(t, "d1", out.Assignments[0].CourierID)
	assert.InDelta(t, 41.104, out.Assignments[0].Score, 1e-3)
	assert.Equal(t, 0, out.Skipped)
}

func TestAssign_PartialAndSkipped(t *testing.T) {
	r := buildRouter(t, nil)
	w := post(r, `{
		"orders": [{"id": "o1", "cookId": "ghost"}, {"id": "o2", "cookId": "c1"}],
		"cooks": [{"id": "c1", "lat": 1, "lng": 1}],
		"drivers": [{"id": "d1", "lat": 1, "lng": 1}]
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	var out response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Assignments, 1)
	assert.Equal(t, "o2", out.Assignments[0].OrderID)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, []model.Skip{{OrderID: "o1", Reason: model.SkipPickupSiteNotFound}}, out.SkippedOrders)
}

func TestAssign_EmptyFleetReturnsEmptyArray(t *testing.T) {
	r := buildRouter(t, nil)
	w := post(r, `{"orders": [{"id": "o1", "cookId": "c1"}], "cooks": [{"id": "c1", "lat": 0, "lng": 0}], "drivers": []}`)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.JSONEq(t, `[]`, string(raw["assignments"]))
	assert.JSONEq(t, `1`, string(raw["skipped"]))
}

func TestAssign_InvalidPayload(t *testing.T) {
	r := buildRouter(t, nil)
	for _, body := range []string{
		`not json`,
		`{"orders": "o1"}`,
		`{"drivers": [{"id": "d1", "lat": "north"}]}`,
		``,
	} {
		w := post(r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error":"invalid payload"}`, w.Body.String(), body)
	}
}

func TestAssign_InternalError(t *testing.T) {
	r := buildRouter(t, failingAssigner{})
	w := post(r, `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	r := buildRouter(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"service":"dispatch"}`, w.Body.String())
}
