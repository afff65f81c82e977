package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/healthagent/internal/auth"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Store) {
	t.Helper()
	s := newTestStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, s)
	return r, s
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(auth.UserHeader, "1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMetricRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/health/metrics/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPost, "/api/health/metrics/",
		`{"weight_kg":70,"body_fat_percent":20,"bmi":22,"muscle_percent":40,"water_percent":55}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var m Metric
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, int64(1), m.UserID)
	assert.Equal(t, 70.0, m.WeightKg)

	w = doRequest(r, http.MethodGet, "/api/health/metrics/latest", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/api/health/metrics/history?limit=5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var list []Metric
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestCreateMetricRejectsRatio(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/health/metrics/",
		`{"weight_kg":70,"body_fat_percent":50,"bmi":22,"muscle_percent":60,"water_percent":55}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "体脂率与肌肉率之和不能超过 100%。", body["error"])
}

func TestPreferenceRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/api/health/preferences/", "")
	require.Equal(t, http.StatusOK, w.Code)
	var empty map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Nil(t, empty["target_weight_kg"])
	assert.Equal(t, float64(1), empty["user_id"])

	w = doRequest(r, http.MethodPut, "/api/health/preferences/", `{"target_weight_kg":64.44,"hydration_goal_liters":2.5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p Preference
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, 64.4, *p.TargetWeightKg)

	w = doRequest(r, http.MethodPut, "/api/health/preferences/", `{"sleep_goal_hours":20}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutesRequireUser(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health/metrics/latest", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
