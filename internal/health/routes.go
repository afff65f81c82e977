package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/healthagent/internal/auth"
)

// RegisterRoutes mounts metric and preference endpoints under /api/health.
// Every route requires an X-User-ID header.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/health/metrics", func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/", handleCreateMetric(store))
		r.Get("/latest", handleLatestMetric(store))
		r.Get("/history", handleMetricHistory(store))
	})
	r.Route("/api/health/preferences", func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/", handleGetPreference(store))
		r.Put("/", handlePutPreference(store))
	})
}

func handleCreateMetric(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		var in MetricInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		m, err := store.CreateMetric(r.Context(), userID, in)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func handleLatestMetric(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		m, err := store.LatestMetric(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if m == nil {
			writeError(w, http.StatusNotFound, "尚无健康指标记录。")
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleMetricHistory(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		limit := 30
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}

		metrics, err := store.ListMetrics(r.Context(), userID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if metrics == nil {
			metrics = []Metric{}
		}
		writeJSON(w, http.StatusOK, metrics)
	}
}

func handleGetPreference(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		p, err := store.GetPreference(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if p == nil {
			p = &Preference{UserID: userID}
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePutPreference(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		var in PreferenceInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p, err := store.UpsertPreference(r.Context(), userID, in)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// writeStoreError maps validation failures to 400 and everything else to 500.
func writeStoreError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
