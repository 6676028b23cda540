package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/store"
	"github.com/aussiebroadwan/identity/pkg/authsdk"
	"github.com/aussiebroadwan/identity/pkg/httpx"
)

// LivezHandler always answers 200 while the process is serving.
//
//	@Summary	Liveness
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	authsdk.HealthResponse
//	@Router		/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler answers 503 while the database is unreachable.
//
//	@Summary	Readiness
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	authsdk.HealthResponse
//	@Failure	503	{object}	authsdk.HealthResponse	"Database unreachable"
//	@Router		/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{Database: "ok"}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
