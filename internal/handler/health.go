package handler

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

// BuildInfo describes the running binary. Values are injected with ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo fills GoVersion from the runtime.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// Pinger is a dependency whose reachability decides health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves /healthz and /api/version.
type HealthHandler struct {
	db     Pinger
	build  BuildInfo
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, build BuildInfo, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, build: build, logger: logger}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HandleHealth pings the store with a short deadline.
//
// HTTP: GET /healthz → 200 {"status":"ok"} or 503 {"status":"unhealthy"}
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Database: "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
}

// HandleVersion returns build information.
//
// HTTP: GET /api/version
func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.build)
}
