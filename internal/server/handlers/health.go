package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// healthManager tracks process identity for the health and version
// endpoints. Readiness is trivially true once serving: the store is opened
// and migrated before the listener starts.
type healthManager struct {
	mu        sync.RWMutex
	version   string
	startedAt time.Time
}

var health = &healthManager{startedAt: time.Now().UTC()}

// InitHealthManager records the build version reported by /version.
func InitHealthManager(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
	health.startedAt = time.Now().UTC()
}

func (h *healthManager) snapshot() (string, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version, h.startedAt
}

func writeHealth(w http.ResponseWriter, status string) {
	_, startedAt := health.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
	})
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, "healthy")
}

func HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, "live")
}

func HealthReady(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, "ready")
}

func HealthStartup(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, "started")
}

func Version(w http.ResponseWriter, _ *http.Request) {
	version, _ := health.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"version": version})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
