package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/patchwatch/patchwatch/models"
)

// buildHandler wires all REST routes onto a new ServeMux.
// Uses Go 1.22+ method-prefixed patterns ("GET /path", "POST /path").
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", gw.handleHealth)
	mux.HandleFunc("POST /api/scan", gw.handleScan)
	mux.HandleFunc("GET /api/scans", gw.handleListScans)
	mux.HandleFunc("GET /api/scans/{id}", gw.handleGetScan)

	return mux
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- handlers ---

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	gw.mu.RLock()
	lastScan := gw.lastScan
	uptime := int64(time.Since(gw.startedAt).Seconds())
	gw.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": uptime,
		"last_scan_at":   lastScan,
	})
}

type scanRequest struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Provider string `json:"provider,omitempty"`
}

// handleScan runs a scan synchronously and returns the report.
// 200 covers both secure and vulnerable outcomes; a repository with no
// recognized manifests is 404; processing failures are 500.
func (gw *Gateway) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Owner == "" || req.Repo == "" {
		writeError(w, http.StatusBadRequest, "owner and repo are required")
		return
	}

	report, err := gw.runScan(r.Context(), req.Provider, req.Owner, req.Repo)
	if err != nil {
		slog.Error("scan failed", "owner", req.Owner, "repo", req.Repo, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if report.Status == models.StatusWarning {
		writeJSON(w, http.StatusNotFound, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (gw *Gateway) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := gw.store.RecentScans(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []models.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": recs, "count": len(recs)})
}

func (gw *Gateway) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	rec, err := gw.store.ScanByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	report, err := gw.store.Report(rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
