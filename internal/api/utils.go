package api

import (
	"context"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/susu3304/lodestar-web/internal/lodestar"
	"github.com/susu3304/lodestar-web/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	logger.FromContext(ctx).Warn("sending JSON error", "status", status, "error", message)
	writeJSON(w, status, map[string]string{"error": message})
}

// writeUpstream relays an upstream JSON document. Upstream semantic errors
// keep their body and status; an HTML page answered with a success status is
// reported as a bad gateway.
func writeUpstream(w http.ResponseWriter, resp *lodestar.Response) {
	status := resp.Status
	if resp.HTML {
		status = htmlStatus(status)
	} else if status == 0 {
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(resp.Data)
}

func (a *API) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(r.Context(), w, http.StatusNotFound, "not found")
		return
	}
	http.NotFound(w, r)
}

func (a *API) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(r.Context(), w, http.StatusMethodNotAllowed, "Method not allowed")
}
