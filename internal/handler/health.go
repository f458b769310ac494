package handler

import (
	"context"
	"net/http"
)

// Pinger is anything that can say whether the backend takes calls.
type Pinger interface {
	Ready(ctx context.Context) bool
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// HandleHealth reports liveness. The process is alive whenever it answers,
// so the status is always 200; the backend field shows whether pages can
// load data yet.
//
// HTTP: GET /healthz
func HandleHealth(backend Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Backend: "connecting"}
		if backend.Ready(r.Context()) {
			resp.Backend = "ready"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
