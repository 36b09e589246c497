package api

import (
	"net/http"
)

// handleHealth returns a simple health check response, including
// scheduler job state when the scheduler is running.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{"status": "ok"}
	if s.sched != nil {
		payload["jobs"] = s.sched.Status()
	}
	jsonResponse(w, http.StatusOK, payload)
}
