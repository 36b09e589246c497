package api

import (
	"fmt"
	"net/http"

	"github.com/bastionproject/bastion/internal/retention"
)

// handleLifecycleStats returns retention lifecycle statistics, or the
// policy for a single record class when ?class= is given.
func (s *Server) handleLifecycleStats(w http.ResponseWriter, r *http.Request) {
	if class := r.URL.Query().Get("class"); class != "" {
		policy, ok := retention.PolicyFor(class)
		if !ok {
			jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown record class %q", class))
			return
		}
		jsonResponse(w, http.StatusOK, policy)
		return
	}
	jsonResponse(w, http.StatusOK, s.enforcer.Stats())
}

// handleEnforceRetention runs one retention sweep.
func (s *Server) handleEnforceRetention(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.enforcer.Enforce())
}
