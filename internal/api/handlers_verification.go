package api

import (
	"net/http"
)

// handleVerifyOne verifies a single backup and returns the integrity check.
func (s *Server) handleVerifyOne(w http.ResponseWriter, r *http.Request) {
	id, ok := RequirePathParam(w, r, "id")
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, s.verifier.VerifyOne(id))
}

// handleVerifyAll verifies every backup due for verification.
func (s *Server) handleVerifyAll(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.verifier.VerifyDue())
}

// handleVerificationReport returns the last persisted integrity check for
// a backup.
func (s *Server) handleVerificationReport(w http.ResponseWriter, r *http.Request) {
	id, ok := RequirePathParam(w, r, "id")
	if !ok {
		return
	}

	check, err := s.verifier.Report(id)
	if err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, check)
}
