package api

import (
	"net/http"
)

// handleListAlerts lists alerts; ?unresolved=true filters to open ones.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"
	jsonResponse(w, http.StatusOK, s.alerts.List(unresolvedOnly))
}

// handleAcknowledgeAlert acknowledges one alert.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := RequirePathParam(w, r, "id")
	if !ok {
		return
	}

	var body AcknowledgeBody
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if body.By == "" {
		body.By = "operator"
	}

	alert, err := s.alerts.Acknowledge(id, body.By)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, alert)
}

// handleResolveAlert resolves one alert.
func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := RequirePathParam(w, r, "id")
	if !ok {
		return
	}

	alert, err := s.alerts.Resolve(id)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, alert)
}

// handleDashboard returns the monitoring read model.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.monitor.BuildDashboard())
}
