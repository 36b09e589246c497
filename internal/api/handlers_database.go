package api

import (
	"net/http"

	"github.com/bastionproject/bastion/internal/backup"
)

// handleFullBackup kicks off a full database backup.
func (s *Server) handleFullBackup(w http.ResponseWriter, r *http.Request) {
	var body FullBackupBody
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.dbProducer.StartFull(body.Tags); err != nil {
		serviceError(w, err)
		return
	}

	jsonResponse(w, http.StatusAccepted, AcceptedDTO{
		Status:  "accepted",
		Message: "full backup started",
	})
}

// handleIncrementalBackup kicks off an incremental database backup.
func (s *Server) handleIncrementalBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.dbProducer.StartIncremental(); err != nil {
		serviceError(w, err)
		return
	}

	jsonResponse(w, http.StatusAccepted, AcceptedDTO{
		Status:  "accepted",
		Message: "incremental backup started",
	})
}

// handleListBackups lists database backup records, newest first.
func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List()
	if err != nil {
		serviceError(w, err)
		return
	}

	filtered := make([]*backup.Record, 0, len(records))
	for _, rec := range records {
		if rec.Kind() != backup.KindDocuments {
			filtered = append(filtered, rec)
		}
	}
	jsonResponse(w, http.StatusOK, filtered)
}

// handleGetBackup returns one backup record.
func (s *Server) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	id, ok := RequirePathParam(w, r, "id")
	if !ok {
		return
	}

	rec, err := s.store.Get(id)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// handleStatistics returns aggregate backup statistics.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List()
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, backup.ComputeStats(records))
}
