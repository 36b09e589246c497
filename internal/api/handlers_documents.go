package api

import (
	"net/http"

	"github.com/bastionproject/bastion/internal/backup"
)

// handleDocumentBackup kicks off a document corpus backup.
func (s *Server) handleDocumentBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.docProducer.Start(); err != nil {
		serviceError(w, err)
		return
	}

	jsonResponse(w, http.StatusAccepted, AcceptedDTO{
		Status:  "accepted",
		Message: "document backup started",
	})
}

// handleListDocumentBackups lists document backup records, newest first.
func (s *Server) handleListDocumentBackups(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List()
	if err != nil {
		serviceError(w, err)
		return
	}

	filtered := make([]*backup.Record, 0, len(records))
	for _, rec := range records {
		if rec.Kind() == backup.KindDocuments {
			filtered = append(filtered, rec)
		}
	}
	jsonResponse(w, http.StatusOK, filtered)
}
