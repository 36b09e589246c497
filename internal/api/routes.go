package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all API routes using Go 1.22+ method-based routing.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health & metrics
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Database backups
	mux.HandleFunc("POST /api/database/backup/full", s.handleFullBackup)
	mux.HandleFunc("POST /api/database/backup/incremental", s.handleIncrementalBackup)
	mux.HandleFunc("GET /api/database/backups", s.handleListBackups)
	mux.HandleFunc("GET /api/database/backups/{id}", s.handleGetBackup)
	mux.HandleFunc("GET /api/database/statistics", s.handleStatistics)

	// Document backups
	mux.HandleFunc("POST /api/documents/backup", s.handleDocumentBackup)
	mux.HandleFunc("GET /api/documents/backups", s.handleListDocumentBackups)
	mux.HandleFunc("POST /api/documents/backups/{id}/verify", s.handleVerifyOne)

	// Verification
	mux.HandleFunc("POST /api/verification/verify-all", s.handleVerifyAll)
	mux.HandleFunc("POST /api/verification/verify/{id}", s.handleVerifyOne)
	mux.HandleFunc("GET /api/verification/{id}", s.handleVerificationReport)

	// Retention
	mux.HandleFunc("GET /api/retention/lifecycle-stats", s.handleLifecycleStats)
	mux.HandleFunc("POST /api/retention/enforce-policies", s.handleEnforceRetention)

	// Disaster recovery
	mux.HandleFunc("POST /api/disaster-recovery/plans", s.handleCreatePlan)
	mux.HandleFunc("GET /api/disaster-recovery/plans", s.handleListPlans)
	mux.HandleFunc("GET /api/disaster-recovery/plans/{id}", s.handleGetPlan)
	mux.HandleFunc("POST /api/disaster-recovery/failover", s.handleFailover)
	mux.HandleFunc("POST /api/disaster-recovery/point-in-time-recovery", s.handlePointInTimeRecovery)
	mux.HandleFunc("POST /api/disaster-recovery/test/{planId}", s.handleRecoveryTest)
	mux.HandleFunc("GET /api/disaster-recovery/status", s.handleRecoveryStatus)

	// Monitoring
	mux.HandleFunc("GET /api/monitoring/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /api/monitoring/alerts/{id}/acknowledge", s.handleAcknowledgeAlert)
	mux.HandleFunc("POST /api/monitoring/alerts/{id}/resolve", s.handleResolveAlert)
	mux.HandleFunc("GET /api/monitoring/dashboard", s.handleDashboard)
}
