package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bastionproject/bastion/internal/logging"
)

// handleCreatePlan creates a disaster-recovery plan.
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var body CreatePlanBody
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := s.orchestrator.CreatePlan(body.ToPlan())
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusCreated, plan)
}

// handleListPlans lists all disaster-recovery plans.
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.orchestrator.ListPlans())
}

// handleGetPlan returns one disaster-recovery plan.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := RequirePathParam(w, r, "id")
	if !ok {
		return
	}

	plan, err := s.orchestrator.GetPlan(id)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, plan)
}

// handleFailover stages and executes a managed failover.
func (s *Server) handleFailover(w http.ResponseWriter, r *http.Request) {
	var body FailoverBody
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.PlanID == "" || body.TargetRegion == "" {
		jsonError(w, http.StatusBadRequest, "planId and targetRegion are required")
		return
	}

	op, err := s.orchestrator.ManagedFailover(body.PlanID, body.TargetRegion)
	if err != nil {
		serviceError(w, err)
		return
	}

	go func() {
		if err := s.orchestrator.Execute(context.Background(), op.ID); err != nil {
			logging.Error("failover failed",
				logging.String("recoveryId", op.ID), logging.Err(err))
		}
	}()

	jsonResponse(w, http.StatusAccepted, op)
}

// handlePointInTimeRecovery stages and executes a point-in-time recovery.
func (s *Server) handlePointInTimeRecovery(w http.ResponseWriter, r *http.Request) {
	var body PITRBody
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := time.Parse(time.RFC3339, body.TargetTimestamp)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "targetTimestamp must be RFC 3339")
		return
	}

	op, err := s.orchestrator.PointInTimeRecovery(target, body.BackupID, body.TargetEnvironment)
	if err != nil {
		serviceError(w, err)
		return
	}

	go func() {
		if err := s.orchestrator.Execute(context.Background(), op.ID); err != nil {
			logging.Error("point-in-time recovery failed",
				logging.String("recoveryId", op.ID), logging.Err(err))
		}
	}()

	jsonResponse(w, http.StatusAccepted, RecoveryStartedDTO{
		RecoveryID:          op.ID,
		BackupID:            op.BackupID,
		StartTime:           op.StartTime,
		EstimatedDurationMS: op.EstimatedDuration,
	})
}

// handleRecoveryTest kicks off a recovery drill for a plan.
func (s *Server) handleRecoveryTest(w http.ResponseWriter, r *http.Request) {
	planID, ok := RequirePathParam(w, r, "planId")
	if !ok {
		return
	}
	if _, err := s.orchestrator.GetPlan(planID); err != nil {
		serviceError(w, err)
		return
	}

	go func() {
		if _, err := s.orchestrator.RunTest(context.Background(), planID); err != nil {
			logging.Error("recovery drill failed",
				logging.String("planId", planID), logging.Err(err))
		}
	}()

	jsonResponse(w, http.StatusAccepted, AcceptedDTO{
		Status:  "accepted",
		Message: "recovery drill started",
		ID:      planID,
	})
}

// handleRecoveryStatus returns aggregate disaster-recovery state.
func (s *Server) handleRecoveryStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.orchestrator.GetStatus())
}
