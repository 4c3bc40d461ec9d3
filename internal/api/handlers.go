package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/domain"
	"github.com/readmit-risk-server/internal/followup"
	"github.com/readmit-risk-server/internal/service"
)

// assessRequest is the JSON body of an assessment call. Field values are
// free-form scalars; the engine copes with anything.
type assessRequest struct {
	Condition   string         `json:"condition" binding:"required"`
	Fields      map[string]any `json:"fields"`
	PatientID   string         `json:"patient_id"`
	PatientName string         `json:"patient_name"`
	Unit        string         `json:"unit"`
}

// simulateRequest is the JSON body of a staffing simulation call.
type simulateRequest struct {
	Cohort []struct {
		Tier      string `json:"tier" binding:"required"`
		Condition string `json:"condition"`
	} `json:"cohort"`
	SimulationDate string `json:"simulation_date"`
	Unit           string `json:"unit"`
}

type completeRequest struct {
	Notes string `json:"notes"`
}

// assessResponse pairs the assessment with an echo of the submitted
// clinical values so report renderers need no second lookup.
type assessResponse struct {
	Assessment *domain.RiskAssessment `json:"assessment"`
	Inputs     map[string]any         `json:"inputs,omitempty"`
}

func (s *Server) respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   domain.NewAPIError(code, message, details, c.GetString("correlation_id")),
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// handleAssess runs one observation through the full pipeline and persists
// the result and its follow-up task.
func (s *Server) handleAssess(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "malformed request body", err.Error())
		return
	}

	condition, err := domain.ParseConditionType(req.Condition)
	if err != nil {
		s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeUnknownCondition, "unknown condition type", req.Condition)
		return
	}

	obs := &domain.PatientObservation{
		Condition:   condition,
		Fields:      req.Fields,
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Unit:        req.Unit,
	}

	assessment, err := s.assessor.Assess(c.Request.Context(), obs)
	if err != nil {
		if service.IsClientError(err) {
			s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeUnknownCondition, "unknown condition type", err.Error())
			return
		}
		s.log.WithField("error", err).Error("Assessment failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "assessment failed", "")
		return
	}

	s.recent.Add(assessment.ID, assessment)

	if s.assessments != nil {
		if err := s.assessments.Save(c.Request.Context(), assessment); err != nil {
			// The assessment itself succeeded; persistence trouble is an
			// observability signal, not a user-visible failure.
			s.log.WithFields(logrus.Fields{
				"assessment_id": assessment.ID,
				"error":         err,
			}).Error("Failed to persist assessment")
		}
	}

	if s.followups != nil {
		if err := s.followups.Save(c.Request.Context(), followup.FromAssessment(assessment)); err != nil {
			s.log.WithFields(logrus.Fields{
				"assessment_id": assessment.ID,
				"error":         err,
			}).Error("Failed to schedule follow-up")
		}
	}

	s.respondSuccess(c, http.StatusOK, assessResponse{Assessment: assessment, Inputs: req.Fields})
}

// handleGetAssessment retrieves a completed assessment by ID, serving from
// the in-process cache when fresh.
func (s *Server) handleGetAssessment(c *gin.Context) {
	id := c.Param("id")

	if assessment, ok := s.recent.Get(id); ok {
		s.respondSuccess(c, http.StatusOK, assessment)
		return
	}

	if s.assessments == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "assessment not found", id)
		return
	}

	assessment, err := s.assessments.GetByID(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "assessment not found", id)
		return
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to load assessment", "")
		return
	}

	s.recent.Add(assessment.ID, assessment)
	s.respondSuccess(c, http.StatusOK, assessment)
}

// handleListAssessments lists stored assessments, optionally by unit.
func (s *Server) handleListAssessments(c *gin.Context) {
	if s.assessments == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeDatabaseError, "assessment history is not enabled", "")
		return
	}

	limit, offset := pagination(c)
	list, err := s.assessments.ListByUnit(c.Request.Context(), c.Query("unit"), limit, offset)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to list assessments", "")
		return
	}

	s.respondSuccess(c, http.StatusOK, gin.H{
		"assessments": list,
		"count":       len(list),
	})
}

// handleSimulateStaffing aggregates a tier-labeled cohort into a resource
// plan and pushes the summary to live feed subscribers.
func (s *Server) handleSimulateStaffing(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "malformed request body", err.Error())
		return
	}

	cohort := make([]domain.CohortMember, 0, len(req.Cohort))
	for _, member := range req.Cohort {
		tier, err := domain.ParseRiskTier(member.Tier)
		if err != nil {
			s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeInvalidInput, "invalid risk tier", member.Tier)
			return
		}
		entry := domain.CohortMember{Tier: tier}
		if member.Condition != "" {
			condition, err := domain.ParseConditionType(member.Condition)
			if err != nil {
				s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeUnknownCondition, "unknown condition type", member.Condition)
				return
			}
			entry.Condition = condition
		}
		cohort = append(cohort, entry)
	}

	summary := s.simulator.Simulate(cohort, req.SimulationDate, req.Unit)
	s.hub.broadcast(summary)

	s.respondSuccess(c, http.StatusOK, summary)
}

// handleListFollowups lists follow-up tasks; ?pending=true restricts to
// uncompleted ones ordered by due date.
func (s *Server) handleListFollowups(c *gin.Context) {
	if s.followups == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeDatabaseError, "follow-up tracking is not enabled", "")
		return
	}

	limit, offset := pagination(c)

	var (
		records []*followup.Record
		err     error
	)
	if c.Query("pending") == "true" {
		records, err = s.followups.ListPending(c.Request.Context(), limit, offset)
	} else {
		records, err = s.followups.List(c.Request.Context(), limit, offset)
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to list follow-ups", "")
		return
	}

	s.respondSuccess(c, http.StatusOK, gin.H{
		"followups": records,
		"count":     len(records),
	})
}

// handleCompleteFollowup marks a follow-up contact as done.
func (s *Server) handleCompleteFollowup(c *gin.Context) {
	if s.followups == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeDatabaseError, "follow-up tracking is not enabled", "")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid follow-up id", c.Param("id"))
		return
	}

	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "malformed request body", err.Error())
			return
		}
	}

	if err := s.followups.Complete(c.Request.Context(), id, req.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.respondError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "follow-up not found", c.Param("id"))
			return
		}
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to complete follow-up", "")
		return
	}

	s.respondSuccess(c, http.StatusOK, gin.H{"id": id, "completed": true})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
