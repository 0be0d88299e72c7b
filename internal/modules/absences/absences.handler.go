package absences

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/middleware"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/queue"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/utils"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/validator"
)

const SourceHTTP = "http"

// TaskReader is the read side of the delayed queue exposed to operators.
type TaskReader interface {
	List(ctx context.Context, status string, limit, offset int) ([]queue.Task, error)
	Count(ctx context.Context, status string) (int64, error)
	Get(ctx context.Context, uuid string) (queue.Task, error)
}

// Handler handles HTTP requests for session events and reconciliations
type Handler struct {
	detector   EventSink
	reconciler Reconciler
	tasks      TaskReader
	validator  *validator.Validator
	audit      *observability.AuditLogger
}

func NewHandler(detector EventSink, reconciler Reconciler, tasks TaskReader, v *validator.Validator, audit *observability.AuditLogger) *Handler {
	return &Handler{
		detector:   detector,
		reconciler: reconciler,
		tasks:      tasks,
		validator:  v,
		audit:      audit,
	}
}

// ReceiveSessionEvent godoc
// @Summary Notify a session write
// @Description Called by the course/exam application after a course or exam is created or updated. Scheduling is best-effort: a well-formed event is always accepted.
// @Tags Session Events
// @Accept json
// @Produce json
// @Param body body SessionEvent true "Session event"
// @Success 202 {object} utils.Response{data=EventAccepted}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Security     Bearer
// @Router /session-events [post]
func (h *Handler) ReceiveSessionEvent(c *gin.Context) {
	var ev SessionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		utils.Error(c, errors.Wrap(err, errors.ErrCodeBadRequest, "Invalid request body"))
		return
	}

	if err := h.validator.Validate(ev); err != nil {
		validationErrors := validator.TranslateValidationErrors(err)
		utils.Error(c, errors.WithDetails(errors.ErrCodeValidation, "Validation failed", validationErrors))
		return
	}

	c.Set(string(observability.SessionRefKey), ev.Ref().String())
	ev.Source = SourceHTTP
	h.detector.Handle(c.Request.Context(), ev)

	utils.Success(c, http.StatusAccepted, EventAccepted{Accepted: true, Session: ev.Ref().String()})
}

// Reconcile godoc
// @Summary Reconcile a session now (Admin only)
// @Description Runs absence reconciliation for one session immediately and returns the outcome counts
// @Tags Reconciliations
// @Produce json
// @Param kind path string true "Session kind" Enums(course, exam)
// @Param id path int true "Session ID"
// @Success 200 {object} utils.Response{data=Stats}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 503 {object} utils.Response
// @Security     Bearer
// @Router /reconciliations/{kind}/{id} [post]
func (h *Handler) Reconcile(c *gin.Context) {
	ref, err := parseSessionRef(c.Param("kind"), c.Param("id"))
	if err != nil {
		utils.Error(c, err)
		return
	}

	principal, _ := middleware.GetCurrentPrincipal(c)
	ctx := WithTrigger(c.Request.Context(), TriggerOperator)

	stats, err := h.reconciler.CreateAbsencesForSession(ctx, ref.ID, ref.Kind)

	h.audit.LogSecurityEvent(ctx, observability.SecurityEvent{
		Type:      "reconciliation",
		Action:    "manual_run",
		Principal: principal,
		Resource:  ref.String(),
		Success:   err == nil,
		IPAddress: c.ClientIP(),
	})

	if err != nil {
		utils.Error(c, err)
		return
	}

	utils.Success(c, http.StatusOK, stats)
}

// ListTasks godoc
// @Summary List reconciliation tasks (Admin only)
// @Description Lists delayed reconciliation tasks, newest first
// @Tags Reconciliations
// @Produce json
// @Param status query string false "Status filter" Enums(pending, running, succeeded, failed, superseded)
// @Param limit query int false "Page size" default(20) minimum(1) maximum(100)
// @Param page query int false "Page number" default(1) minimum(1)
// @Success 200 {object} utils.Response{data=ListTasksResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Security     Bearer
// @Router /reconciliation-tasks [get]
func (h *Handler) ListTasks(c *gin.Context) {
	req := ListTasksRequest{Page: 1, Limit: 20}
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.Error(c, errors.Wrap(err, errors.ErrCodeBadRequest, "Invalid query parameters"))
		return
	}

	if err := h.validator.Validate(req); err != nil {
		validationErrors := validator.TranslateValidationErrors(err)
		utils.Error(c, errors.WithDetails(errors.ErrCodeValidation, "Validation failed", validationErrors))
		return
	}

	ctx := c.Request.Context()
	offset := (req.Page - 1) * req.Limit
	tasks, err := h.tasks.List(ctx, req.Status, req.Limit, offset)
	if err != nil {
		utils.Error(c, err)
		return
	}
	total, err := h.tasks.Count(ctx, req.Status)
	if err != nil {
		utils.Error(c, err)
		return
	}

	if tasks == nil {
		tasks = []queue.Task{}
	}
	utils.Success(c, http.StatusOK, ListTasksResponse{
		Tasks: tasks,
		Total: total,
		Page:  req.Page,
		Limit: req.Limit,
	})
}

// GetTask godoc
// @Summary Get a reconciliation task (Admin only)
// @Tags Reconciliations
// @Produce json
// @Param uuid path string true "Task UUID"
// @Success 200 {object} utils.Response{data=queue.Task}
// @Failure 401 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Security     Bearer
// @Router /reconciliation-tasks/{uuid} [get]
func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, http.StatusOK, task)
}

func parseSessionRef(kind, id string) (SessionRef, error) {
	k := sqlc.AbsencesSessionKind(kind)
	if k != sqlc.AbsencesSessionKindCourse && k != sqlc.AbsencesSessionKindExam {
		return SessionRef{}, ErrInvalidSessionKind
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return SessionRef{}, ErrInvalidSessionID
	}
	return SessionRef{Kind: k, ID: n}, nil
}
