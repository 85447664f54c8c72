package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
	"github.com/ignite/audience-engine/internal/pkg/httputil"
	"github.com/ignite/audience-engine/internal/pkg/logger"
	"github.com/ignite/audience-engine/internal/worker"
)

const defaultWaitTimeout = 30 * time.Second

// Submitter queues reconcile passes. *worker.ReconcilePool implements it.
type Submitter interface {
	Submit(ctx context.Context, task worker.Task) (<-chan worker.Result, error)
}

// HookHandler serves the profile-changed and event-tracked hooks.
type HookHandler struct {
	pool        Submitter
	validator   *httputil.Validator
	log         *logger.Logger
	waitTimeout time.Duration
}

// NewHookHandler creates a HookHandler. waitTimeout bounds ?wait=true
// requests; zero means 30 seconds.
func NewHookHandler(pool Submitter, log *logger.Logger, waitTimeout time.Duration) *HookHandler {
	if log == nil {
		log = logger.Default()
	}
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return &HookHandler{
		pool:        pool,
		validator:   httputil.NewValidator(),
		log:         log,
		waitTimeout: waitTimeout,
	}
}

type profileChangedRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	ProfileID      string `json:"profile_id" validate:"required,uuid"`
}

type eventTrackedRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	ProfileID      string `json:"profile_id" validate:"required,uuid"`
	EventName      string `json:"event_name" validate:"required,max=255"`
}

type acceptedResponse struct {
	Status    string `json:"status"`
	Kind      string `json:"kind"`
	ProfileID string `json:"profile_id"`
}

type transitionResponse struct {
	ProfileID string      `json:"profile_id"`
	Entered   []uuid.UUID `json:"entered"`
	Exited    []uuid.UUID `json:"exited"`
}

// HandleProfileChanged queues a full pass over the organization's active
// segments.
//
//	POST /hooks/profile-changed
func (h *HookHandler) HandleProfileChanged(w http.ResponseWriter, r *http.Request) {
	var req profileChangedRequest
	if !h.validator.Bind(w, r, &req) {
		return
	}
	h.submit(w, r, worker.Task{
		Kind:           worker.TaskProfileChanged,
		OrganizationID: uuid.MustParse(req.OrganizationID),
		ProfileID:      uuid.MustParse(req.ProfileID),
	})
}

// HandleEventTracked queues a pass over the segments whose rules reference
// the tracked event.
//
//	POST /hooks/event-tracked
func (h *HookHandler) HandleEventTracked(w http.ResponseWriter, r *http.Request) {
	var req eventTrackedRequest
	if !h.validator.Bind(w, r, &req) {
		return
	}
	h.submit(w, r, worker.Task{
		Kind:           worker.TaskEventTracked,
		OrganizationID: uuid.MustParse(req.OrganizationID),
		ProfileID:      uuid.MustParse(req.ProfileID),
		EventName:      req.EventName,
	})
}

func (h *HookHandler) submit(w http.ResponseWriter, r *http.Request, task worker.Task) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	results, err := h.pool.Submit(r.Context(), task)
	if err != nil {
		h.submitError(w, task, err)
		return
	}

	if !wait {
		httputil.Accepted(w, acceptedResponse{
			Status:    "queued",
			Kind:      string(task.Kind),
			ProfileID: task.ProfileID.String(),
		})
		return
	}

	timer := time.NewTimer(h.waitTimeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.Err != nil {
			h.log.Error("reconcile failed", "kind", task.Kind, "profile_id", task.ProfileID, "error", res.Err)
			resp := httputil.ErrorResponse{Error: "reconcile failed", Code: "reconcile_failed"}
			if !res.Transition.IsEmpty() {
				resp.Details = toTransitionResponse(task.ProfileID, res.Transition)
			}
			httputil.JSON(w, http.StatusInternalServerError, resp)
			return
		}
		httputil.OK(w, toTransitionResponse(task.ProfileID, res.Transition))
	case <-timer.C:
		httputil.Error(w, http.StatusGatewayTimeout, "reconcile still running")
	case <-r.Context().Done():
	}
}

func (h *HookHandler) submitError(w http.ResponseWriter, task worker.Task, err error) {
	switch {
	case errors.Is(err, worker.ErrInvalidTask):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, worker.ErrPoolClosed):
		httputil.ServiceUnavailable(w, "reconcile pool is not running")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.log.Warn("reconcile queue full, request gave up", "kind", task.Kind, "profile_id", task.ProfileID)
		httputil.ServiceUnavailable(w, "reconcile queue is full")
	default:
		httputil.InternalError(w, err)
	}
}

func toTransitionResponse(profileID uuid.UUID, t *domain.Transition) transitionResponse {
	resp := transitionResponse{
		ProfileID: profileID.String(),
		Entered:   []uuid.UUID{},
		Exited:    []uuid.UUID{},
	}
	if t != nil {
		if t.Entered != nil {
			resp.Entered = t.Entered
		}
		if t.Exited != nil {
			resp.Exited = t.Exited
		}
	}
	return resp
}
