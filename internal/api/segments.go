package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
	"github.com/ignite/audience-engine/internal/pkg/httputil"
	"github.com/ignite/audience-engine/internal/segmentation"
)

// MembershipHistory lists a profile's membership rows, newest first.
// *postgres.SegmentationRepo implements it.
type MembershipHistory interface {
	MembershipHistory(ctx context.Context, profileID uuid.UUID) ([]domain.SegmentMembership, error)
}

// SegmentHandler serves membership history and rule authoring helpers.
type SegmentHandler struct {
	history MembershipHistory
}

// NewSegmentHandler creates a SegmentHandler.
func NewSegmentHandler(history MembershipHistory) *SegmentHandler {
	return &SegmentHandler{history: history}
}

// HandleMembershipHistory returns every membership row for the profile.
//
//	GET /profiles/{profileID}/memberships
func (h *SegmentHandler) HandleMembershipHistory(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.BadRequest(w, "invalid profile id")
		return
	}

	rows, err := h.history.MembershipHistory(r.Context(), profileID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.SegmentMembership{}
	}

	open := 0
	for _, m := range rows {
		if m.IsOpen() {
			open++
		}
	}
	httputil.OK(w, map[string]any{
		"profile_id":  profileID,
		"memberships": rows,
		"open":        open,
	})
}

// HandleValidate checks a rule tree and lists the parts that can never match.
//
//	POST /segments/validate
func (h *SegmentHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var group domain.ConditionGroup
	if !httputil.Decode(w, r, &group) {
		return
	}
	problems := segmentation.ValidateGroup(&group)
	if problems == nil {
		problems = []string{}
	}
	httputil.OK(w, map[string]any{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}

// HandleOperators returns operator metadata, optionally filtered by
// condition type.
//
//	GET /segments/operators?type=property
func (h *SegmentHandler) HandleOperators(w http.ResponseWriter, r *http.Request) {
	t := r.URL.Query().Get("type")
	if t == "" {
		httputil.OK(w, segmentation.GetOperatorMetadata())
		return
	}

	switch ct := domain.ConditionType(t); ct {
	case domain.ConditionTypeProperty, domain.ConditionTypeDate, domain.ConditionTypeEvent, domain.ConditionTypeSegment:
		httputil.OK(w, segmentation.GetAvailableOperators(ct))
	default:
		httputil.BadRequest(w, "unknown condition type "+t)
	}
}
