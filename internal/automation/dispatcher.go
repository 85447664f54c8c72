package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
	"github.com/ignite/audience-engine/internal/pkg/logger"
)

// FlowRepository loads the flows a transition may start.
type FlowRepository interface {
	// ActiveFlowsByTrigger returns active flows of the organization whose
	// trigger type is one of types.
	ActiveFlowsByTrigger(ctx context.Context, orgID uuid.UUID, types ...domain.TriggerType) ([]domain.Flow, error)
}

// Enqueuer delivers a trigger job to the flow executor's queue. Delivery is
// at-least-once; a nil error means the job is durably queued.
type Enqueuer interface {
	Enqueue(ctx context.Context, job domain.TriggerJob) error
}

// Dispatcher matches membership transitions against segment-triggered flows.
type Dispatcher struct {
	flows FlowRepository
	queue Enqueuer
	log   *logger.Logger
	now   func() time.Time
}

// NewDispatcher creates a dispatcher. A nil logger uses the package default.
func NewDispatcher(flows FlowRepository, queue Enqueuer, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{flows: flows, queue: queue, log: log, now: time.Now}
}

// Dispatch enqueues one job per active flow whose trigger segment is in
// entered (segment_entry) or exited (segment_exit). Every match is attempted;
// enqueue failures are joined and returned. Nothing is retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID, profileID uuid.UUID, entered, exited []uuid.UUID) error {
	if len(entered) == 0 && len(exited) == 0 {
		return nil
	}

	flows, err := d.flows.ActiveFlowsByTrigger(ctx, orgID, domain.TriggerSegmentEntry, domain.TriggerSegmentExit)
	if err != nil {
		return fmt.Errorf("load segment flows: %w", err)
	}

	enteredSet := domain.NewMembershipSet(entered...)
	exitedSet := domain.NewMembershipSet(exited...)

	var errs []error
	for _, flow := range flows {
		if !matches(flow, enteredSet, exitedSet) {
			continue
		}
		job := domain.TriggerJob{
			ID:             uuid.New(),
			FlowID:         flow.ID,
			ProfileID:      profileID,
			OrganizationID: orgID,
			TriggerType:    flow.TriggerType,
			TriggerData:    domain.TriggerData{SegmentID: *flow.TriggerSegmentID},
			EnqueuedAt:     d.now().UTC(),
		}
		if err := d.queue.Enqueue(ctx, job); err != nil {
			d.log.Error("enqueue flow trigger failed",
				"flow_id", flow.ID, "profile_id", profileID, "segment_id", job.TriggerData.SegmentID, "error", err)
			errs = append(errs, fmt.Errorf("flow %s: %w", flow.ID, err))
			continue
		}
		d.log.Debug("flow triggered",
			"flow_id", flow.ID, "profile_id", profileID, "trigger_type", flow.TriggerType)
	}
	return errors.Join(errs...)
}

func matches(flow domain.Flow, entered, exited domain.MembershipSet) bool {
	if flow.TriggerSegmentID == nil || flow.Status != domain.FlowStatusActive {
		return false
	}
	switch flow.TriggerType {
	case domain.TriggerSegmentEntry:
		return entered.Has(*flow.TriggerSegmentID)
	case domain.TriggerSegmentExit:
		return exited.Has(*flow.TriggerSegmentID)
	default:
		return false
	}
}
