package domain

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType identifies what starts an automation flow.
type TriggerType string

const (
	TriggerSegmentEntry   TriggerType = "segment_entry"
	TriggerSegmentExit    TriggerType = "segment_exit"
	TriggerEventTracked   TriggerType = "event_tracked"
	TriggerProfileCreated TriggerType = "profile_created"
	TriggerManual         TriggerType = "manual"
)

// FlowStatus is the lifecycle state of a flow.
type FlowStatus string

const (
	FlowStatusDraft    FlowStatus = "draft"
	FlowStatusActive   FlowStatus = "active"
	FlowStatusPaused   FlowStatus = "paused"
	FlowStatusArchived FlowStatus = "archived"
)

// Flow is the trigger-relevant subset of an automation flow.
type Flow struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	OrganizationID   uuid.UUID   `json:"organization_id" db:"organization_id"`
	Name             string      `json:"name" db:"name"`
	Status           FlowStatus  `json:"status" db:"status"`
	TriggerType      TriggerType `json:"trigger_type" db:"trigger_type"`
	TriggerSegmentID *uuid.UUID  `json:"trigger_segment_id,omitempty" db:"trigger_segment_id"`
}

// TriggerData carries the context a flow run was started with.
type TriggerData struct {
	SegmentID uuid.UUID `json:"segment_id"`
}

// TriggerJob is the message handed to the flow executor's job queue.
// Delivery is at-least-once; ID lets consumers discard duplicates.
type TriggerJob struct {
	ID             uuid.UUID   `json:"id"`
	FlowID         uuid.UUID   `json:"flow_id"`
	ProfileID      uuid.UUID   `json:"profile_id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	TriggerType    TriggerType `json:"trigger_type"`
	TriggerData    TriggerData `json:"trigger_data"`
	EnqueuedAt     time.Time   `json:"enqueued_at"`
}
