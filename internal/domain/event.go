package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultEventWindow caps how many recent events per profile are loaded for
// event conditions.
const DefaultEventWindow = 1000

// Event is an immutable behavioral fact recorded against a profile.
type Event struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	OrganizationID uuid.UUID      `json:"organization_id" db:"organization_id"`
	ProfileID      uuid.UUID      `json:"profile_id" db:"profile_id"`
	Name           string         `json:"name" db:"name"`
	Properties     map[string]any `json:"properties,omitempty" db:"properties"`
	Timestamp      time.Time      `json:"timestamp" db:"timestamp"`
	Source         string         `json:"source,omitempty" db:"source"`
}
