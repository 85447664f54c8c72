package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile is one end customer inside an organization. The audience engine
// only ever reads a snapshot of it.
type Profile struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	OrganizationID uuid.UUID      `json:"organization_id" db:"organization_id"`
	Email          string         `json:"email,omitempty" db:"email"`
	ExternalID     string         `json:"external_id,omitempty" db:"external_id"`
	Phone          string         `json:"phone,omitempty" db:"phone"`
	FirstName      string         `json:"first_name,omitempty" db:"first_name"`
	LastName       string         `json:"last_name,omitempty" db:"last_name"`
	Properties     map[string]any `json:"properties,omitempty" db:"properties"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}
