package domain

import (
	"time"

	"github.com/google/uuid"
)

// Segment is an organization-scoped audience defined by a condition tree.
// The engine reads Conditions and IsActive; it only ever writes MemberCount.
type Segment struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	OrganizationID uuid.UUID      `json:"organization_id" db:"organization_id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description,omitempty" db:"description"`
	Conditions     ConditionGroup `json:"conditions" db:"conditions"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	MemberCount    int            `json:"member_count" db:"member_count"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}
