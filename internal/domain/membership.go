package domain

import (
	"time"

	"github.com/google/uuid"
)

// SegmentMembership records that a profile entered a segment, and when it left.
// A row with a nil ExitedAt is an open membership; there is at most one open
// row per (profile, segment).
type SegmentMembership struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	ProfileID uuid.UUID  `json:"profile_id" db:"profile_id"`
	SegmentID uuid.UUID  `json:"segment_id" db:"segment_id"`
	EnteredAt time.Time  `json:"entered_at" db:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty" db:"exited_at"`
}

// IsOpen reports whether the profile is currently a member through this row.
func (m SegmentMembership) IsOpen() bool { return m.ExitedAt == nil }

// MembershipSet is the set of segment IDs a profile currently belongs to.
type MembershipSet map[uuid.UUID]struct{}

// NewMembershipSet builds a set from the given segment IDs.
func NewMembershipSet(ids ...uuid.UUID) MembershipSet {
	s := make(MembershipSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s MembershipSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Transition is the outcome of one reconcile pass for a profile.
type Transition struct {
	ProfileID      uuid.UUID   `json:"profile_id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Entered        []uuid.UUID `json:"entered"`
	Exited         []uuid.UUID `json:"exited"`
}

// IsEmpty reports whether the pass changed nothing.
func (t *Transition) IsEmpty() bool {
	return t == nil || (len(t.Entered) == 0 && len(t.Exited) == 0)
}
