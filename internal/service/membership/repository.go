package membership

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
)

// Repository defines the data access contract for a reconcile pass. Every
// write is a single atomic record operation; no cross-segment transaction
// is required.
type Repository interface {
	// GetProfile returns the profile, or nil with no error if it does not exist.
	GetProfile(ctx context.Context, orgID, profileID uuid.UUID) (*domain.Profile, error)

	// RecentEvents returns at most limit events for the profile, newest first.
	RecentEvents(ctx context.Context, profileID uuid.UUID, limit int) ([]domain.Event, error)

	// ActiveSegments returns the organization's active segments with their
	// condition trees.
	ActiveSegments(ctx context.Context, orgID uuid.UUID) ([]domain.Segment, error)

	// OpenMemberships returns the IDs of segments the profile currently has an
	// open membership row for.
	OpenMemberships(ctx context.Context, profileID uuid.UUID) ([]uuid.UUID, error)

	// OpenMembership inserts an open row unless one already exists. created
	// reports whether a row was inserted.
	OpenMembership(ctx context.Context, profileID, segmentID uuid.UUID, at time.Time) (created bool, err error)

	// CloseMembership sets exited_at on the open row, if any. closed reports
	// whether a row was updated. Rows are never deleted.
	CloseMembership(ctx context.Context, profileID, segmentID uuid.UUID, at time.Time) (closed bool, err error)

	// AdjustMemberCount adds delta to the segment's member count, never going
	// below zero.
	AdjustMemberCount(ctx context.Context, segmentID uuid.UUID, delta int) error
}

// Dispatcher turns a non-empty transition into automation jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, orgID, profileID uuid.UUID, entered, exited []uuid.UUID) error
}
