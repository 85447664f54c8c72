package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
	"github.com/ignite/audience-engine/internal/pkg/logger"
)

// SegmentationRepo implements membership.Repository against PostgreSQL.
//
// At most one open row per (profile, segment) is guaranteed by the partial
// unique index segment_memberships_open_uniq; OpenMembership relies on it
// instead of a lock.
type SegmentationRepo struct{ db *sql.DB }

// NewSegmentationRepo creates a Postgres-backed segmentation repository.
func NewSegmentationRepo(db *sql.DB) *SegmentationRepo { return &SegmentationRepo{db: db} }

func (r *SegmentationRepo) GetProfile(ctx context.Context, orgID, profileID uuid.UUID) (*domain.Profile, error) {
	p := &domain.Profile{}
	var props []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, COALESCE(email,''), COALESCE(external_id,''), COALESCE(phone,''),
		       COALESCE(first_name,''), COALESCE(last_name,''), properties, created_at, updated_at
		FROM profiles
		WHERE id = $1 AND organization_id = $2
	`, profileID, orgID).Scan(
		&p.ID, &p.OrganizationID, &p.Email, &p.ExternalID, &p.Phone,
		&p.FirstName, &p.LastName, &props, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p.Properties, err = decodeProperties(props); err != nil {
		return nil, fmt.Errorf("decode profile properties: %w", err)
	}
	return p, nil
}

func (r *SegmentationRepo) RecentEvents(ctx context.Context, profileID uuid.UUID, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = domain.DefaultEventWindow
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, profile_id, name, properties, COALESCE(source,''), occurred_at
		FROM events
		WHERE profile_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var props []byte
		if err := rows.Scan(&ev.ID, &ev.OrganizationID, &ev.ProfileID, &ev.Name, &props, &ev.Source, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Properties, err = decodeProperties(props); err != nil {
			// One bad payload should not hide the rest of the history.
			logger.Warn("event properties undecodable", "event_id", ev.ID, "error", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *SegmentationRepo) ActiveSegments(ctx context.Context, orgID uuid.UUID) ([]domain.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, name, COALESCE(description,''), conditions, is_active,
		       member_count, created_at, updated_at
		FROM segments
		WHERE organization_id = $1 AND is_active = true
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active segments: %w", err)
	}
	defer rows.Close()

	var segments []domain.Segment
	for rows.Next() {
		var s domain.Segment
		var conditions []byte
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Description, &conditions,
			&s.IsActive, &s.MemberCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &s.Conditions); err != nil {
				// An unreadable tree is an empty group, which never matches.
				logger.Warn("segment conditions undecodable", "segment_id", s.ID, "error", err)
				s.Conditions = domain.ConditionGroup{}
			}
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

func (r *SegmentationRepo) OpenMemberships(ctx context.Context, profileID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT segment_id FROM segment_memberships
		WHERE profile_id = $1 AND exited_at IS NULL
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list open memberships: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SegmentationRepo) OpenMembership(ctx context.Context, profileID, segmentID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO segment_memberships (id, profile_id, segment_id, entered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile_id, segment_id) WHERE exited_at IS NULL DO NOTHING
	`, uuid.New(), profileID, segmentID, at)
	if err != nil {
		return false, fmt.Errorf("open membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("open membership: %w", err)
	}
	return n == 1, nil
}

func (r *SegmentationRepo) CloseMembership(ctx context.Context, profileID, segmentID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE segment_memberships SET exited_at = $3
		WHERE profile_id = $1 AND segment_id = $2 AND exited_at IS NULL
	`, profileID, segmentID, at)
	if err != nil {
		return false, fmt.Errorf("close membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close membership: %w", err)
	}
	return n > 0, nil
}

func (r *SegmentationRepo) AdjustMemberCount(ctx context.Context, segmentID uuid.UUID, delta int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE segments SET member_count = GREATEST(member_count + $2, 0), updated_at = NOW()
		WHERE id = $1
	`, segmentID, delta)
	if err != nil {
		return fmt.Errorf("adjust member count: %w", err)
	}
	return nil
}

// MembershipHistory returns every membership row for the profile, newest
// first, including closed ones.
func (r *SegmentationRepo) MembershipHistory(ctx context.Context, profileID uuid.UUID) ([]domain.SegmentMembership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, segment_id, entered_at, exited_at
		FROM segment_memberships
		WHERE profile_id = $1
		ORDER BY entered_at DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list membership history: %w", err)
	}
	defer rows.Close()

	var out []domain.SegmentMembership
	for rows.Next() {
		var m domain.SegmentMembership
		var exited sql.NullTime
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.SegmentID, &m.EnteredAt, &exited); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		if exited.Valid {
			t := exited.Time
			m.ExitedAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func decodeProperties(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, err
	}
	return props, nil
}
