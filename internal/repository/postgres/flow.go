package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/audience-engine/internal/domain"
)

// FlowRepo implements automation.FlowRepository against PostgreSQL.
type FlowRepo struct{ db *sql.DB }

// NewFlowRepo creates a Postgres-backed flow repository.
func NewFlowRepo(db *sql.DB) *FlowRepo { return &FlowRepo{db: db} }

func (r *FlowRepo) ActiveFlowsByTrigger(ctx context.Context, orgID uuid.UUID, types ...domain.TriggerType) ([]domain.Flow, error) {
	if len(types) == 0 {
		return nil, nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, name, status, trigger_type, trigger_segment_id
		FROM flows
		WHERE organization_id = $1 AND status = 'active' AND trigger_type = ANY($2)
		ORDER BY created_at
	`, orgID, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list flows by trigger: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		var f domain.Flow
		var segmentID uuid.NullUUID
		if err := rows.Scan(&f.ID, &f.OrganizationID, &f.Name, &f.Status, &f.TriggerType, &segmentID); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		if segmentID.Valid {
			id := segmentID.UUID
			f.TriggerSegmentID = &id
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}
