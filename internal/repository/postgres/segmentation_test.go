package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-engine/internal/domain"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var (
	orgID     = uuid.MustParse("3c7d2a10-8e4b-4f1a-9b6c-5d0e1f2a3b44")
	profileID = uuid.MustParse("a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c55")
	segmentID = uuid.MustParse("5e6f7a8b-9c0d-4e1f-a2b3-c4d5e6f7a866")
	at        = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
)

func TestSegmentationRepo_GetProfile(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)

	mock.ExpectQuery("SELECT id, organization_id, COALESCE\\(email,''\\)").
		WithArgs(profileID, orgID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "email", "external_id", "phone",
			"first_name", "last_name", "properties", "created_at", "updated_at",
		}).AddRow(
			profileID.String(), orgID.String(), "jane@example.com", "crm-42", "",
			"Jane", "Doe", []byte(`{"plan":"pro","address":{"city":"Lisbon"}}`), at, at,
		))

	p, err := repo.GetProfile(context.Background(), orgID, profileID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, profileID, p.ID)
	assert.Equal(t, "crm-42", p.ExternalID)
	assert.Equal(t, "pro", p.Properties["plan"])
	assert.Equal(t, map[string]any{"city": "Lisbon"}, p.Properties["address"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentationRepo_GetProfileMissing(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)

	mock.ExpectQuery("FROM profiles").WillReturnError(sql.ErrNoRows)

	p, err := repo.GetProfile(context.Background(), orgID, profileID)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestSegmentationRepo_GetProfileMissingWrapped(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)

	mock.ExpectQuery("FROM profiles").WillReturnError(fmt.Errorf("pgbouncer: %w", sql.ErrNoRows))

	p, err := repo.GetProfile(context.Background(), orgID, profileID)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestSegmentationRepo_RecentEvents(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)
	eventID := uuid.New()

	mock.ExpectQuery("FROM events").
		WithArgs(profileID, 1000).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "profile_id", "name", "properties", "source", "occurred_at",
		}).
			AddRow(eventID.String(), orgID.String(), profileID.String(), "purchase", []byte(`{"amount":120}`), "api", at).
			AddRow(uuid.NewString(), orgID.String(), profileID.String(), "page_view", nil, "", at.Add(-time.Hour)))

	events, err := repo.RecentEvents(context.Background(), profileID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, eventID, events[0].ID)
	assert.Equal(t, "purchase", events[0].Name)
	assert.Equal(t, float64(120), events[0].Properties["amount"])
	assert.Equal(t, at, events[0].Timestamp)
	assert.Nil(t, events[1].Properties)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentationRepo_ActiveSegments(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)
	brokenID := uuid.New()

	cols := []string{"id", "organization_id", "name", "description", "conditions", "is_active", "member_count", "created_at", "updated_at"}
	mock.ExpectQuery("FROM segments").
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(segmentID.String(), orgID.String(), "Pro users", "", []byte(`{"operator":"and","conditions":[
				{"type":"property","field":"plan","operator":"equals","value":"pro"}]}`), true, 7, at, at).
			AddRow(brokenID.String(), orgID.String(), "Broken", "", []byte(`"nope"`), true, 0, at, at))

	segments, err := repo.ActiveSegments(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, segmentID, segments[0].ID)
	assert.Equal(t, 7, segments[0].MemberCount)
	assert.Equal(t, domain.LogicAnd, segments[0].Conditions.Operator)
	require.Len(t, segments[0].Conditions.Conditions, 1)
	_, ok := segments[0].Conditions.Conditions[0].(domain.PropertyCondition)
	assert.True(t, ok)

	assert.Equal(t, brokenID, segments[1].ID)
	assert.Empty(t, segments[1].Conditions.Conditions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentationRepo_OpenMemberships(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)
	other := uuid.New()

	mock.ExpectQuery("SELECT segment_id FROM segment_memberships").
		WithArgs(profileID).
		WillReturnRows(sqlmock.NewRows([]string{"segment_id"}).
			AddRow(segmentID.String()).
			AddRow(other.String()))

	ids, err := repo.OpenMemberships(context.Background(), profileID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{segmentID, other}, ids)
}

func TestSegmentationRepo_OpenMembership(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)

	mock.ExpectExec("INSERT INTO segment_memberships").
		WithArgs(sqlmock.AnyArg(), profileID, segmentID, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(profile_id, segment_id\\) WHERE exited_at IS NULL DO NOTHING").
		WithArgs(sqlmock.AnyArg(), profileID, segmentID, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.OpenMembership(context.Background(), profileID, segmentID, at)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.OpenMembership(context.Background(), profileID, segmentID, at)
	require.NoError(t, err)
	assert.False(t, created, "an existing open row is a no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentationRepo_CloseMembership(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)

	mock.ExpectExec("UPDATE segment_memberships SET exited_at").
		WithArgs(profileID, segmentID, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE segment_memberships SET exited_at").
		WithArgs(profileID, segmentID, at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE segment_memberships SET exited_at").
		WillReturnError(errors.New("deadlock detected"))

	closed, err := repo.CloseMembership(context.Background(), profileID, segmentID, at)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.CloseMembership(context.Background(), profileID, segmentID, at)
	require.NoError(t, err)
	assert.False(t, closed)

	_, err = repo.CloseMembership(context.Background(), profileID, segmentID, at)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentationRepo_AdjustMemberCount(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)

	mock.ExpectExec("UPDATE segments SET member_count = GREATEST\\(member_count \\+ \\$2, 0\\)").
		WithArgs(segmentID, -1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AdjustMemberCount(context.Background(), segmentID, -1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentationRepo_MembershipHistory(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSegmentationRepo(db)
	exited := at.Add(-time.Hour)

	mock.ExpectQuery("SELECT id, profile_id, segment_id, entered_at, exited_at").
		WithArgs(profileID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile_id", "segment_id", "entered_at", "exited_at"}).
			AddRow(uuid.NewString(), profileID.String(), segmentID.String(), at, nil).
			AddRow(uuid.NewString(), profileID.String(), segmentID.String(), at.Add(-48*time.Hour), exited))

	rows, err := repo.MembershipHistory(context.Background(), profileID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].IsOpen())
	require.NotNil(t, rows[1].ExitedAt)
	assert.Equal(t, exited, *rows[1].ExitedAt)
}
