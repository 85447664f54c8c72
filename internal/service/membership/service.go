package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/domain"
	"github.com/ignite/audience-engine/internal/pkg/logger"
	"github.com/ignite/audience-engine/internal/segmentation"
)

// Service runs reconcile passes. It holds no per-profile state and is safe
// for concurrent use if the repository and dispatcher are.
type Service struct {
	repo        Repository
	dispatcher  Dispatcher
	log         *logger.Logger
	eventWindow int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The package default is used otherwise.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithEventWindow bounds how many recent events are loaded per pass.
func WithEventWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.eventWindow = n
		}
	}
}

// WithClock overrides the time source used for evaluation and row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a membership service. dispatcher may be nil, in which
// case transitions are persisted but not dispatched.
func NewService(repo Repository, dispatcher Dispatcher, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		dispatcher:  dispatcher,
		log:         logger.Default(),
		eventWindow: domain.DefaultEventWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile evaluates every active segment of the organization for the
// profile. It is the profile-changed hook.
func (s *Service) Reconcile(ctx context.Context, orgID, profileID uuid.UUID) (*domain.Transition, error) {
	return s.reconcile(ctx, orgID, profileID, func(domain.Segment) bool { return true })
}

// ReconcileForEvent evaluates only the segments whose rule tree references
// eventName. Other segments cannot change outcome because of that event.
func (s *Service) ReconcileForEvent(ctx context.Context, orgID, profileID uuid.UUID, eventName string) (*domain.Transition, error) {
	return s.reconcile(ctx, orgID, profileID, func(seg domain.Segment) bool {
		return seg.Conditions.ReferencesEvent(eventName)
	})
}

func (s *Service) reconcile(ctx context.Context, orgID, profileID uuid.UUID, keep func(domain.Segment) bool) (*domain.Transition, error) {
	if err := validateIDs(orgID, profileID); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	segments, err := s.repo.ActiveSegments(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load active segments: %w", err)
	}
	candidates := make([]domain.Segment, 0, len(segments))
	for _, seg := range segments {
		if keep(seg) {
			candidates = append(candidates, seg)
		}
	}
	return s.ReconcileSegments(ctx, orgID, profileID, candidates)
}

// ReconcileSegments runs one pass over the given candidate segments. The
// returned transition lists only rows this pass actually created or closed.
// A failed write for one segment is logged and skipped. A dispatch error is
// returned together with the transition, which is still valid.
//
// The pass is not cancellable once started; ctx values are kept but its
// cancellation and deadline are ignored.
func (s *Service) ReconcileSegments(ctx context.Context, orgID, profileID uuid.UUID, candidates []domain.Segment) (*domain.Transition, error) {
	if err := validateIDs(orgID, profileID); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	result := &domain.Transition{ProfileID: profileID, OrganizationID: orgID}

	profile, err := s.repo.GetProfile(ctx, orgID, profileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil || len(candidates) == 0 {
		return result, nil
	}

	events, err := s.repo.RecentEvents(ctx, profileID, s.eventWindow)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	openIDs, err := s.repo.OpenMemberships(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}

	now := s.now().UTC()
	snap := segmentation.Snapshot{
		Profile:     profile,
		Events:      events,
		Memberships: domain.NewMembershipSet(openIDs...),
		Now:         now,
	}

	// All decisions come from the same snapshot; writes happen afterwards.
	var toEnter, toExit []uuid.UUID
	for i := range candidates {
		seg := &candidates[i]
		member := segmentation.Evaluate(snap, &seg.Conditions)
		isOpen := snap.Memberships.Has(seg.ID)

		if s.log.Enabled(logger.DEBUG) {
			for _, problem := range segmentation.ValidateGroup(&seg.Conditions) {
				s.log.Debug("segment rule problem", "segment_id", seg.ID, "problem", problem)
			}
			s.log.Debug("segment evaluated",
				"profile_id", profileID, "segment_id", seg.ID, "member", member, "was_member", isOpen,
				"depends_on", seg.Conditions.ReferencedSegments())
		}

		switch {
		case member && !isOpen:
			toEnter = append(toEnter, seg.ID)
		case !member && isOpen:
			toExit = append(toExit, seg.ID)
		}
	}

	for _, segID := range toEnter {
		if s.enter(ctx, profileID, segID, now) {
			result.Entered = append(result.Entered, segID)
		}
	}
	for _, segID := range toExit {
		if s.exit(ctx, profileID, segID, now) {
			result.Exited = append(result.Exited, segID)
		}
	}

	if result.IsEmpty() || s.dispatcher == nil {
		return result, nil
	}
	if err := s.dispatcher.Dispatch(ctx, orgID, profileID, result.Entered, result.Exited); err != nil {
		return result, fmt.Errorf("dispatch triggers: %w", err)
	}
	return result, nil
}

func (s *Service) enter(ctx context.Context, profileID, segmentID uuid.UUID, at time.Time) bool {
	created, err := s.repo.OpenMembership(ctx, profileID, segmentID, at)
	if err != nil {
		s.log.Warn("open membership failed", "profile_id", profileID, "segment_id", segmentID, "error", err)
		return false
	}
	if !created {
		return false
	}
	if err := s.repo.AdjustMemberCount(ctx, segmentID, 1); err != nil {
		// The membership row is authoritative; member_count is a cached figure.
		s.log.Warn("increment member count failed", "profile_id", profileID, "segment_id", segmentID, "error", err)
	}
	return true
}

func (s *Service) exit(ctx context.Context, profileID, segmentID uuid.UUID, at time.Time) bool {
	closed, err := s.repo.CloseMembership(ctx, profileID, segmentID, at)
	if err != nil {
		s.log.Warn("close membership failed", "profile_id", profileID, "segment_id", segmentID, "error", err)
		return false
	}
	if !closed {
		return false
	}
	if err := s.repo.AdjustMemberCount(ctx, segmentID, -1); err != nil {
		s.log.Warn("decrement member count failed", "profile_id", profileID, "segment_id", segmentID, "error", err)
	}
	return true
}

func validateIDs(orgID, profileID uuid.UUID) error {
	if orgID == uuid.Nil {
		return ErrMissingOrganization
	}
	if profileID == uuid.Nil {
		return ErrMissingProfile
	}
	return nil
}
