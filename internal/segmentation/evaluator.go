package segmentation

import (
	"strings"
	"time"

	"github.com/ignite/audience-engine/internal/domain"
)

// Snapshot is everything the evaluator may look at for one profile.
type Snapshot struct {
	Profile *domain.Profile
	// Events is the recent window, newest first. Order does not affect results.
	Events []domain.Event
	// Memberships is the open-membership set taken before the pass started.
	Memberships domain.MembershipSet
	// Now is the reference instant for relative date math. Zero means time.Now().
	Now time.Time
}

// Evaluate reports whether the snapshot's profile matches root. It has no side
// effects and never panics on missing fields. An empty group never matches.
func Evaluate(snap Snapshot, root *domain.ConditionGroup) bool {
	if snap.Now.IsZero() {
		snap.Now = time.Now()
	}
	snap.Now = snap.Now.UTC()
	return evalGroup(&snap, root)
}

func evalGroup(snap *Snapshot, g *domain.ConditionGroup) bool {
	if g == nil || len(g.Conditions) == 0 {
		return false
	}

	switch domain.LogicOperator(strings.ToLower(string(g.Operator))) {
	case domain.LogicAnd:
		for _, c := range g.Conditions {
			if !evalCondition(snap, c) {
				return false
			}
		}
		return true
	case domain.LogicOr:
		for _, c := range g.Conditions {
			if evalCondition(snap, c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalCondition(snap *Snapshot, c domain.Condition) bool {
	switch cond := c.(type) {
	case *domain.ConditionGroup:
		return evalGroup(snap, cond)
	case domain.PropertyCondition:
		return evalProperty(profileGetter(snap.Profile), cond)
	case domain.DateCondition:
		return evalDate(snap.Profile, cond, snap.Now)
	case domain.EventCondition:
		return evalEvent(snap, cond)
	case domain.SegmentCondition:
		return evalSegment(snap.Memberships, cond)
	default:
		// InvalidCondition and nil
		return false
	}
}

func evalSegment(memberships domain.MembershipSet, c domain.SegmentCondition) bool {
	switch c.Operator {
	case domain.OpIsMember:
		return memberships.Has(c.SegmentID)
	case domain.OpIsNotMember:
		return !memberships.Has(c.SegmentID)
	default:
		return false
	}
}
