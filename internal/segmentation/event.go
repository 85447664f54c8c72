package segmentation

import (
	"github.com/ignite/audience-engine/internal/domain"
)

// evalEvent counts matching events and combines the optional count qualifier
// with the has_done / has_not_done polarity:
//
//	no qualifier:   has_done  <=> count > 0      has_not_done <=> count == 0
//	with qualifier: has_done  <=> q(count)       has_not_done <=> !q(count)
//
// where q is at_least (>=), at_most (<=) or exactly (==) against the value.
func evalEvent(snap *Snapshot, c domain.EventCondition) bool {
	inWindow, ok := timeframeFilter(c.Timeframe, snap)
	if !ok {
		return false
	}

	count := 0
	for i := range snap.Events {
		ev := &snap.Events[i]
		if ev.Name != c.EventName || !inWindow(ev) {
			continue
		}
		if !matchesEventFilters(ev, c.PropertyFilters) {
			continue
		}
		count++
	}

	var satisfied bool
	if c.Count == nil {
		satisfied = count > 0
	} else {
		satisfied, ok = compareCount(count, *c.Count)
		if !ok {
			return false
		}
	}

	switch c.Operator {
	case domain.OpHasDone:
		return satisfied
	case domain.OpHasNotDone:
		return !satisfied
	default:
		return false
	}
}

func timeframeFilter(tf *domain.Timeframe, snap *Snapshot) (func(*domain.Event) bool, bool) {
	if tf == nil || tf.Kind == "" || tf.Kind == domain.TimeframeEver {
		return func(*domain.Event) bool { return true }, true
	}

	switch tf.Kind {
	case domain.TimeframeInLastDays:
		if tf.Days <= 0 {
			return nil, false
		}
		cutoff := snap.Now.AddDate(0, 0, -tf.Days)
		return func(ev *domain.Event) bool { return !ev.Timestamp.Before(cutoff) }, true

	case domain.TimeframeBetween:
		if tf.Start == nil || tf.End == nil {
			return nil, false
		}
		start, end := *tf.Start, *tf.End
		return func(ev *domain.Event) bool {
			return !ev.Timestamp.Before(start) && !ev.Timestamp.After(end)
		}, true

	default:
		return nil, false
	}
}

// matchesEventFilters applies property filters to an event's property bag,
// addressed the same way as a profile's ("properties.x" or "x").
func matchesEventFilters(ev *domain.Event, filters []domain.PropertyCondition) bool {
	if len(filters) == 0 {
		return true
	}
	get := func(path string) (any, bool) { return resolveBag(ev.Properties, path) }
	for _, f := range filters {
		if !evalProperty(get, f) {
			return false
		}
	}
	return true
}

func compareCount(count int, q domain.CountQualifier) (bool, bool) {
	if q.Value < 0 {
		return false, false
	}
	switch q.Operator {
	case domain.CountAtLeast:
		return count >= q.Value, true
	case domain.CountAtMost:
		return count <= q.Value, true
	case domain.CountExactly:
		return count == q.Value, true
	default:
		return false, false
	}
}
