package segmentation

import (
	"math"
	"time"

	"github.com/ignite/audience-engine/internal/domain"
)

const day = 24 * time.Hour

func evalDate(p *domain.Profile, c domain.DateCondition, now time.Time) bool {
	raw, found := resolveField(p, c.Field)
	if !found {
		return false
	}
	t, ok := parseInstant(raw)
	if !ok {
		return false
	}

	switch c.Operator {
	case domain.OpBefore:
		ref, ok := parseInstant(c.Value)
		return ok && t.Before(ref)

	case domain.OpAfter:
		ref, ok := parseInstant(c.Value)
		return ok && t.After(ref)

	case domain.OpBetween:
		lo, okLo := parseInstant(c.Value)
		hi, okHi := parseInstant(c.SecondValue)
		if !okLo || !okHi {
			return false
		}
		return !t.Before(lo) && !t.After(hi)

	case domain.OpInLastDays:
		cutoff, ok := daysCutoff(c.Value, now)
		return ok && !t.Before(cutoff)

	case domain.OpNotInLastDays:
		cutoff, ok := daysCutoff(c.Value, now)
		return ok && t.Before(cutoff)

	case domain.OpOnDate:
		ref, ok := parseInstant(c.Value)
		if !ok {
			return false
		}
		ty, tm, td := t.Date()
		ry, rm, rd := ref.Date()
		return ty == ry && tm == rm && td == rd

	default:
		return false
	}
}

// maxCutoffDays is far beyond any stored timestamp. Larger windows use the
// zero time as cutoff, so every instant falls inside them.
const maxCutoffDays = 1e9

// daysCutoff returns now minus N days, where N comes from the rule value and
// may be fractional. Whole days go through AddDate so large windows cannot
// overflow time.Duration.
func daysCutoff(v any, now time.Time) (time.Time, bool) {
	n, ok := toNumber(v)
	if !ok || n < 0 || math.IsNaN(n) {
		return time.Time{}, false
	}
	if n > maxCutoffDays {
		return time.Time{}, true
	}
	whole, frac := math.Modf(n)
	return now.AddDate(0, 0, -int(whole)).Add(-time.Duration(frac * float64(day))), true
}
