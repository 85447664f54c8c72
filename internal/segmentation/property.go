package segmentation

import (
	"strings"

	"github.com/ignite/audience-engine/internal/domain"
)

// fieldGetter resolves a dot path to a value; found is false when unresolved.
type fieldGetter func(path string) (v any, found bool)

func profileGetter(p *domain.Profile) fieldGetter {
	return func(path string) (any, bool) { return resolveField(p, path) }
}

func evalProperty(get fieldGetter, c domain.PropertyCondition) bool {
	v, found := get(c.Field)

	switch c.Operator {
	case domain.OpIsSet:
		return !isBlank(v, found)
	case domain.OpIsNotSet:
		return isBlank(v, found)
	}

	// Every remaining operator needs a comparison value.
	if c.Value == nil {
		return false
	}

	switch c.Operator {
	case domain.OpEquals:
		return found && looseEqual(v, c.Value)
	case domain.OpNotEquals:
		return !(found && looseEqual(v, c.Value))

	case domain.OpContains:
		return stringMatch(v, found, c.Value, strings.Contains)
	case domain.OpNotContains:
		return !stringMatch(v, found, c.Value, strings.Contains)
	case domain.OpStartsWith:
		return stringMatch(v, found, c.Value, strings.HasPrefix)
	case domain.OpEndsWith:
		return stringMatch(v, found, c.Value, strings.HasSuffix)

	case domain.OpGreaterThan, domain.OpGt:
		return numericCompare(v, found, c.Value, func(a, b float64) bool { return a > b })
	case domain.OpGreaterThanOrEqual, domain.OpGte:
		return numericCompare(v, found, c.Value, func(a, b float64) bool { return a >= b })
	case domain.OpLessThan, domain.OpLt:
		return numericCompare(v, found, c.Value, func(a, b float64) bool { return a < b })
	case domain.OpLessThanOrEqual, domain.OpLte:
		return numericCompare(v, found, c.Value, func(a, b float64) bool { return a <= b })

	case domain.OpInList:
		list, ok := toList(c.Value)
		return ok && found && inList(v, list)
	case domain.OpNotInList:
		list, ok := toList(c.Value)
		return ok && !(found && inList(v, list))

	default:
		return false
	}
}

// stringMatch lower-cases both sides before applying match. A field that is
// not a string never matches.
func stringMatch(v any, found bool, want any, match func(s, sub string) bool) bool {
	s, ok := v.(string)
	if !found || !ok {
		return false
	}
	return match(strings.ToLower(s), strings.ToLower(stringify(want)))
}

func numericCompare(v any, found bool, want any, cmp func(a, b float64) bool) bool {
	if !found {
		return false
	}
	a, ok := toNumber(v)
	if !ok {
		return false
	}
	b, ok := toNumber(want)
	if !ok {
		return false
	}
	return cmp(a, b)
}

func inList(v any, list []any) bool {
	for _, item := range list {
		if looseEqual(v, item) {
			return true
		}
	}
	return false
}
