package segmentation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/audience-engine/internal/domain"
)

// standardFields maps accepted field names (snake_case and camelCase) onto the
// profile's identity columns.
var standardFields = map[string]func(p *domain.Profile) any{
	"id":          func(p *domain.Profile) any { return p.ID.String() },
	"email":       func(p *domain.Profile) any { return p.Email },
	"external_id": func(p *domain.Profile) any { return p.ExternalID },
	"externalId":  func(p *domain.Profile) any { return p.ExternalID },
	"phone":       func(p *domain.Profile) any { return p.Phone },
	"first_name":  func(p *domain.Profile) any { return p.FirstName },
	"firstName":   func(p *domain.Profile) any { return p.FirstName },
	"last_name":   func(p *domain.Profile) any { return p.LastName },
	"lastName":    func(p *domain.Profile) any { return p.LastName },
	"created_at":  func(p *domain.Profile) any { return timeOrNil(p.CreatedAt) },
	"createdAt":   func(p *domain.Profile) any { return timeOrNil(p.CreatedAt) },
	"updated_at":  func(p *domain.Profile) any { return timeOrNil(p.UpdatedAt) },
	"updatedAt":   func(p *domain.Profile) any { return timeOrNil(p.UpdatedAt) },
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// resolveField walks a dot path. "properties.a.b" and "a.b" both address the
// property bag; a standard field name addresses the profile itself. The
// second result is false when the path does not resolve.
func resolveField(p *domain.Profile, path string) (any, bool) {
	if p == nil || path == "" {
		return nil, false
	}
	if get, ok := standardFields[path]; ok {
		v := get(p)
		return v, v != nil
	}

	return resolveBag(p.Properties, path)
}

// resolveBag looks path up in a free-form property bag. A leading
// "properties." segment is optional. Flat keys containing dots win over
// nested lookups.
func resolveBag(bag map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	path = strings.TrimPrefix(path, "properties.")
	if v, ok := bag[path]; ok {
		return v, true
	}
	return lookupPath(bag, strings.Split(path, "."))
}

func lookupPath(bag map[string]any, parts []string) (any, bool) {
	var cur any = bag
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// isBlank is the "not set" test: absent, null, or the empty string.
func isBlank(v any, found bool) bool {
	if !found || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// toNumber coerces v to a float64. Strings are parsed after trimming; booleans
// and everything else fail.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint32, uint64, json.Number:
		return true
	}
	return false
}

// looseEqual compares a field value with a rule value. Two strings compare
// case-insensitively; if either side is a number both sides are coerced.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.EqualFold(as, bs)
	}
	if isNumeric(a) || isNumeric(b) {
		af, okA := toNumber(a)
		bf, okB := toNumber(b)
		return okA && okB && af == bf
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
		if bStr {
			return strings.EqualFold(strconv.FormatBool(ab), bs)
		}
		return false
	}
	if bb, ok := b.(bool); ok && aStr {
		return strings.EqualFold(as, strconv.FormatBool(bb))
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := parseInstant(b); ok {
			return at.Equal(bt)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// toList returns v as a slice of values when it is any kind of slice.
func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseInstant accepts time values, ISO-8601 strings, and numbers as Unix
// milliseconds. Results are in UTC.
func parseInstant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range instantLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
		return time.Time{}, false
	}
	if isNumeric(v) {
		ms, ok := toNumber(v)
		if !ok || math.IsInf(ms, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
