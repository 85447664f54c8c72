package segmentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/audience-engine/internal/domain"
)

func TestEvalDate_InLastDaysBoundary(t *testing.T) {
	exactly7 := testNow.Add(-7 * day)
	oneSecondMore := exactly7.Add(-time.Second)

	inLast7 := domain.DateCondition{Field: "signed_up", Operator: domain.OpInLastDays, Value: 7}
	notInLast7 := domain.DateCondition{Field: "signed_up", Operator: domain.OpNotInLastDays, Value: 7}

	atBoundary := testProfile(map[string]any{"signed_up": exactly7.Format(time.RFC3339)})
	assert.True(t, evalDate(atBoundary, inLast7, testNow), "exactly N days ago is inclusive")
	assert.False(t, evalDate(atBoundary, notInLast7, testNow))

	past := testProfile(map[string]any{"signed_up": oneSecondMore.Format(time.RFC3339)})
	assert.False(t, evalDate(past, inLast7, testNow))
	assert.True(t, evalDate(past, notInLast7, testNow))
}

func TestEvalDate(t *testing.T) {
	p := testProfile(map[string]any{
		"birthday":    "1990-06-15",
		"last_order":  "2026-03-10T23:30:00-05:00", // 2026-03-11 04:30 UTC
		"trial_end":   float64(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC).UnixMilli()),
		"renewal":     time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		"garbage":     "next tuesday",
		"empty_value": "",
		"old_record":  "1500-01-01",
	})

	tests := []struct {
		name string
		cond domain.DateCondition
		want bool
	}{
		{"before", domain.DateCondition{Field: "birthday", Operator: domain.OpBefore, Value: "2000-01-01"}, true},
		{"after", domain.DateCondition{Field: "birthday", Operator: domain.OpAfter, Value: "2000-01-01"}, false},
		{"between inclusive low", domain.DateCondition{Field: "birthday", Operator: domain.OpBetween, Value: "1990-06-15", SecondValue: "1990-12-31"}, true},
		{"between inclusive high", domain.DateCondition{Field: "birthday", Operator: domain.OpBetween, Value: "1990-01-01", SecondValue: "1990-06-15"}, true},
		{"between outside", domain.DateCondition{Field: "birthday", Operator: domain.OpBetween, Value: "1991-01-01", SecondValue: "1992-01-01"}, false},
		{"between missing upper", domain.DateCondition{Field: "birthday", Operator: domain.OpBetween, Value: "1990-01-01"}, false},
		{"on_date compares UTC day", domain.DateCondition{Field: "last_order", Operator: domain.OpOnDate, Value: "2026-03-11"}, true},
		{"on_date local day differs", domain.DateCondition{Field: "last_order", Operator: domain.OpOnDate, Value: "2026-03-10"}, false},
		{"unix millis field", domain.DateCondition{Field: "trial_end", Operator: domain.OpAfter, Value: "2026-03-19T00:00:00Z"}, true},
		{"time.Time field", domain.DateCondition{Field: "renewal", Operator: domain.OpOnDate, Value: "2026-04-01T23:59:59Z"}, true},
		{"future date is in last days", domain.DateCondition{Field: "renewal", Operator: domain.OpInLastDays, Value: 30}, true},
		{"standard created_at", domain.DateCondition{Field: "created_at", Operator: domain.OpInLastDays, Value: "14"}, true},
		{"unparseable field", domain.DateCondition{Field: "garbage", Operator: domain.OpBefore, Value: "2030-01-01"}, false},
		{"empty field", domain.DateCondition{Field: "empty_value", Operator: domain.OpNotInLastDays, Value: 1}, false},
		{"missing field", domain.DateCondition{Field: "nope", Operator: domain.OpNotInLastDays, Value: 1}, false},
		{"unparseable value", domain.DateCondition{Field: "birthday", Operator: domain.OpBefore, Value: "soon"}, false},
		{"centuries-wide window", domain.DateCondition{Field: "old_record", Operator: domain.OpInLastDays, Value: 1000000}, true},
		{"centuries-wide window excludes nothing", domain.DateCondition{Field: "old_record", Operator: domain.OpNotInLastDays, Value: 1000000}, false},
		{"window past every timestamp", domain.DateCondition{Field: "old_record", Operator: domain.OpInLastDays, Value: 1e12}, true},
		{"fractional days", domain.DateCondition{Field: "last_order", Operator: domain.OpInLastDays, Value: 0.5}, false},
		{"negative days", domain.DateCondition{Field: "birthday", Operator: domain.OpInLastDays, Value: -3}, false},
		{"unknown operator", domain.DateCondition{Field: "birthday", Operator: "around", Value: "1990-06-15"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalDate(p, tt.cond, testNow))
		})
	}
}

func TestDaysCutoff(t *testing.T) {
	cutoff, ok := daysCutoff(1.5, testNow)
	assert.True(t, ok)
	assert.Equal(t, testNow.Add(-36*time.Hour), cutoff)

	cutoff, ok = daysCutoff(200000, testNow)
	assert.True(t, ok)
	assert.Equal(t, testNow.AddDate(0, 0, -200000), cutoff)
	assert.True(t, cutoff.Before(testNow))

	cutoff, ok = daysCutoff("1e15", testNow)
	assert.True(t, ok)
	assert.True(t, cutoff.IsZero())

	_, ok = daysCutoff("NaN", testNow)
	assert.False(t, ok)
}
