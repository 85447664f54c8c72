package segmentation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-engine/internal/domain"
)

func TestGetAvailableOperators(t *testing.T) {
	ops := GetAvailableOperators(domain.ConditionTypeEvent)
	require.Len(t, ops, 2)
	assert.Equal(t, domain.OpHasDone, ops[0].Operator)

	for _, meta := range GetAvailableOperators(domain.ConditionTypeDate) {
		assert.Contains(t, meta.AppliesTo, domain.ConditionTypeDate)
	}
}

func TestValidateGroup_CleanTree(t *testing.T) {
	g := group(domain.LogicAnd,
		domain.PropertyCondition{Field: "plan", Operator: domain.OpEquals, Value: "pro"},
		domain.DateCondition{Field: "created_at", Operator: domain.OpBetween, Value: "2026-01-01", SecondValue: "2026-02-01"},
		group(domain.LogicOr,
			domain.EventCondition{EventName: "purchase", Operator: domain.OpHasDone,
				Timeframe: &domain.Timeframe{Kind: domain.TimeframeInLastDays, Days: 30}},
			domain.PropertyCondition{Field: "plan", Operator: domain.OpInList, Value: []any{"pro"}},
		),
	)
	assert.Empty(t, ValidateGroup(g))
}

func TestValidateGroup_ReportsProblems(t *testing.T) {
	raw := `{"operator": "nand", "conditions": [
		{"type": "property", "field": "plan", "operator": "equals"},
		{"type": "property", "field": "plan", "operator": "in_list", "value": "pro"},
		{"type": "date", "field": "created_at", "operator": "between", "value": "2026-01-01"},
		{"type": "event", "event_name": "purchase", "operator": "has_done",
		 "timeframe": {"kind": "in_last_days"}, "count": {"operator": "roughly", "value": -1}},
		{"type": "property", "field": "plan", "operator": "has_done"},
		{"type": "weather"},
		{"type": "group", "operator": "and", "conditions": []}
	]}`
	var g domain.ConditionGroup
	require.NoError(t, json.Unmarshal([]byte(raw), &g))

	problems := ValidateGroup(&g)
	assert.Contains(t, problems, `root: unknown logic operator "nand"`)
	assert.Contains(t, problems, "root.0: operator equals requires a value")
	assert.Contains(t, problems, "root.1: operator in_list requires a list value")
	assert.Contains(t, problems, "root.2: operator between requires a second value")
	assert.Contains(t, problems, "root.3: in_last_days timeframe requires days > 0")
	assert.Contains(t, problems, `root.3: unknown count operator "roughly"`)
	assert.Contains(t, problems, "root.3: count value must not be negative")
	assert.Contains(t, problems, `root.4: unknown property operator "has_done"`)
	assert.Contains(t, problems, `root.5: unknown condition type "weather"`)
	assert.Contains(t, problems, "root.6: empty group never matches")
}
