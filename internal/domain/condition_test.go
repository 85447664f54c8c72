package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vipRuleJSON = `{
	"operator": "and",
	"conditions": [
		{"type": "property", "field": "properties.plan", "operator": "equals", "value": "pro"},
		{"type": "group", "operator": "or", "conditions": [
			{"type": "event", "event_name": "purchase", "operator": "has_done",
			 "timeframe": {"kind": "in_last_days", "days": 30},
			 "count": {"operator": "at_least", "value": 2},
			 "property_filters": [{"field": "amount", "operator": "gt", "value": 50}]},
			{"type": "segment", "segment_id": "4b1f5a9e-8f3c-4a55-9a53-2b8f6c1d7e01", "operator": "is_member"}
		]},
		{"type": "date", "field": "created_at", "operator": "in_last_days", "value": 90}
	]
}`

func TestConditionGroup_UnmarshalJSON(t *testing.T) {
	var g ConditionGroup
	require.NoError(t, json.Unmarshal([]byte(vipRuleJSON), &g))

	assert.Equal(t, LogicAnd, g.Operator)
	require.Len(t, g.Conditions, 3)

	prop, ok := g.Conditions[0].(PropertyCondition)
	require.True(t, ok, "first child should be a property condition, got %T", g.Conditions[0])
	assert.Equal(t, "properties.plan", prop.Field)
	assert.Equal(t, OpEquals, prop.Operator)
	assert.Equal(t, "pro", prop.Value)

	nested, ok := g.Conditions[1].(*ConditionGroup)
	require.True(t, ok, "second child should be a nested group, got %T", g.Conditions[1])
	assert.Equal(t, LogicOr, nested.Operator)
	require.Len(t, nested.Conditions, 2)

	ev, ok := nested.Conditions[0].(EventCondition)
	require.True(t, ok)
	assert.Equal(t, "purchase", ev.EventName)
	require.NotNil(t, ev.Timeframe)
	assert.Equal(t, TimeframeInLastDays, ev.Timeframe.Kind)
	assert.Equal(t, 30, ev.Timeframe.Days)
	require.NotNil(t, ev.Count)
	assert.Equal(t, CountAtLeast, ev.Count.Operator)
	assert.Equal(t, 2, ev.Count.Value)
	require.Len(t, ev.PropertyFilters, 1)
	assert.Equal(t, "amount", ev.PropertyFilters[0].Field)

	seg, ok := nested.Conditions[1].(SegmentCondition)
	require.True(t, ok)
	assert.Equal(t, uuid.MustParse("4b1f5a9e-8f3c-4a55-9a53-2b8f6c1d7e01"), seg.SegmentID)

	date, ok := g.Conditions[2].(DateCondition)
	require.True(t, ok)
	assert.Equal(t, OpInLastDays, date.Operator)
	assert.Equal(t, float64(90), date.Value)
}

func TestConditionGroup_MalformedLeavesBecomeInvalid(t *testing.T) {
	raw := `{"operator": "or", "conditions": [
		{"type": "weather", "field": "sky"},
		{"type": "property", "operator": "equals", "value": "x"},
		{"type": "segment", "segment_id": "not-a-uuid", "operator": "is_member"},
		{"type": "event", "operator": "has_done"},
		{"type": "property", "field": "email", "operator": "is_set"}
	]}`

	var g ConditionGroup
	require.NoError(t, json.Unmarshal([]byte(raw), &g))
	require.Len(t, g.Conditions, 5)

	for i := 0; i < 4; i++ {
		inv, ok := g.Conditions[i].(InvalidCondition)
		require.True(t, ok, "condition %d should be invalid, got %T", i, g.Conditions[i])
		assert.NotEmpty(t, inv.Reason)
	}
	_, ok := g.Conditions[4].(PropertyCondition)
	assert.True(t, ok)
}

func TestConditionGroup_MarshalKeepsDiscriminators(t *testing.T) {
	var g ConditionGroup
	require.NoError(t, json.Unmarshal([]byte(vipRuleJSON), &g))

	out, err := json.Marshal(g)
	require.NoError(t, err)

	var back ConditionGroup
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, g, back)
}

func TestConditionGroup_InvalidLeafRoundTripsRaw(t *testing.T) {
	raw := `{"operator":"and","conditions":[{"type":"weather","field":"sky"}]}`
	var g ConditionGroup
	require.NoError(t, json.Unmarshal([]byte(raw), &g))

	out, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"group","operator":"and","conditions":[{"type":"weather","field":"sky"}]}`, string(out))
}

func TestConditionGroup_ReferencesEvent(t *testing.T) {
	var g ConditionGroup
	require.NoError(t, json.Unmarshal([]byte(vipRuleJSON), &g))

	assert.True(t, g.ReferencesEvent("purchase"), "nested event leaf should be found")
	assert.False(t, g.ReferencesEvent("page_view"))

	var nilGroup *ConditionGroup
	assert.False(t, nilGroup.ReferencesEvent("purchase"))
}

func TestConditionGroup_ReferencedSegments(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	g := ConditionGroup{Operator: LogicOr, Conditions: []Condition{
		SegmentCondition{SegmentID: a, Operator: OpIsMember},
		&ConditionGroup{Operator: LogicAnd, Conditions: []Condition{
			SegmentCondition{SegmentID: b, Operator: OpIsNotMember},
			SegmentCondition{SegmentID: a, Operator: OpIsNotMember},
		}},
	}}

	assert.Equal(t, []uuid.UUID{a, b}, g.ReferencedSegments())
}

func TestMembershipSet(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	set := NewMembershipSet(a)
	assert.True(t, set.Has(a))
	assert.False(t, set.Has(b))

	assert.Len(t, NewMembershipSet(a, b, a), 2)

	var empty MembershipSet
	assert.False(t, empty.Has(a))
}

func TestTransition_IsEmpty(t *testing.T) {
	var nilTransition *Transition
	assert.True(t, nilTransition.IsEmpty())
	assert.True(t, (&Transition{}).IsEmpty())
	assert.False(t, (&Transition{Exited: []uuid.UUID{uuid.New()}}).IsEmpty())
}
