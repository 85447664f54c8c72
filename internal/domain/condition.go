package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ==========================================
// CONDITION TREE
// ==========================================

// ConditionType is the discriminator written into every serialized node.
type ConditionType string

const (
	ConditionTypeProperty ConditionType = "property"
	ConditionTypeDate     ConditionType = "date"
	ConditionTypeEvent    ConditionType = "event"
	ConditionTypeSegment  ConditionType = "segment"
	ConditionTypeGroup    ConditionType = "group"
)

// LogicOperator combines the children of a group.
type LogicOperator string

const (
	LogicAnd LogicOperator = "and"
	LogicOr  LogicOperator = "or"
)

// Operator is a leaf comparison operator. Which values are meaningful depends
// on the leaf type.
type Operator string

const (
	// Property operators
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpGreaterThan        Operator = "greater_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThan           Operator = "less_than"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpGt                 Operator = "gt"
	OpGte                Operator = "gte"
	OpLt                 Operator = "lt"
	OpLte                Operator = "lte"
	OpIsSet              Operator = "is_set"
	OpIsNotSet           Operator = "is_not_set"
	OpInList             Operator = "in_list"
	OpNotInList          Operator = "not_in_list"

	// Date operators
	OpBefore        Operator = "before"
	OpAfter         Operator = "after"
	OpBetween       Operator = "between"
	OpInLastDays    Operator = "in_last_days"
	OpNotInLastDays Operator = "not_in_last_days"
	OpOnDate        Operator = "on_date"

	// Event operators
	OpHasDone    Operator = "has_done"
	OpHasNotDone Operator = "has_not_done"

	// Segment operators
	OpIsMember    Operator = "is_member"
	OpIsNotMember Operator = "is_not_member"
)

// CountOperator qualifies how many matching events are required.
type CountOperator string

const (
	CountAtLeast CountOperator = "at_least"
	CountAtMost  CountOperator = "at_most"
	CountExactly CountOperator = "exactly"
)

// TimeframeKind selects the window applied to events before counting.
type TimeframeKind string

const (
	TimeframeEver       TimeframeKind = "ever"
	TimeframeInLastDays TimeframeKind = "in_last_days"
	TimeframeBetween    TimeframeKind = "between"
)

// Condition is a node of a segment rule tree. The set of implementations is
// closed: PropertyCondition, DateCondition, EventCondition, SegmentCondition,
// *ConditionGroup and InvalidCondition.
type Condition interface {
	conditionType() ConditionType
}

// ConditionGroup combines child conditions with AND or OR. It is both the
// root of every segment rule and a nestable child.
type ConditionGroup struct {
	Operator   LogicOperator `json:"operator"`
	Conditions []Condition   `json:"conditions"`
}

// PropertyCondition compares a profile field against a value.
type PropertyCondition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// DateCondition compares a timestamp-valued profile field.
type DateCondition struct {
	Field       string   `json:"field"`
	Operator    Operator `json:"operator"`
	Value       any      `json:"value,omitempty"`
	SecondValue any      `json:"second_value,omitempty"`
}

// Timeframe restricts which events count. A nil Timeframe means "ever".
type Timeframe struct {
	Kind  TimeframeKind `json:"kind"`
	Days  int           `json:"days,omitempty"`
	Start *time.Time    `json:"start,omitempty"`
	End   *time.Time    `json:"end,omitempty"`
}

// CountQualifier requires a number of matching events.
type CountQualifier struct {
	Operator CountOperator `json:"operator"`
	Value    int           `json:"value"`
}

// EventCondition matches on the profile's recent behavioral events.
type EventCondition struct {
	EventName       string              `json:"event_name"`
	Operator        Operator            `json:"operator"`
	Timeframe       *Timeframe          `json:"timeframe,omitempty"`
	Count           *CountQualifier     `json:"count,omitempty"`
	PropertyFilters []PropertyCondition `json:"property_filters,omitempty"`
}

// SegmentCondition tests membership in another segment using the membership
// snapshot supplied to the evaluator.
type SegmentCondition struct {
	SegmentID uuid.UUID `json:"segment_id"`
	Operator  Operator  `json:"operator"`
}

// InvalidCondition stands in for a leaf that could not be decoded. It never
// matches. Raw keeps the original bytes so the tree round-trips unchanged.
type InvalidCondition struct {
	Type   ConditionType   `json:"type"`
	Reason string          `json:"-"`
	Raw    json.RawMessage `json:"-"`
}

func (*ConditionGroup) conditionType() ConditionType   { return ConditionTypeGroup }
func (PropertyCondition) conditionType() ConditionType { return ConditionTypeProperty }
func (DateCondition) conditionType() ConditionType     { return ConditionTypeDate }
func (EventCondition) conditionType() ConditionType    { return ConditionTypeEvent }
func (SegmentCondition) conditionType() ConditionType  { return ConditionTypeSegment }
func (c InvalidCondition) conditionType() ConditionType {
	return c.Type
}

// ==========================================
// TREE WALKS
// ==========================================

// Walk calls fn for every node below g, depth first, in declaration order.
// Returning false from fn stops the walk.
func (g *ConditionGroup) Walk(fn func(Condition) bool) bool {
	if g == nil {
		return true
	}
	for _, c := range g.Conditions {
		if !fn(c) {
			return false
		}
		if child, ok := c.(*ConditionGroup); ok {
			if !child.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// ReferencesEvent reports whether any event leaf at any depth matches name.
func (g *ConditionGroup) ReferencesEvent(name string) bool {
	found := false
	g.Walk(func(c Condition) bool {
		if ec, ok := c.(EventCondition); ok && ec.EventName == name {
			found = true
			return false
		}
		return true
	})
	return found
}

// ReferencedSegments lists the segment IDs used by segment leaves, in order of
// first appearance.
func (g *ConditionGroup) ReferencedSegments() []uuid.UUID {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	g.Walk(func(c Condition) bool {
		if sc, ok := c.(SegmentCondition); ok && !seen[sc.SegmentID] {
			seen[sc.SegmentID] = true
			ids = append(ids, sc.SegmentID)
		}
		return true
	})
	return ids
}

// ==========================================
// JSON
// ==========================================

// UnmarshalJSON decodes a group and its children. Children that cannot be
// decoded become InvalidCondition instead of failing the whole tree.
func (g *ConditionGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Operator   LogicOperator     `json:"operator"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode condition group: %w", err)
	}

	g.Operator = raw.Operator
	g.Conditions = make([]Condition, 0, len(raw.Conditions))
	for _, child := range raw.Conditions {
		g.Conditions = append(g.Conditions, decodeCondition(child))
	}
	return nil
}

// MarshalJSON writes the group with its "group" discriminator.
func (g ConditionGroup) MarshalJSON() ([]byte, error) {
	conditions := g.Conditions
	if conditions == nil {
		conditions = []Condition{}
	}
	return json.Marshal(struct {
		Type       ConditionType `json:"type"`
		Operator   LogicOperator `json:"operator"`
		Conditions []Condition   `json:"conditions"`
	}{ConditionTypeGroup, g.Operator, conditions})
}

func (c PropertyCondition) MarshalJSON() ([]byte, error) {
	type plain PropertyCondition
	return json.Marshal(struct {
		Type ConditionType `json:"type"`
		plain
	}{ConditionTypeProperty, plain(c)})
}

func (c DateCondition) MarshalJSON() ([]byte, error) {
	type plain DateCondition
	return json.Marshal(struct {
		Type ConditionType `json:"type"`
		plain
	}{ConditionTypeDate, plain(c)})
}

func (c EventCondition) MarshalJSON() ([]byte, error) {
	type plain EventCondition
	return json.Marshal(struct {
		Type ConditionType `json:"type"`
		plain
	}{ConditionTypeEvent, plain(c)})
}

func (c SegmentCondition) MarshalJSON() ([]byte, error) {
	type plain SegmentCondition
	return json.Marshal(struct {
		Type ConditionType `json:"type"`
		plain
	}{ConditionTypeSegment, plain(c)})
}

func (c InvalidCondition) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	return json.Marshal(struct {
		Type ConditionType `json:"type"`
	}{c.Type})
}

func decodeCondition(raw json.RawMessage) Condition {
	invalid := func(t ConditionType, reason string) Condition {
		return InvalidCondition{Type: t, Reason: reason, Raw: append(json.RawMessage(nil), raw...)}
	}

	var head struct {
		Type ConditionType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return invalid("", err.Error())
	}

	switch head.Type {
	case ConditionTypeProperty:
		var c PropertyCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return invalid(head.Type, err.Error())
		}
		if c.Field == "" || c.Operator == "" {
			return invalid(head.Type, "property condition requires field and operator")
		}
		return c

	case ConditionTypeDate:
		var c DateCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return invalid(head.Type, err.Error())
		}
		if c.Field == "" || c.Operator == "" {
			return invalid(head.Type, "date condition requires field and operator")
		}
		return c

	case ConditionTypeEvent:
		var c EventCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return invalid(head.Type, err.Error())
		}
		if c.EventName == "" || c.Operator == "" {
			return invalid(head.Type, "event condition requires event_name and operator")
		}
		return c

	case ConditionTypeSegment:
		var c SegmentCondition
		if err := json.Unmarshal(raw, &c); err != nil {
			return invalid(head.Type, err.Error())
		}
		if c.SegmentID == uuid.Nil || c.Operator == "" {
			return invalid(head.Type, "segment condition requires segment_id and operator")
		}
		return c

	case ConditionTypeGroup:
		g := &ConditionGroup{}
		if err := json.Unmarshal(raw, g); err != nil {
			return invalid(head.Type, err.Error())
		}
		return g

	default:
		return invalid(head.Type, fmt.Sprintf("unknown condition type %q", head.Type))
	}
}
