package segmentation

import (
	"fmt"
	"strings"

	"github.com/ignite/audience-engine/internal/domain"
)

// OperatorMetadata describes an operator for rule builders and validation.
type OperatorMetadata struct {
	Operator          domain.Operator        `json:"operator"`
	Label             string                 `json:"label"`
	Description       string                 `json:"description"`
	AppliesTo         []domain.ConditionType `json:"applies_to"`
	RequiresValue     bool                   `json:"requires_value"`
	RequiresSecondary bool                   `json:"requires_secondary"` // between
	RequiresList      bool                   `json:"requires_list"`      // in_list, not_in_list
}

var (
	propertyOnly = []domain.ConditionType{domain.ConditionTypeProperty}
	dateOnly     = []domain.ConditionType{domain.ConditionTypeDate}
	eventOnly    = []domain.ConditionType{domain.ConditionTypeEvent}
	segmentOnly  = []domain.ConditionType{domain.ConditionTypeSegment}
)

var operatorMetadata = []OperatorMetadata{
	// Property operators
	{domain.OpEquals, "Equals", "Exact match, case-insensitive for text", propertyOnly, true, false, false},
	{domain.OpNotEquals, "Does not equal", "Not an exact match", propertyOnly, true, false, false},
	{domain.OpContains, "Contains", "Contains the text", propertyOnly, true, false, false},
	{domain.OpNotContains, "Does not contain", "Does not contain the text", propertyOnly, true, false, false},
	{domain.OpStartsWith, "Starts with", "Begins with the text", propertyOnly, true, false, false},
	{domain.OpEndsWith, "Ends with", "Ends with the text", propertyOnly, true, false, false},
	{domain.OpGreaterThan, "Greater than", "Number is greater than", propertyOnly, true, false, false},
	{domain.OpGreaterThanOrEqual, "Greater than or equal", "Number is at least", propertyOnly, true, false, false},
	{domain.OpLessThan, "Less than", "Number is less than", propertyOnly, true, false, false},
	{domain.OpLessThanOrEqual, "Less than or equal", "Number is at most", propertyOnly, true, false, false},
	{domain.OpGt, "Greater than", "Alias of greater_than", propertyOnly, true, false, false},
	{domain.OpGte, "Greater than or equal", "Alias of greater_than_or_equal", propertyOnly, true, false, false},
	{domain.OpLt, "Less than", "Alias of less_than", propertyOnly, true, false, false},
	{domain.OpLte, "Less than or equal", "Alias of less_than_or_equal", propertyOnly, true, false, false},
	{domain.OpIsSet, "Is set", "Has a non-empty value", propertyOnly, false, false, false},
	{domain.OpIsNotSet, "Is not set", "Missing, null or empty", propertyOnly, false, false, false},
	{domain.OpInList, "Is one of", "Equals any value in the list", propertyOnly, false, false, true},
	{domain.OpNotInList, "Is not one of", "Equals none of the values", propertyOnly, false, false, true},

	// Date operators
	{domain.OpBefore, "Before", "Before the date", dateOnly, true, false, false},
	{domain.OpAfter, "After", "After the date", dateOnly, true, false, false},
	{domain.OpBetween, "Between", "Between two dates, inclusive", dateOnly, true, true, false},
	{domain.OpInLastDays, "In the last X days", "Within the last N days", dateOnly, true, false, false},
	{domain.OpNotInLastDays, "Not in the last X days", "More than N days ago", dateOnly, true, false, false},
	{domain.OpOnDate, "On date", "Same calendar day (UTC)", dateOnly, true, false, false},

	// Event operators
	{domain.OpHasDone, "Has done", "Performed the event", eventOnly, false, false, false},
	{domain.OpHasNotDone, "Has not done", "Did not perform the event", eventOnly, false, false, false},

	// Segment operators
	{domain.OpIsMember, "Is in segment", "Currently a member", segmentOnly, false, false, false},
	{domain.OpIsNotMember, "Is not in segment", "Not currently a member", segmentOnly, false, false, false},
}

// GetOperatorMetadata returns metadata for all operators.
func GetOperatorMetadata() []OperatorMetadata {
	out := make([]OperatorMetadata, len(operatorMetadata))
	copy(out, operatorMetadata)
	return out
}

// GetAvailableOperators returns operators usable with a condition type.
func GetAvailableOperators(t domain.ConditionType) []OperatorMetadata {
	var operators []OperatorMetadata
	for _, meta := range operatorMetadata {
		for _, ct := range meta.AppliesTo {
			if ct == t {
				operators = append(operators, meta)
				break
			}
		}
	}
	return operators
}

func getOperatorMeta(op domain.Operator, t domain.ConditionType) *OperatorMetadata {
	for i := range operatorMetadata {
		meta := &operatorMetadata[i]
		if meta.Operator != op {
			continue
		}
		for _, ct := range meta.AppliesTo {
			if ct == t {
				return meta
			}
		}
	}
	return nil
}

// ValidateGroup lists everything that would make parts of a rule tree
// unmatchable. The evaluator tolerates all of them; this exists so the
// authoring layer can reject bad rules and the engine can log them.
func ValidateGroup(g *domain.ConditionGroup) []string {
	var problems []string
	validateGroup(g, "root", &problems)
	return problems
}

func validateGroup(g *domain.ConditionGroup, path string, problems *[]string) {
	if g == nil {
		*problems = append(*problems, path+": missing group")
		return
	}
	switch domain.LogicOperator(strings.ToLower(string(g.Operator))) {
	case domain.LogicAnd, domain.LogicOr:
	default:
		*problems = append(*problems, fmt.Sprintf("%s: unknown logic operator %q", path, g.Operator))
	}
	if len(g.Conditions) == 0 {
		*problems = append(*problems, path+": empty group never matches")
	}

	for i, c := range g.Conditions {
		childPath := fmt.Sprintf("%s.%d", path, i)
		switch cond := c.(type) {
		case *domain.ConditionGroup:
			validateGroup(cond, childPath, problems)
		case domain.PropertyCondition:
			validateOperator(cond.Operator, domain.ConditionTypeProperty, cond.Value, nil, childPath, problems)
		case domain.DateCondition:
			validateOperator(cond.Operator, domain.ConditionTypeDate, cond.Value, cond.SecondValue, childPath, problems)
		case domain.EventCondition:
			validateEvent(cond, childPath, problems)
		case domain.SegmentCondition:
			validateOperator(cond.Operator, domain.ConditionTypeSegment, nil, nil, childPath, problems)
		case domain.InvalidCondition:
			*problems = append(*problems, fmt.Sprintf("%s: %s", childPath, cond.Reason))
		default:
			*problems = append(*problems, fmt.Sprintf("%s: unsupported condition %T", childPath, c))
		}
	}
}

func validateOperator(op domain.Operator, t domain.ConditionType, value, secondary any, path string, problems *[]string) {
	meta := getOperatorMeta(op, t)
	if meta == nil {
		*problems = append(*problems, fmt.Sprintf("%s: unknown %s operator %q", path, t, op))
		return
	}
	if meta.RequiresValue && value == nil {
		*problems = append(*problems, fmt.Sprintf("%s: operator %s requires a value", path, op))
	}
	if meta.RequiresSecondary && secondary == nil {
		*problems = append(*problems, fmt.Sprintf("%s: operator %s requires a second value", path, op))
	}
	if meta.RequiresList {
		if _, ok := toList(value); !ok {
			*problems = append(*problems, fmt.Sprintf("%s: operator %s requires a list value", path, op))
		}
	}
}

func validateEvent(c domain.EventCondition, path string, problems *[]string) {
	validateOperator(c.Operator, domain.ConditionTypeEvent, nil, nil, path, problems)
	if c.Timeframe != nil {
		switch c.Timeframe.Kind {
		case "", domain.TimeframeEver:
		case domain.TimeframeInLastDays:
			if c.Timeframe.Days <= 0 {
				*problems = append(*problems, path+": in_last_days timeframe requires days > 0")
			}
		case domain.TimeframeBetween:
			if c.Timeframe.Start == nil || c.Timeframe.End == nil {
				*problems = append(*problems, path+": between timeframe requires start and end")
			}
		default:
			*problems = append(*problems, fmt.Sprintf("%s: unknown timeframe %q", path, c.Timeframe.Kind))
		}
	}
	if c.Count != nil {
		switch c.Count.Operator {
		case domain.CountAtLeast, domain.CountAtMost, domain.CountExactly:
		default:
			*problems = append(*problems, fmt.Sprintf("%s: unknown count operator %q", path, c.Count.Operator))
		}
		if c.Count.Value < 0 {
			*problems = append(*problems, path+": count value must not be negative")
		}
	}
	for i, f := range c.PropertyFilters {
		validateOperator(f.Operator, domain.ConditionTypeProperty, f.Value, nil, fmt.Sprintf("%s.filter.%d", path, i), problems)
	}
}
