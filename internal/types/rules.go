// internal/types/rules.go
package types

import "fmt"

/*
 * Domain types for decision-tree rules.
 *
 * A rule ties one edited item (its owner, a decision point or a choice) to a
 * set of target items. Each target carries its own type id: MUST HAVE or
 * MUST NOT HAVE.
 *
 * Key types:
 *   - RuleType: which kind of item the rule is attached to (point/choice)
 *   - RuleTypeID: MUST HAVE (1) or MUST NOT HAVE (2)
 *   - RuleItem: one target of a rule
 *   - Rule: owner plus ordered targets
 *
 * Equality for duplicate detection is decided in internal/rules, not here.
 * Label is display data, carried unchanged from the tree that produced it.
 */

// RuleType selects point-to-point or choice-to-choice rules.
type RuleType string

const (
	RuleTypePoint  RuleType = "point"
	RuleTypeChoice RuleType = "choice"
)

// ParseRuleType validates a rule type name.
func ParseRuleType(s string) (RuleType, error) {
	switch RuleType(s) {
	case RuleTypePoint, RuleTypeChoice:
		return RuleType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRuleType, s)
	}
}

// RuleTypeID is the constraint a rule item expresses.
type RuleTypeID int

const (
	MustHave    RuleTypeID = 1
	MustNotHave RuleTypeID = 2
)

// String returns the upper-case wording shown in warnings.
func (t RuleTypeID) String() string {
	switch t {
	case MustHave:
		return "MUST HAVE"
	case MustNotHave:
		return "MUST NOT HAVE"
	default:
		return fmt.Sprintf("RuleTypeID(%d)", int(t))
	}
}

// RuleItem is one target of a rule.
type RuleItem struct {
	ItemID        ItemID        `yaml:"itemId" json:"itemId"`
	Label         string        `yaml:"label" json:"label"`
	TypeID        RuleTypeID    `yaml:"typeId" json:"typeId"`
	TreeVersionID TreeVersionID `yaml:"treeVersionId,omitempty" json:"treeVersionId,omitempty"`
}

// Rule is a saved association between an owner item and its targets.
type Rule struct {
	RuleID  RuleID     `yaml:"ruleId,omitempty" json:"ruleId,omitempty"`
	OwnerID ItemID     `yaml:"ownerId" json:"ownerId"`
	Type    RuleType   `yaml:"type" json:"type"`
	Items   []RuleItem `yaml:"items" json:"items"`
}

// ItemIDs returns the target ids in rule order.
func (r Rule) ItemIDs() []ItemID {
	ids := make([]ItemID, len(r.Items))
	for i, item := range r.Items {
		ids[i] = item.ItemID
	}
	return ids
}

// FilterRules returns the rules of the given type, preserving order.
func FilterRules(rules []Rule, ruleType RuleType) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.Type == ruleType {
			out = append(out, r)
		}
	}
	return out
}
