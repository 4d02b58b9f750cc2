// internal/rules/labels.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/choicetree/internal/types"
)

// ItemLabel resolves a rule target id to the label shown in warnings.
// Point rules resolve against decision points. Choice rules resolve against
// choices and prefix the parent point label when the point is known.
// Unknown ids resolve to "".
func (c *CompiledTree) ItemLabel(ruleType types.RuleType, id types.ItemID) string {
	switch ruleType {
	case types.RuleTypePoint:
		if p, ok := c.points[id]; ok {
			return p.Label
		}
	case types.RuleTypeChoice:
		ch, ok := c.choices[id]
		if !ok {
			return ""
		}
		if p, ok := c.points[ch.PointID]; ok {
			return p.Label + " - " + ch.Label
		}
		return ch.Label
	}
	return ""
}

// CircularWarning builds the confirmation text for a circular reference.
// Returns "" when there is nothing to warn about.
func (c *CompiledTree) CircularWarning(ruleType types.RuleType, result CircularResult) string {
	if !result.Found() {
		return ""
	}
	labels := make([]string, len(result.Items))
	for i, item := range result.Items {
		labels[i] = c.ItemLabel(ruleType, item.ItemID)
	}
	return fmt.Sprintf("The following items will create a circular reference: %s. Do you want to continue?",
		strings.Join(labels, ", "))
}

// DuplicateWarning builds the confirmation text for a duplicate rule.
// The rule type wording comes from the first duplicate item.
func DuplicateWarning(duplicate []types.RuleItem) string {
	if len(duplicate) == 0 {
		return ""
	}
	labels := make([]string, len(duplicate))
	for i, item := range duplicate {
		labels[i] = item.Label
	}
	return fmt.Sprintf("A %s rule already exists for %s. Do you want to continue?",
		duplicate[0].TypeID, strings.Join(labels, ", "))
}
