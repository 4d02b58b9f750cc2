// internal/rules/eligibility.go
package rules

import "github.com/solatis/choicetree/internal/types"

/*
 * Rule target eligibility.
 *
 * Decides whether a tree node may be selected as a target of the rule being
 * edited. The UI disables ineligible nodes; SaveRule does not re-check this,
 * it blocks only self references.
 *
 * Point rules:
 *   - only decision points are targets
 *   - not the edited point, not an item already in the rule
 *   - not a point that is, or has a choice that is, a target of any rule
 *
 * Choice rules:
 *   - decision points and choices are targets
 *   - not the edited choice, its parent point, or a sibling choice
 *   - not an id that is a target of any rule
 *
 * Once an id is used by any rule it stays ineligible for every rule type
 * until that rule item is removed. This keeps constraint graphs from
 * overlapping.
 */

// EditedItem is the owner of the rule being edited.
// PointID is the parent point of an edited choice; zero for point rules or
// when unknown, in which case it is looked up in the compiled tree.
type EditedItem struct {
	ID      types.ItemID
	PointID types.ItemID
}

// IsItemEligible reports whether candidate may be added to the edited rule.
func (c *CompiledTree) IsItemEligible(ruleType types.RuleType, edited EditedItem, candidate types.Node, existing []types.RuleItem) bool {
	if candidate.ID == edited.ID {
		return false
	}
	for _, item := range existing {
		if item.ItemID == candidate.ID {
			return false
		}
	}

	switch ruleType {
	case types.RuleTypePoint:
		return c.pointEligible(candidate)
	case types.RuleTypeChoice:
		return c.choiceEligible(c.resolveEdited(edited), candidate)
	default:
		return false
	}
}

// pointEligible checks a point-rule candidate against the used index.
func (c *CompiledTree) pointEligible(candidate types.Node) bool {
	if candidate.Kind != types.KindPoint {
		return false
	}
	if c.Used.Contains(candidate.ID) {
		return false
	}
	p, ok := c.points[candidate.ID]
	if !ok {
		return true
	}
	for _, ch := range p.Choices {
		if c.Used.Contains(ch.ID) {
			return false
		}
	}
	return true
}

// choiceEligible checks a choice-rule candidate against the edited choice's point.
func (c *CompiledTree) choiceEligible(edited EditedItem, candidate types.Node) bool {
	switch candidate.Kind {
	case types.KindPoint:
		if edited.PointID != 0 && candidate.ID == edited.PointID {
			return false
		}
	case types.KindChoice:
		if edited.PointID != 0 && candidate.ParentID == edited.PointID {
			return false
		}
	default:
		return false
	}
	return !c.Used.Contains(candidate.ID)
}

// resolveEdited fills PointID from the tree when the caller did not supply it.
func (c *CompiledTree) resolveEdited(edited EditedItem) EditedItem {
	if edited.PointID == 0 {
		if ch, ok := c.choices[edited.ID]; ok {
			edited.PointID = ch.PointID
		}
	}
	return edited
}

// EligibleItems walks the tree once and returns every eligible node.
func (c *CompiledTree) EligibleItems(ruleType types.RuleType, edited EditedItem, existing []types.RuleItem) []types.Node {
	var out []types.Node
	c.Tree.Walk(func(n types.Node) {
		if c.IsItemEligible(ruleType, edited, n, existing) {
			out = append(out, n)
		}
	})
	return out
}
