// internal/rules/compile.go
package rules

import (
	"fmt"

	"github.com/solatis/choicetree/internal/types"
)

/*
 * Tree compilation.
 *
 * Compiles a tree snapshot and its rules into lookup tables built once per
 * tree load: points and choices by id, and the set of item ids already used
 * as rule targets anywhere in the system (the used index).
 *
 * Eligibility is checked for every rendered node, so target membership is a
 * map lookup in the used index rather than a scan over every rule's items.
 *
 * Compile-time validation rejects rules the engine cannot reason about
 * (unknown rule type, invalid item type id, oversized rules). References to
 * ids missing from the tree are accepted: label lookups for them resolve to
 * the empty string instead of failing.
 */

// UsedIndex is the set of item ids that appear as targets in any rule.
type UsedIndex map[types.ItemID]struct{}

// NewUsedIndex flattens the items of every rule, point and choice rules combined.
func NewUsedIndex(rules []types.Rule) UsedIndex {
	idx := make(UsedIndex)
	for _, r := range rules {
		for _, item := range r.Items {
			idx[item.ItemID] = struct{}{}
		}
	}
	return idx
}

// Contains reports whether id is a target of any rule.
func (u UsedIndex) Contains(id types.ItemID) bool {
	_, ok := u[id]
	return ok
}

// CompiledTree is a tree snapshot with lookup tables, ready for validation.
// Read-only after Compile; safe for concurrent use.
type CompiledTree struct {
	Tree    *types.Tree
	Rules   []types.Rule
	Used    UsedIndex
	points  map[types.ItemID]types.Point
	choices map[types.ItemID]types.Choice
}

// Compile validates rules and builds lookup tables for tree.
func Compile(tree *types.Tree, rules []types.Rule) (*CompiledTree, error) {
	if tree == nil {
		return nil, types.ErrTreeNotFound
	}

	for _, r := range rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.RuleID, err)
		}
	}

	compiled := &CompiledTree{
		Tree:    tree,
		Rules:   rules,
		Used:    NewUsedIndex(rules),
		points:  make(map[types.ItemID]types.Point),
		choices: make(map[types.ItemID]types.Choice),
	}

	for _, g := range tree.Groups {
		for _, sg := range g.SubGroups {
			for _, p := range sg.Points {
				compiled.points[p.ID] = p
				for _, c := range p.Choices {
					compiled.choices[c.ID] = c
				}
			}
		}
	}

	return compiled, nil
}

// validateRule enforces rule type, item type and size limits.
func validateRule(r types.Rule) error {
	if _, err := types.ParseRuleType(string(r.Type)); err != nil {
		return err
	}
	if len(r.Items) > types.MaxRuleItems {
		return types.ErrTooManyRuleItems
	}
	for _, item := range r.Items {
		if err := validateTypeID(item.TypeID); err != nil {
			return err
		}
	}
	return nil
}

// validateTypeID accepts MUST HAVE and MUST NOT HAVE only.
func validateTypeID(t types.RuleTypeID) error {
	if t != types.MustHave && t != types.MustNotHave {
		return fmt.Errorf("%w: %d", types.ErrInvalidTypeID, int(t))
	}
	return nil
}

// Point looks up a decision point by id.
func (c *CompiledTree) Point(id types.ItemID) (types.Point, bool) {
	p, ok := c.points[id]
	return p, ok
}

// Choice looks up a choice by id.
func (c *CompiledTree) Choice(id types.ItemID) (types.Choice, bool) {
	ch, ok := c.choices[id]
	return ch, ok
}

// RulesOfType returns the rules of one type, skipping the rule with id exclude.
// An empty exclude skips nothing.
func (c *CompiledTree) RulesOfType(ruleType types.RuleType, exclude types.RuleID) []types.Rule {
	var out []types.Rule
	for _, r := range c.Rules {
		if r.Type != ruleType {
			continue
		}
		if exclude != "" && r.RuleID == exclude {
			continue
		}
		out = append(out, r)
	}
	return out
}
