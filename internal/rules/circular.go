// internal/rules/circular.go
package rules

import "github.com/solatis/choicetree/internal/types"

/*
 * Circular reference detection.
 *
 * The tree provider knows which item ids can reach the edited item through
 * existing rules (see DependentIDs). Adding any of them as a target would
 * close a cycle. This file only intersects the candidate set with those ids;
 * it does not walk the rule graph itself.
 *
 * The result keeps candidate order and the RuleItem values untouched so the
 * warning lists items the way the editor picked them.
 */

// CircularResult holds the candidates that would close a cycle.
type CircularResult struct {
	Items []types.RuleItem
}

// Found reports whether any candidate closes a cycle.
func (r CircularResult) Found() bool {
	return len(r.Items) > 0
}

// CheckCircularReference returns the candidates whose item id is a dependent id.
func CheckCircularReference(candidates []types.RuleItem, dependentIDs []types.ItemID) CircularResult {
	if len(candidates) == 0 || len(dependentIDs) == 0 {
		return CircularResult{}
	}

	dependents := make(map[types.ItemID]struct{}, len(dependentIDs))
	for _, id := range dependentIDs {
		dependents[id] = struct{}{}
	}

	var items []types.RuleItem
	for _, c := range candidates {
		if _, ok := dependents[c.ItemID]; ok {
			items = append(items, c)
		}
	}
	return CircularResult{Items: items}
}
