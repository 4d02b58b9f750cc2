// internal/rules/dependents.go
package rules

import (
	"sort"

	"github.com/solatis/choicetree/internal/types"
)

/*
 * Dependent id computation for circular reference checks.
 *
 * Rules form a directed graph: owner -> each target item. Adding a rule
 * edited -> X closes a cycle exactly when edited is already reachable from X.
 * DependentIDs walks the reversed graph breadth-first from the edited item
 * and returns every id that reaches it.
 *
 * Callers pass rules of a single type; point and choice ids are separate id
 * spaces.
 */

// DependentIDs returns the ids from which edited is reachable, sorted ascending.
// The edited id itself is excluded.
func DependentIDs(rules []types.Rule, edited types.ItemID) []types.ItemID {
	reverse := make(map[types.ItemID][]types.ItemID)
	for _, r := range rules {
		for _, item := range r.Items {
			reverse[item.ItemID] = append(reverse[item.ItemID], r.OwnerID)
		}
	}

	visited := map[types.ItemID]bool{edited: true}
	queue := []types.ItemID{edited}
	var out []types.ItemID

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, owner := range reverse[current] {
			if visited[owner] {
				continue
			}
			visited[owner] = true
			out = append(out, owner)
			queue = append(queue, owner)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
