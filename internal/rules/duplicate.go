// internal/rules/duplicate.go
package rules

import (
	"sort"

	"github.com/solatis/choicetree/internal/types"
)

/*
 * Duplicate rule detection.
 *
 * Two rules are duplicates when their normalized item lists are equal.
 * Normalization projects each item to {label, itemId, typeId} and sorts by
 * itemId ascending, so selection order does not matter.
 *
 * Label takes part in the comparison. Labels come from the same tree as the
 * ids, so this only differs from an id/type comparison when a label was
 * renamed between loads; that behavior is kept as is.
 *
 * Stable sort: items sharing an itemId keep their original relative order,
 * which keeps the comparison deterministic for malformed input.
 *
 * Callers pass rules of one type only. Point rules are never compared with
 * choice rules.
 */

// normalizedItem is the projection compared between rules.
type normalizedItem struct {
	Label  string
	ItemID types.ItemID
	TypeID types.RuleTypeID
}

// normalize projects and sorts items by id.
func normalize(items []types.RuleItem) []normalizedItem {
	out := make([]normalizedItem, len(items))
	for i, item := range items {
		out[i] = normalizedItem{Label: item.Label, ItemID: item.ItemID, TypeID: item.TypeID}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

// equalNormalized compares two normalized lists element by element.
func equalNormalized(a, b []normalizedItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FindDuplicateRule returns the normalized candidate list when an existing
// rule has exactly the same items, or nil when none does.
// Only the first match matters; the result does not say which rule matched.
func FindDuplicateRule(candidates []types.RuleItem, existing []types.Rule) []types.RuleItem {
	want := normalize(candidates)
	for _, rule := range existing {
		if equalNormalized(want, normalize(rule.Items)) {
			out := make([]types.RuleItem, len(want))
			for i, n := range want {
				out[i] = types.RuleItem{ItemID: n.ItemID, Label: n.Label, TypeID: n.TypeID}
			}
			return out
		}
	}
	return nil
}
