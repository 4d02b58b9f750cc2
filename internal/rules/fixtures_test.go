package rules

import (
	"testing"

	"github.com/solatis/choicetree/internal/types"
)

// testTree builds a two-group catalog:
//
//	Exterior / Roofing / Shingle Color {Red, Charcoal}
//	Exterior / Roofing / Gutters {Aluminum, Copper}
//	Interior / Kitchen / Countertop {Granite, Quartz}
//	Interior / Kitchen / Cabinets {Oak}
func testTree() *types.Tree {
	tree := &types.Tree{
		VersionID: 7,
		Groups: []types.Group{
			{
				ID: 1, Label: "Exterior",
				SubGroups: []types.SubGroup{{
					ID: 10, Label: "Roofing",
					Points: []types.Point{
						{ID: 100, Label: "Shingle Color", Choices: []types.Choice{
							{ID: 1000, Label: "Red"}, {ID: 1001, Label: "Charcoal"},
						}},
						{ID: 101, Label: "Gutters", Choices: []types.Choice{
							{ID: 1010, Label: "Aluminum"}, {ID: 1011, Label: "Copper"},
						}},
					},
				}},
			},
			{
				ID: 2, Label: "Interior",
				SubGroups: []types.SubGroup{{
					ID: 20, Label: "Kitchen",
					Points: []types.Point{
						{ID: 200, Label: "Countertop", Choices: []types.Choice{
							{ID: 2000, Label: "Granite"}, {ID: 2001, Label: "Quartz"},
						}},
						{ID: 201, Label: "Cabinets", Choices: []types.Choice{
							{ID: 2010, Label: "Oak"},
						}},
					},
				}},
			},
		},
	}
	tree.LinkParents()
	return tree
}

func mustCompile(t *testing.T, tree *types.Tree, rules []types.Rule) *CompiledTree {
	t.Helper()
	compiled, err := Compile(tree, rules)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return compiled
}

func item(id types.ItemID, label string, typeID types.RuleTypeID) types.RuleItem {
	return types.RuleItem{ItemID: id, Label: label, TypeID: typeID}
}
