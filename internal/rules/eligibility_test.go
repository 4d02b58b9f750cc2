package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/choicetree/internal/types"
)

func pointNode(t *testing.T, c *CompiledTree, id types.ItemID) types.Node {
	t.Helper()
	p, ok := c.Point(id)
	if !ok {
		t.Fatalf("point %d not in tree", id)
	}
	return p.Node()
}

func choiceNode(t *testing.T, c *CompiledTree, id types.ItemID) types.Node {
	t.Helper()
	ch, ok := c.Choice(id)
	if !ok {
		t.Fatalf("choice %d not in tree", id)
	}
	return ch.Node()
}

func TestIsItemEligible_PointExcludesSelf(t *testing.T) {
	c := mustCompile(t, testTree(), nil)

	if c.IsItemEligible(types.RuleTypePoint, EditedItem{ID: 100}, pointNode(t, c, 100), nil) {
		t.Error("IsItemEligible(self) = true, want false")
	}
	if !c.IsItemEligible(types.RuleTypePoint, EditedItem{ID: 100}, pointNode(t, c, 200), nil) {
		t.Error("IsItemEligible(200) = false, want true")
	}
}

func TestIsItemEligible_PointExcludesExistingItems(t *testing.T) {
	c := mustCompile(t, testTree(), nil)
	existing := []types.RuleItem{item(200, "Countertop", types.MustHave)}

	if c.IsItemEligible(types.RuleTypePoint, EditedItem{ID: 100}, pointNode(t, c, 200), existing) {
		t.Error("IsItemEligible(existing) = true, want false")
	}
}

func TestIsItemEligible_PointExcludesUsedChoices(t *testing.T) {
	rules := []types.Rule{{
		RuleID: "r1", OwnerID: 1000, Type: types.RuleTypeChoice,
		Items: []types.RuleItem{item(2001, "Quartz", types.MustHave)},
	}}
	c := mustCompile(t, testTree(), rules)

	// Point 200 owns choice 2001, which a choice rule already targets
	if c.IsItemEligible(types.RuleTypePoint, EditedItem{ID: 100}, pointNode(t, c, 200), nil) {
		t.Error("IsItemEligible(200) = true, want false (choice 2001 used)")
	}
	if !c.IsItemEligible(types.RuleTypePoint, EditedItem{ID: 100}, pointNode(t, c, 201), nil) {
		t.Error("IsItemEligible(201) = false, want true")
	}
}

func TestIsItemEligible_PointRejectsNonPoints(t *testing.T) {
	c := mustCompile(t, testTree(), nil)

	if c.IsItemEligible(types.RuleTypePoint, EditedItem{ID: 100}, choiceNode(t, c, 2000), nil) {
		t.Error("IsItemEligible(choice) for point rule = true, want false")
	}
	group := testTree().Groups[0].Node()
	if c.IsItemEligible(types.RuleTypePoint, EditedItem{ID: 100}, group, nil) {
		t.Error("IsItemEligible(group) = true, want false")
	}
}

func TestIsItemEligible_ChoiceExcludesOwnPoint(t *testing.T) {
	c := mustCompile(t, testTree(), nil)
	edited := EditedItem{ID: 1000} // Red under Shingle Color (100)

	if c.IsItemEligible(types.RuleTypeChoice, edited, choiceNode(t, c, 1000), nil) {
		t.Error("IsItemEligible(self) = true, want false")
	}
	if c.IsItemEligible(types.RuleTypeChoice, edited, pointNode(t, c, 100), nil) {
		t.Error("IsItemEligible(parent point) = true, want false")
	}
	if c.IsItemEligible(types.RuleTypeChoice, edited, choiceNode(t, c, 1001), nil) {
		t.Error("IsItemEligible(sibling choice) = true, want false")
	}
	if !c.IsItemEligible(types.RuleTypeChoice, edited, choiceNode(t, c, 1010), nil) {
		t.Error("IsItemEligible(1010) = false, want true")
	}
	if !c.IsItemEligible(types.RuleTypeChoice, edited, pointNode(t, c, 101), nil) {
		t.Error("IsItemEligible(point 101) = false, want true")
	}
}

func TestIsItemEligible_ChoiceExcludesUsed(t *testing.T) {
	rules := []types.Rule{{
		RuleID: "r1", OwnerID: 100, Type: types.RuleTypePoint,
		Items: []types.RuleItem{item(201, "Cabinets", types.MustNotHave)},
	}}
	c := mustCompile(t, testTree(), rules)

	if c.IsItemEligible(types.RuleTypeChoice, EditedItem{ID: 1000}, pointNode(t, c, 201), nil) {
		t.Error("IsItemEligible(used point) = true, want false")
	}
}

func TestEligibleItems(t *testing.T) {
	rules := []types.Rule{{
		RuleID: "r1", OwnerID: 101, Type: types.RuleTypePoint,
		Items: []types.RuleItem{item(201, "Cabinets", types.MustHave)},
	}}
	c := mustCompile(t, testTree(), rules)

	got := c.EligibleItems(types.RuleTypePoint, EditedItem{ID: 100}, nil)
	if len(got) != 2 {
		t.Fatalf("len(EligibleItems()) = %v, want 2 (%v)", len(got), got)
	}
	if got[0].ID != 101 || got[1].ID != 200 {
		t.Errorf("EligibleItems() ids = [%v %v], want [101 200]", got[0].ID, got[1].ID)
	}
}

// Property-based test: self is never eligible
func TestIsItemEligible_PropertySelf(t *testing.T) {
	c := mustCompile(t, testTree(), nil)
	var nodes []types.Node
	c.Tree.Walk(func(n types.Node) { nodes = append(nodes, n) })

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("edited item is never eligible", prop.ForAll(
		func(idx int, choiceRule bool) bool {
			n := nodes[idx%len(nodes)]
			ruleType := types.RuleTypePoint
			if choiceRule {
				ruleType = types.RuleTypeChoice
			}
			return !c.IsItemEligible(ruleType, EditedItem{ID: n.ID}, n, nil)
		},
		gen.IntRange(0, 1000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property-based test: an id used by any rule stays ineligible for every rule type
func TestIsItemEligible_PropertyMonotonic(t *testing.T) {
	tree := testTree()
	var targets []types.Node
	tree.Walk(func(n types.Node) {
		if n.Kind == types.KindPoint || n.Kind == types.KindChoice {
			targets = append(targets, n)
		}
	})

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("used ids are ineligible", prop.ForAll(
		func(usedIdx int, ownerIsChoice bool, queryChoice bool) bool {
			used := targets[usedIdx%len(targets)]
			ruleType := types.RuleTypePoint
			if ownerIsChoice {
				ruleType = types.RuleTypeChoice
			}
			rules := []types.Rule{{
				RuleID: "r", OwnerID: 1, Type: ruleType,
				Items: []types.RuleItem{{ItemID: used.ID, TypeID: types.MustHave}},
			}}
			c, err := Compile(tree, rules)
			if err != nil {
				return false
			}

			query := types.RuleTypePoint
			if queryChoice {
				query = types.RuleTypeChoice
			}
			// edited id 9999 is not in the tree, so only the used index can exclude
			return !c.IsItemEligible(query, EditedItem{ID: 9999}, used, nil)
		},
		gen.IntRange(0, 1000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
