package rules

import (
	"testing"

	"github.com/solatis/choicetree/internal/types"
)

func TestDependentIDs_Chain(t *testing.T) {
	// 100 -> 101 -> 200 ; 201 -> 200
	rules := []types.Rule{
		{OwnerID: 100, Type: types.RuleTypePoint, Items: []types.RuleItem{item(101, "", types.MustHave)}},
		{OwnerID: 101, Type: types.RuleTypePoint, Items: []types.RuleItem{item(200, "", types.MustHave)}},
		{OwnerID: 201, Type: types.RuleTypePoint, Items: []types.RuleItem{item(200, "", types.MustNotHave)}},
	}

	got := DependentIDs(rules, 200)
	want := []types.ItemID{100, 101, 201}
	if len(got) != len(want) {
		t.Fatalf("DependentIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DependentIDs()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if got := DependentIDs(rules, 100); len(got) != 0 {
		t.Errorf("DependentIDs(100) = %v, want empty", got)
	}
}

func TestDependentIDs_ExistingCycle(t *testing.T) {
	rules := []types.Rule{
		{OwnerID: 1, Items: []types.RuleItem{item(2, "", types.MustHave)}},
		{OwnerID: 2, Items: []types.RuleItem{item(1, "", types.MustHave)}},
	}

	got := DependentIDs(rules, 1)
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("DependentIDs() = %v, want [2]", got)
	}
}
