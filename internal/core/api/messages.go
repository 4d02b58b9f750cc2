package api

import (
	"github.com/solatis/choicetree/internal/rules"
	"github.com/solatis/choicetree/internal/types"
)

// ValidateRuleRequest describes one save attempt to be checked.
// TreeVersionID zero means the latest published version.
type ValidateRuleRequest struct {
	TreeVersionID types.TreeVersionID `json:"treeVersionId,omitempty"`
	RuleType      string              `json:"ruleType"`
	RuleID        types.RuleID        `json:"ruleId,omitempty"`
	EditedID      types.ItemID        `json:"editedId"`
	EditedPointID types.ItemID        `json:"editedPointId,omitempty"`
	Items         []types.RuleItem    `json:"items"`
}

// Warning is one confirmation prompt.
type Warning struct {
	Kind    string           `json:"kind"`
	Message string           `json:"message"`
	Items   []types.RuleItem `json:"items"`
}

// ValidateRuleResponse carries the verdict and any warnings in order.
type ValidateRuleResponse struct {
	ValidationID  types.ValidationID  `json:"validationId"`
	TreeVersionID types.TreeVersionID `json:"treeVersionId"`
	Verdict       string              `json:"verdict"`
	Warnings      []Warning           `json:"warnings,omitempty"`
	Reason        string              `json:"reason,omitempty"`
}

// SaveRuleRequest validates and persists a rule. Confirmed acknowledges the
// warnings of a previous ValidateRule call.
type SaveRuleRequest struct {
	ValidateRuleRequest
	Confirmed bool `json:"confirmed"`
}

// SaveRuleResponse returns the stored rule and the validation it passed.
type SaveRuleResponse struct {
	Rule       types.Rule           `json:"rule"`
	Validation ValidateRuleResponse `json:"validation"`
}

// DeleteRuleRequest removes a saved rule.
type DeleteRuleRequest struct {
	RuleID types.RuleID `json:"ruleId"`
}

// DeleteRuleResponse is empty on success.
type DeleteRuleResponse struct{}

// SearchTreeRequest searches one tree version.
type SearchTreeRequest struct {
	TreeVersionID types.TreeVersionID `json:"treeVersionId,omitempty"`
	Keyword       string              `json:"keyword"`
	Filter        string              `json:"filter,omitempty"`
}

// TreeNode is a flattened tree node.
type TreeNode struct {
	Kind     string       `json:"kind"`
	ID       types.ItemID `json:"id"`
	ParentID types.ItemID `json:"parentId,omitempty"`
	Label    string       `json:"label"`
}

// SearchNode is a tree node with its search state.
type SearchNode struct {
	TreeNode
	Matched bool `json:"matched"`
	Open    bool `json:"open"`
}

// SearchTreeResponse lists every node in tree order.
type SearchTreeResponse struct {
	TreeVersionID types.TreeVersionID `json:"treeVersionId"`
	MatchCount    int                 `json:"matchCount"`
	Nodes         []SearchNode        `json:"nodes"`
}

// EligibleItemsRequest asks which nodes may be added to the edited rule.
type EligibleItemsRequest struct {
	TreeVersionID types.TreeVersionID `json:"treeVersionId,omitempty"`
	RuleType      string              `json:"ruleType"`
	EditedID      types.ItemID        `json:"editedId"`
	EditedPointID types.ItemID        `json:"editedPointId,omitempty"`
	Existing      []types.RuleItem    `json:"existing,omitempty"`
}

// EligibleItemsResponse lists eligible nodes in tree order.
type EligibleItemsResponse struct {
	TreeVersionID types.TreeVersionID `json:"treeVersionId"`
	Items         []TreeNode          `json:"items"`
}

func treeNode(n types.Node) TreeNode {
	return TreeNode{Kind: n.Kind.String(), ID: n.ID, ParentID: n.ParentID, Label: n.Label}
}

func validationResponse(version types.TreeVersionID, r rules.Result) ValidateRuleResponse {
	resp := ValidateRuleResponse{
		ValidationID:  r.ValidationID,
		TreeVersionID: version,
		Verdict:       r.Verdict.String(),
	}
	for _, w := range r.Warnings {
		resp.Warnings = append(resp.Warnings, Warning{Kind: string(w.Kind), Message: w.Message, Items: w.Items})
	}
	if r.Reason != nil {
		resp.Reason = r.Reason.Error()
	}
	return resp
}
