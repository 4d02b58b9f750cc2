// internal/rules/validate.go
package rules

import (
	"fmt"

	"github.com/solatis/choicetree/internal/types"
)

/*
 * Save-time validation orchestration.
 *
 * Validates one save attempt for a rule and decides how the save proceeds.
 *
 * Validation flow:
 *   1. Block: unknown rule type, empty candidate set, oversized rule, invalid
 *      item type id, or a candidate that targets the edited item itself
 *   2. Circular reference: candidates intersected with dependent ids
 *   3. Duplicate: normalized candidates compared with existing rules of the
 *      same type (the rule being edited is skipped)
 *
 * Circular and duplicate findings are advisory. Both are reported as warnings
 * in that order and the verdict names the first one; the user confirms or
 * declines. Declining is the caller's concern and never reaches this code.
 */

// Verdict is the outcome of validating a save attempt.
type Verdict int

const (
	VerdictProceed Verdict = iota
	VerdictConfirmCircular
	VerdictConfirmDuplicate
	VerdictBlocked
)

// String returns the verdict name used in logs, metrics and API responses.
func (v Verdict) String() string {
	switch v {
	case VerdictProceed:
		return "proceed"
	case VerdictConfirmCircular:
		return "confirm_circular"
	case VerdictConfirmDuplicate:
		return "confirm_duplicate"
	case VerdictBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// WarningKind distinguishes the two advisory checks.
type WarningKind string

const (
	WarningCircular  WarningKind = "circular"
	WarningDuplicate WarningKind = "duplicate"
)

// Warning is one confirmation prompt for the user.
type Warning struct {
	Kind    WarningKind
	Message string
	Items   []types.RuleItem
}

// Request describes one save attempt.
type Request struct {
	RuleType     types.RuleType
	RuleID       types.RuleID // rule being edited; empty for a new rule
	Edited       EditedItem
	Candidates   []types.RuleItem
	DependentIDs []types.ItemID
}

// Result is the validation outcome for a Request.
type Result struct {
	ValidationID types.ValidationID
	Verdict      Verdict
	Warnings     []Warning
	Reason       error // set when Verdict is VerdictBlocked
}

// NeedsConfirmation reports whether the user must confirm before saving.
func (r Result) NeedsConfirmation() bool {
	return len(r.Warnings) > 0
}

// Validate checks req against the compiled tree.
func Validate(tree *CompiledTree, req Request) Result {
	result := Result{ValidationID: types.NewValidationID()}

	if err := checkBlocked(req); err != nil {
		result.Verdict = VerdictBlocked
		result.Reason = err
		return result
	}

	circular := CheckCircularReference(req.Candidates, req.DependentIDs)
	if circular.Found() {
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningCircular,
			Message: tree.CircularWarning(req.RuleType, circular),
			Items:   circular.Items,
		})
	}

	duplicate := FindDuplicateRule(req.Candidates, tree.RulesOfType(req.RuleType, req.RuleID))
	if len(duplicate) > 0 {
		result.Warnings = append(result.Warnings, Warning{
			Kind:    WarningDuplicate,
			Message: DuplicateWarning(duplicate),
			Items:   duplicate,
		})
	}

	switch {
	case len(result.Warnings) == 0:
		result.Verdict = VerdictProceed
	case result.Warnings[0].Kind == WarningCircular:
		result.Verdict = VerdictConfirmCircular
	default:
		result.Verdict = VerdictConfirmDuplicate
	}
	return result
}

// checkBlocked returns the reason a request cannot be saved at all.
func checkBlocked(req Request) error {
	if _, err := types.ParseRuleType(string(req.RuleType)); err != nil {
		return err
	}
	if len(req.Candidates) == 0 {
		return types.ErrEmptyRule
	}
	if len(req.Candidates) > types.MaxRuleItems {
		return types.ErrTooManyRuleItems
	}
	for _, c := range req.Candidates {
		if c.ItemID == req.Edited.ID {
			return fmt.Errorf("%w: item %d", types.ErrSelfReference, c.ItemID)
		}
		if err := validateTypeID(c.TypeID); err != nil {
			return err
		}
	}
	return nil
}
