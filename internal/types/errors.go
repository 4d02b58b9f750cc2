package types

import "errors"

// Sentinel errors for choicetree operations.
var (
	// ErrEmptyRule indicates a save attempt with no target items.
	ErrEmptyRule = errors.New("rule has no items")

	// ErrSelfReference indicates a rule that targets its own owner.
	ErrSelfReference = errors.New("rule targets the item being edited")

	// ErrUnknownRuleType indicates a rule type other than point or choice.
	ErrUnknownRuleType = errors.New("unknown rule type")

	// ErrInvalidTypeID indicates a rule item type other than MUST HAVE or MUST NOT HAVE.
	ErrInvalidTypeID = errors.New("invalid rule item type id")

	// ErrTooManyRuleItems indicates a rule exceeds MaxRuleItems.
	ErrTooManyRuleItems = errors.New("rule has too many items")

	// ErrTreeNotFound indicates no snapshot exists for a tree version.
	ErrTreeNotFound = errors.New("tree version not found")

	// ErrRuleNotFound indicates no rule exists with the given id.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrUnknownFilter indicates a search filter that names no tree level.
	ErrUnknownFilter = errors.New("unknown search filter")
)

// MaxRuleItems bounds a single rule; editors select from one catalog page.
const MaxRuleItems = 256
