package types

import (
	"time"

	"github.com/google/uuid"
)

// RuleID represents a UUIDv7 rule identifier.
type RuleID string

// ValidationID identifies one validation run in logs and API responses.
type ValidationID string

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewValidationID generates a UUIDv7 validation identifier.
func NewValidationID() ValidationID {
	return ValidationID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// RuleIDTime extracts the creation time embedded in a UUIDv7 rule id.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func RuleIDTime(id RuleID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
