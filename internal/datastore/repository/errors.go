package repository

import "errors"

// Sentinel errors surfaced to callers; boundaries check them with
// errors.Is to pick HTTP status codes.
var (
	ErrAlertRuleNotFound = errors.New("alert rule not found")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrInvalidConfig     = errors.New("invalid historical config")
)
