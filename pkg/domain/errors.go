package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidStage       = errors.New("invalid stage")
	ErrGuardViolation     = errors.New("guard violation")
	ErrRoleMismatch       = errors.New("role mismatch")
	ErrOutOfOrderApproval = errors.New("out of order approval")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInvalidKind        = errors.New("invalid kind")
)
