package rbac

import "errors"

var (
	// ErrRoleNotFound is returned when a role ID has no matching row.
	ErrRoleNotFound = errors.New("role not found")

	// ErrTaskNotFound is returned when a task ID has no matching row.
	ErrTaskNotFound = errors.New("task not found")

	// ErrColumnNotFound is returned when a column slug has no matching row.
	ErrColumnNotFound = errors.New("column not found")
)
