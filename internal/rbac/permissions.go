package rbac

// SuperuserRole is the role name that bypasses all permission checks.
// The comparison is case-insensitive; see Service.IsSuperuser.
const SuperuserRole = "admin"

// Permission constants define the available permissions in the system.
// These are seeded at setup time and referenced by the middleware gates.
const (
	// PermTaskView allows viewing tasks on the board.
	PermTaskView = "task.view"
	// PermTaskCreate allows creating new tasks.
	PermTaskCreate = "task.create"
	// PermTaskUpdate allows updating tasks the user created.
	PermTaskUpdate = "task.update"
	// PermTaskDelete allows deleting tasks the user created.
	PermTaskDelete = "task.delete"

	// PermTaskUpdateAny allows updating any task regardless of creator.
	PermTaskUpdateAny = "task.update.any"
	// PermTaskDeleteAny allows deleting any task regardless of creator.
	PermTaskDeleteAny = "task.delete.any"

	// PermColumnCreate allows creating new board columns.
	PermColumnCreate = "column.create"
	// PermColumnDelete allows deleting columns the user created.
	PermColumnDelete = "column.delete"
	// PermColumnDeleteAny allows deleting any column regardless of creator.
	PermColumnDeleteAny = "column.delete.any"
)

// TaskAction is a board operation gated by RequireTaskPermission.
type TaskAction string

// Task actions understood by the task permission gate.
const (
	TaskActionView   TaskAction = "view"
	TaskActionCreate TaskAction = "create"
	TaskActionUpdate TaskAction = "update"
	TaskActionDelete TaskAction = "delete"
)

// Permission returns the base permission name for the action, e.g. "task.update".
func (a TaskAction) Permission() string {
	return "task." + string(a)
}

// AnyPermission returns the "any resource" permission name for the action,
// e.g. "task.update.any".
func (a TaskAction) AnyPermission() string {
	return "task." + string(a) + ".any"
}

// ColumnAction is a column operation gated by RequireColumnPermission.
type ColumnAction string

// Column actions understood by the column permission gate.
const (
	ColumnActionCreate ColumnAction = "create"
	ColumnActionDelete ColumnAction = "delete"
)

// Permission returns the base permission name for the action, e.g. "column.delete".
func (a ColumnAction) Permission() string {
	return "column." + string(a)
}

// AnyPermission returns the "any resource" permission name for the action.
func (a ColumnAction) AnyPermission() string {
	return "column." + string(a) + ".any"
}
