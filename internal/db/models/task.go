package models

import "time"

// TaskStatus values stored on tasks. Comparison of statuses is
// case-insensitive in board operations for legacy data compatibility.
const (
	// TaskStatusStarted is the default status for new tasks.
	TaskStatusStarted = "STARTED"
	// TaskStatusCompleted marks a task as done; only completed tasks may
	// remain in a column that is being deleted.
	TaskStatusCompleted = "COMPLETED"
)

// Task represents a card on the kanban board.
type Task struct {
	// ID is the unique identifier for the task.
	ID uint64 `gorm:"primaryKey" json:"id"`
	// Title is the display title of the task.
	Title string `gorm:"size:255;not null" json:"title"`
	// Status is the workflow status of the task (e.g., STARTED, COMPLETED).
	Status string `gorm:"size:50;not null" json:"status"`
	// Assigned is the username of the user the task is assigned to.
	Assigned string `gorm:"size:100" json:"assigned"`
	// Date is the due date of the task as entered by the creator.
	Date string `gorm:"size:50" json:"date"`
	// ColumnID is the slug of the column the task currently sits in.
	ColumnID string `gorm:"column:column_id;size:100;not null" json:"columnId"`
	// Creator identifies who created the task. Legacy rows store either a
	// stringified user ID or a username; see rbac.ParseOwner.
	Creator string `gorm:"size:100;not null" json:"creator"`
	// CreatedAt is the timestamp when the task was created (managed by GORM).
	CreatedAt time.Time `json:"-"`
	// UpdatedAt is the timestamp when the task was last updated (managed by GORM).
	UpdatedAt time.Time `json:"-"`
}

// TableName specifies the database table name for the Task model.
// This overrides GORM's default pluralized table naming.
func (Task) TableName() string {
	return "tasks"
}
