package models

import "time"

// Column represents a board column (a swimlane on the kanban board).
type Column struct {
	// ID is the unique identifier for the column.
	ID uint64 `gorm:"primaryKey" json:"id"`
	// Title is the display title of the column.
	Title string `gorm:"size:100;not null" json:"title"`
	// Slug is the unique url-safe identifier of the column used by the board client.
	Slug string `gorm:"unique;size:100;not null" json:"slug"`
	// Color is the display color of the column header.
	Color string `gorm:"size:20" json:"color"`
	// Creator identifies who created the column. Legacy rows store either a
	// stringified user ID or a username; see rbac.ParseOwner.
	Creator string `gorm:"size:100;not null" json:"creator"`
	// CreatedAt is the timestamp when the column was created (managed by GORM).
	CreatedAt time.Time `json:"-"`
	// UpdatedAt is the timestamp when the column was last updated (managed by GORM).
	UpdatedAt time.Time `json:"-"`
}

// TableName specifies the database table name for the Column model.
// This overrides GORM's default pluralized table naming.
func (Column) TableName() string {
	return "columns"
}
