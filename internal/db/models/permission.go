package models

import "time"

// Permission represents a specific permission in the authorization system.
// Permissions define granular access rights in resource.action format and
// are immutable reference data seeded at setup time; administrators manage
// role-to-permission links, not the permission catalog itself.
type Permission struct {
	// ID is the unique identifier for the permission.
	ID uint `gorm:"primaryKey" json:"id"`
	// Name is the unique permission identifier in resource.action format (e.g., "task.create").
	Name string `gorm:"unique;size:100;not null" json:"name"`
	// Description provides a human-readable explanation of what this permission grants.
	Description string `gorm:"size:255" json:"description"`
	// Category is a grouping label used for presentation only.
	Category string `gorm:"size:100;not null" json:"category"`
	// CreatedAt is the timestamp when the permission was created (managed by GORM).
	CreatedAt time.Time `json:"-"`
	// UpdatedAt is the timestamp when the permission was last updated (managed by GORM).
	UpdatedAt time.Time `json:"-"`
}

// TableName specifies the database table name for the Permission model.
// This overrides GORM's default pluralized table naming.
func (Permission) TableName() string {
	return "permissions"
}
