package models

// UserRole represents the many-to-many relationship between users and roles.
// A user may hold zero or more roles; their effective permissions are the
// union of the permissions of every role they hold.
type UserRole struct {
	// UserID is the ID of the user in this mapping.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// RoleID is the ID of the role in this mapping.
	RoleID uint `gorm:"primaryKey;column:role_id"`
	// Role is the associated role (loaded via foreign key).
	Role Role `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the database table name for the UserRole model.
// This overrides GORM's default pluralized table naming.
func (UserRole) TableName() string {
	return "user_roles"
}
