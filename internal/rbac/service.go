package rbac

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/db/models"
)

// Service is the sole authority translating a user into their effective
// roles and permissions, and the sole authority for the permission cache
// lifecycle. Every mutation that can change a user's effective permissions
// invalidates the affected cache entries before returning.
type Service struct {
	db    *gorm.DB
	cache *PermissionCache
}

// NewService creates a new authorization service with the given cache.
// A nil cache gets the package defaults.
func NewService(db *gorm.DB, cache *PermissionCache) *Service {
	if cache == nil {
		cache = NewPermissionCache(DefaultCacheSize, DefaultCacheTTL)
	}

	return &Service{db: db, cache: cache}
}

// IsSuperuser reports whether the role set contains the superuser role.
// Every middleware gate consults this single predicate, so the bypass
// rule cannot drift between gates. The match is case-insensitive.
func (s *Service) IsSuperuser(roles []models.Role) bool {
	for _, role := range roles {
		if strings.EqualFold(role.Name, SuperuserRole) {
			return true
		}
	}

	return false
}

// GetAllRoles returns every role, ordered by name.
func (s *Service) GetAllRoles() ([]models.Role, error) {
	var roles []models.Role

	if err := s.db.Order("name").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

// GetRoleByID returns a single role or ErrRoleNotFound.
func (s *Service) GetRoleByID(roleID uint) (*models.Role, error) {
	var role models.Role

	err := s.db.First(&role, roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load role %d: %w", roleID, err)
	}

	return &role, nil
}

// GetRoleByName returns a single role by exact name or ErrRoleNotFound.
func (s *Service) GetRoleByName(name string) (*models.Role, error) {
	var role models.Role

	err := s.db.Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load role %q: %w", name, err)
	}

	return &role, nil
}

// GetAllPermissions returns the permission catalog, optionally filtered by
// category, ordered by category then name.
func (s *Service) GetAllPermissions(category string) ([]models.Permission, error) {
	var permissions []models.Permission

	query := s.db.Order("category, name")
	if category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Find(&permissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}

	return permissions, nil
}

// GetRolePermissions returns the permissions linked to a role.
func (s *Service) GetRolePermissions(roleID uint) ([]models.Permission, error) {
	var permissions []models.Permission

	err := s.db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Order("permissions.category, permissions.name").
		Find(&permissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions for role %d: %w", roleID, err)
	}

	return permissions, nil
}

// GetUserRoles returns the roles held by a user, ordered by name for a
// stable presentation order.
func (s *Service) GetUserRoles(userID uint64) ([]models.Role, error) {
	var roles []models.Role

	err := s.db.Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list roles for user %d: %w", userID, err)
	}

	return roles, nil
}

// GetUserPermissions returns the union of the permissions of every role the
// user holds, served from the cache when fresh.
//
// The superuser bypass is deliberately NOT applied here: this returns the
// literal permission list (a user profile shows exactly what is stored),
// while authorization decisions check IsSuperuser separately.
func (s *Service) GetUserPermissions(userID uint64) ([]models.Permission, error) {
	if permissions, ok := s.cache.Get(userID); ok {
		return permissions, nil
	}

	var permissions []models.Permission

	err := s.db.Table("permissions").
		Distinct("permissions.*").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("permissions.category, permissions.name").
		Find(&permissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions for user %d: %w", userID, err)
	}

	s.cache.Set(userID, permissions)

	return permissions, nil
}

// UserHasPermission reports whether the user's effective permission set
// contains the named permission. The match is exact; clients that want a
// forgiving comparison normalize on their side.
func (s *Service) UserHasPermission(userID uint64, permissionName string) (bool, error) {
	permissions, err := s.GetUserPermissions(userID)
	if err != nil {
		return false, err
	}

	for _, permission := range permissions {
		if permission.Name == permissionName {
			return true, nil
		}
	}

	return false, nil
}

// AssignRoleToUser grants a role to a user. Assigning an already-held role
// is a no-op, not an error.
func (s *Service) AssignRoleToUser(userID uint64, roleID uint) error {
	link := models.UserRole{UserID: userID, RoleID: roleID}

	err := s.db.Where(models.UserRole{UserID: userID, RoleID: roleID}).
		FirstOrCreate(&link).Error
	if err != nil {
		return fmt.Errorf("failed to assign role %d to user %d: %w", roleID, userID, err)
	}

	s.cache.Invalidate(userID)

	return nil
}

// RemoveRoleFromUser revokes a role from a user.
func (s *Service) RemoveRoleFromUser(userID uint64, roleID uint) error {
	err := s.db.Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&models.UserRole{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove role %d from user %d: %w", roleID, userID, err)
	}

	s.cache.Invalidate(userID)

	return nil
}

// CreateRole creates a new role and returns its ID.
func (s *Service) CreateRole(name, description string) (uint, error) {
	role := models.Role{Name: name, Description: description}

	if err := s.db.Create(&role).Error; err != nil {
		return 0, fmt.Errorf("failed to create role %q: %w", name, err)
	}

	return role.ID, nil
}

// UpdateRole renames or re-describes a role. Empty fields are left as is.
// A rename can change who holds the superuser role, so the whole cache is
// invalidated.
func (s *Service) UpdateRole(roleID uint, name, description string) error {
	role, err := s.GetRoleByID(roleID)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}

	if name != "" && name != role.Name {
		updates["name"] = name
	}

	if description != role.Description {
		updates["description"] = description
	}

	if len(updates) == 0 {
		return nil
	}

	err = s.db.Model(&models.Role{}).Where("id = ?", roleID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update role %d: %w", roleID, err)
	}

	s.cache.InvalidateAll()

	return nil
}

// AssignPermissionsToRole links permissions to a role. All insertions
// succeed or none do; already-present links are kept. Every holder of the
// role is affected, so the whole cache is invalidated.
func (s *Service) AssignPermissionsToRole(roleID uint, permissionIDs []uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, permissionID := range permissionIDs {
			link := models.RolePermission{RoleID: roleID, PermissionID: permissionID}

			if err := tx.Where(models.RolePermission{RoleID: roleID, PermissionID: permissionID}).
				FirstOrCreate(&link).Error; err != nil {
				return fmt.Errorf("failed to link permission %d to role %d: %w", permissionID, roleID, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateAll()

	return nil
}

// RemovePermissionsFromRole unlinks permissions from a role.
func (s *Service) RemovePermissionsFromRole(roleID uint, permissionIDs []uint) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	err := s.db.Where("role_id = ? AND permission_id IN ?", roleID, permissionIDs).
		Delete(&models.RolePermission{}).Error
	if err != nil {
		return fmt.Errorf("failed to unlink permissions from role %d: %w", roleID, err)
	}

	s.cache.InvalidateAll()

	return nil
}

// SetRolePermissions replaces a role's permission set with exactly the
// given permissions, transactionally.
func (s *Service) SetRolePermissions(roleID uint, permissionIDs []uint) error {
	if _, err := s.GetRoleByID(roleID); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).
			Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to clear permissions for role %d: %w", roleID, err)
		}

		for _, permissionID := range permissionIDs {
			link := models.RolePermission{RoleID: roleID, PermissionID: permissionID}

			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("failed to link permission %d to role %d: %w", permissionID, roleID, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateAll()

	return nil
}

// DeleteRole removes a role together with its permission links and user
// assignments, in one transaction so a partial failure cannot leave
// orphaned association rows.
func (s *Service) DeleteRole(roleID uint) error {
	if _, err := s.GetRoleByID(roleID); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).
			Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to delete permission links for role %d: %w", roleID, err)
		}

		if err := tx.Where("role_id = ?", roleID).
			Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("failed to delete user assignments for role %d: %w", roleID, err)
		}

		if err := tx.Delete(&models.Role{}, roleID).Error; err != nil {
			return fmt.Errorf("failed to delete role %d: %w", roleID, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateAll()

	return nil
}

// GetTaskByID loads a task for an ownership check, or ErrTaskNotFound.
func (s *Service) GetTaskByID(taskID uint64) (*models.Task, error) {
	var task models.Task

	err := s.db.First(&task, taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load task %d: %w", taskID, err)
	}

	return &task, nil
}

// GetColumnBySlug loads a column for an ownership check, or ErrColumnNotFound.
func (s *Service) GetColumnBySlug(slug string) (*models.Column, error) {
	var column models.Column

	err := s.db.Where("slug = ?", slug).First(&column).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrColumnNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load column %q: %w", slug, err)
	}

	return &column, nil
}
