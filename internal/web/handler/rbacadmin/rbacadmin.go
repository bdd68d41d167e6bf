// Package rbacadmin provides the role and permission administration API.
//
// Every route except the public roles endpoint is gated on the admin
// role; the resolution service keeps its permission cache coherent, so
// the handlers never touch the cache directly.
package rbacadmin

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/rbac"
	"github.com/flowboard/flowboard/internal/web/handler"
)

// Route paths registered by this handler.
const (
	PublicUserRolesPath = "/rbac/public/users/:id/roles"
	RolesPath           = "/rbac/roles"
	RolePath            = "/rbac/roles/:id"
	RolePermissionsPath = "/rbac/roles/:id/permissions"
	PermissionsPath     = "/rbac/permissions"
	UserRolePath        = "/rbac/users/:userId/roles/:roleId"
)

// User-facing error messages.
const (
	ErrRoleNotFound   = "Role not found"
	ErrInvalidID      = "Invalid identifier"
	ErrValidation     = "Invalid input"
	ErrInternal       = "Internal server error"
	ErrNotYourProfile = "You can only view your own roles"
)

type roleInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=255"`
}

type roleUpdateInput struct {
	Name        string `json:"name" validate:"omitempty,min=2,max=100"`
	Description string `json:"description" validate:"max=255"`
}

type rolePermissionsInput struct {
	PermissionIDs []uint `json:"permissionIds" validate:"required"`
}

type roleResponse struct {
	Success bool         `json:"success"`
	Role    *models.Role `json:"role"`
}

type rolesResponse struct {
	Success bool          `json:"success"`
	Roles   []models.Role `json:"roles"`
}

type roleDetailResponse struct {
	Success     bool                `json:"success"`
	Role        *models.Role        `json:"role"`
	Permissions []models.Permission `json:"permissions"`
}

type permissionsResponse struct {
	Success     bool                `json:"success"`
	Permissions []models.Permission `json:"permissions"`
}

type userAuthorizationResponse struct {
	Success     bool                `json:"success"`
	Roles       []models.Role       `json:"roles"`
	Permissions []models.Permission `json:"permissions"`
}

// Service is the RBAC administration handler service.
type Service struct {
	handler.Service
	rbac      *rbac.Service
	validator *validator.Validate
}

// Handler is the RBAC administration handler.
var Handler = Service{}

// Init initializes the RBAC administration handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, rbacService *rbac.Service) error {
	if app == nil || cfg == nil || db == nil || rbacService == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.rbac = rbacService
	s.validator = validator.New()

	app.Get(PublicUserRolesPath, s.GetUserAuthorization)

	admin := rbac.RequireRole(rbacService, rbac.SuperuserRole)

	app.Get(RolesPath, admin, s.ListRoles)
	app.Post(RolesPath, admin, s.CreateRole)
	app.Get(RolePath, admin, s.GetRole)
	app.Put(RolePath, admin, s.UpdateRole)
	app.Delete(RolePath, admin, s.DeleteRole)
	app.Put(RolePermissionsPath, admin, s.SetRolePermissions)
	app.Get(PermissionsPath, admin, s.ListPermissions)
	app.Post(UserRolePath, admin, s.AssignUserRole)
	app.Delete(UserRolePath, admin, s.RemoveUserRole)

	return nil
}

// GetUserAuthorization returns the roles and effective permissions of a
// user. A session user may only query their own ID; admins may query
// anyone. This endpoint backs the board client's authorization context.
func (s *Service) GetUserAuthorization(c *fiber.Ctx) error {
	user, ok := rbac.SessionUser(c)
	if !ok {
		return handler.Fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrInvalidID)
	}

	callerRoles, err := s.rbac.GetUserRoles(user.ID)
	if err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to resolve caller roles")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	if userID != user.ID && !s.rbac.IsSuperuser(callerRoles) {
		return handler.Fail(c, fiber.StatusForbidden, ErrNotYourProfile)
	}

	roles := callerRoles

	if userID != user.ID {
		if roles, err = s.rbac.GetUserRoles(userID); err != nil {
			log.Error().Err(err).Uint64("user_id", userID).Msg("failed to resolve roles")

			return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
		}
	}

	permissions, err := s.rbac.GetUserPermissions(userID)
	if err != nil {
		log.Error().Err(err).Uint64("user_id", userID).Msg("failed to resolve permissions")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.JSON(userAuthorizationResponse{Success: true, Roles: roles, Permissions: permissions})
}

// ListRoles returns every role.
func (s *Service) ListRoles(c *fiber.Ctx) error {
	roles, err := s.rbac.GetAllRoles()
	if err != nil {
		log.Error().Err(err).Msg("failed to list roles")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.JSON(rolesResponse{Success: true, Roles: roles})
}

// CreateRole creates a new role.
func (s *Service) CreateRole(c *fiber.Ctx) error {
	input := new(roleInput)

	if err := c.BodyParser(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if err := s.validator.Struct(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	roleID, err := s.rbac.CreateRole(input.Name, input.Description)
	if err != nil {
		log.Error().Err(err).Str("name", input.Name).Msg("failed to create role")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	role, err := s.rbac.GetRoleByID(roleID)
	if err != nil {
		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.Status(fiber.StatusCreated).JSON(roleResponse{Success: true, Role: role})
}

// GetRole returns a role together with its permission set.
func (s *Service) GetRole(c *fiber.Ctx) error {
	roleID, err := roleIDParam(c)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrInvalidID)
	}

	role, err := s.rbac.GetRoleByID(roleID)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, ErrRoleNotFound)
	}

	if err != nil {
		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	permissions, err := s.rbac.GetRolePermissions(roleID)
	if err != nil {
		log.Error().Err(err).Uint("role_id", roleID).Msg("failed to list role permissions")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.JSON(roleDetailResponse{Success: true, Role: role, Permissions: permissions})
}

// UpdateRole renames or re-describes a role.
func (s *Service) UpdateRole(c *fiber.Ctx) error {
	roleID, err := roleIDParam(c)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrInvalidID)
	}

	input := new(roleUpdateInput)

	if err = c.BodyParser(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if err = s.validator.Struct(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	err = s.rbac.UpdateRole(roleID, input.Name, input.Description)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, ErrRoleNotFound)
	}

	if err != nil {
		log.Error().Err(err).Uint("role_id", roleID).Msg("failed to update role")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return handler.OK(c, "Role updated")
}

// DeleteRole deletes a role and its assignments.
func (s *Service) DeleteRole(c *fiber.Ctx) error {
	roleID, err := roleIDParam(c)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrInvalidID)
	}

	err = s.rbac.DeleteRole(roleID)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, ErrRoleNotFound)
	}

	if err != nil {
		log.Error().Err(err).Uint("role_id", roleID).Msg("failed to delete role")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return handler.OK(c, "Role deleted")
}

// SetRolePermissions replaces the permission set of a role.
func (s *Service) SetRolePermissions(c *fiber.Ctx) error {
	roleID, err := roleIDParam(c)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrInvalidID)
	}

	input := new(rolePermissionsInput)

	if err = c.BodyParser(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if err = s.validator.Struct(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	err = s.rbac.SetRolePermissions(roleID, input.PermissionIDs)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, ErrRoleNotFound)
	}

	if err != nil {
		log.Error().Err(err).Uint("role_id", roleID).Msg("failed to set role permissions")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return handler.OK(c, "Role permissions updated")
}

// ListPermissions returns the permission catalog, optionally filtered by
// the category query parameter.
func (s *Service) ListPermissions(c *fiber.Ctx) error {
	permissions, err := s.rbac.GetAllPermissions(c.Query("category"))
	if err != nil {
		log.Error().Err(err).Msg("failed to list permissions")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.JSON(permissionsResponse{Success: true, Permissions: permissions})
}

// AssignUserRole grants a role to a user.
func (s *Service) AssignUserRole(c *fiber.Ctx) error {
	userID, roleID, err := userRoleParams(c)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrInvalidID)
	}

	if _, err = s.rbac.GetRoleByID(roleID); errors.Is(err, rbac.ErrRoleNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, ErrRoleNotFound)
	} else if err != nil {
		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	if err = s.rbac.AssignRoleToUser(userID, roleID); err != nil {
		log.Error().Err(err).Uint64("user_id", userID).Uint("role_id", roleID).
			Msg("failed to assign role")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return handler.OK(c, "Role assigned")
}

// RemoveUserRole revokes a role from a user.
func (s *Service) RemoveUserRole(c *fiber.Ctx) error {
	userID, roleID, err := userRoleParams(c)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrInvalidID)
	}

	if err = s.rbac.RemoveRoleFromUser(userID, roleID); err != nil {
		log.Error().Err(err).Uint64("user_id", userID).Uint("role_id", roleID).
			Msg("failed to remove role")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return handler.OK(c, "Role removed")
}

func roleIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}

	return uint(id), nil
}

func userRoleParams(c *fiber.Ctx) (uint64, uint, error) {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 64)
	if err != nil {
		return 0, 0, err
	}

	roleID, err := strconv.ParseUint(c.Params("roleId"), 10, 32)
	if err != nil {
		return 0, 0, err
	}

	return userID, uint(roleID), nil
}
