package rbac

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/web/session"
)

// Fiber Locals keys populated by the middleware for downstream handlers.
const (
	// LocalUser holds the authenticated models.User.
	LocalUser = "currentUser"
	// LocalRoles holds the resolved []models.Role set by AttachAuthorization.
	LocalRoles = "userRoles"
	// LocalPermissions holds the resolved []models.Permission set by AttachAuthorization.
	LocalPermissions = "userPermissions"
)

// Rejection messages returned to clients. The specific gate that failed is
// logged, not exposed.
const (
	msgAuthRequired  = "Authentication required"
	msgNoPermission  = "You do not have permission to perform this action"
	msgNoRole        = "You do not have the required role to perform this action"
	msgNotOwner      = "You can only modify resources you created"
	msgTaskNotFound  = "Task not found"
	msgColNotFound   = "Column not found"
	msgTaskIDNeeded  = "Task ID is required"
	msgColSlugNeeded = "Column slug is required"
	msgCheckFailed   = "Error checking permissions"
)

type rejection struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func reject(c *fiber.Ctx, gate, decision string, status int, message string) error {
	authzDecisions.WithLabelValues(gate, decision).Inc()

	return c.Status(status).JSON(rejection{Success: false, Message: message})
}

func grant(c *fiber.Ctx, gate, decision string) error {
	authzDecisions.WithLabelValues(gate, decision).Inc()

	return c.Next()
}

// SessionUser reads the authenticated user from the request's session
// cookie. It returns false when there is no valid session.
func SessionUser(c *fiber.Ctx) (*models.User, bool) {
	if user, ok := c.Locals(LocalUser).(*models.User); ok {
		return user, true
	}

	sessionID := c.Cookies(session.CookieName)
	if sessionID == "" {
		return nil, false
	}

	sessionData := new(session.Data)
	if err := sessionData.Read(sessionID); err != nil {
		return nil, false
	}

	if sessionData.User.ID == 0 {
		return nil, false
	}

	c.Locals(LocalUser, &sessionData.User)

	return &sessionData.User, true
}

// RequirePermission creates Fiber middleware that requires a specific
// permission. Superusers bypass the check.
func RequirePermission(svc *Service, permission string) fiber.Handler {
	const gate = "permission"

	return func(c *fiber.Ctx) error {
		user, ok := SessionUser(c)
		if !ok {
			return reject(c, gate, decisionUnauthenticated, fiber.StatusUnauthorized, msgAuthRequired)
		}

		roles, err := svc.GetUserRoles(user.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Str("permission", permission).
				Msg("failed to resolve roles, denying")

			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		if svc.IsSuperuser(roles) {
			return grant(c, gate, decisionBypass)
		}

		has, err := svc.UserHasPermission(user.ID, permission)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Str("permission", permission).
				Msg("failed to check permission, denying")

			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		if !has {
			log.Warn().Uint64("user_id", user.ID).Str("permission", permission).
				Msg("user lacks required permission")

			return reject(c, gate, decisionDenied, fiber.StatusForbidden, msgNoPermission)
		}

		return grant(c, gate, decisionGranted)
	}
}

// RequireRole creates Fiber middleware that requires any of the given
// roles. Role names are matched case-sensitively against the stored names;
// superusers bypass the check.
func RequireRole(svc *Service, roleNames ...string) fiber.Handler {
	const gate = "role"

	return func(c *fiber.Ctx) error {
		user, ok := SessionUser(c)
		if !ok {
			return reject(c, gate, decisionUnauthenticated, fiber.StatusUnauthorized, msgAuthRequired)
		}

		roles, err := svc.GetUserRoles(user.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Strs("roles", roleNames).
				Msg("failed to resolve roles, denying")

			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		if svc.IsSuperuser(roles) {
			return grant(c, gate, decisionBypass)
		}

		for _, role := range roles {
			for _, required := range roleNames {
				if role.Name == required {
					return grant(c, gate, decisionGranted)
				}
			}
		}

		log.Warn().Uint64("user_id", user.ID).Strs("roles", roleNames).
			Msg("user lacks required role")

		return reject(c, gate, decisionDenied, fiber.StatusForbidden, msgNoRole)
	}
}

// RequireTaskPermission creates Fiber middleware gating a board task
// operation.
//
// Superusers bypass everything. Otherwise the base permission
// task.<action> is required. Update and delete additionally require
// either task.<action>.any or that the requester created the task; view
// falls back to allowing tasks assigned to the requester. A missing task
// yields not-found before any ownership comparison.
func RequireTaskPermission(svc *Service, action TaskAction) fiber.Handler {
	const gate = "task"

	return func(c *fiber.Ctx) error {
		user, ok := SessionUser(c)
		if !ok {
			return reject(c, gate, decisionUnauthenticated, fiber.StatusUnauthorized, msgAuthRequired)
		}

		roles, err := svc.GetUserRoles(user.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Str("action", string(action)).
				Msg("failed to resolve roles, denying")

			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		if svc.IsSuperuser(roles) {
			return grant(c, gate, decisionBypass)
		}

		hasBase, err := svc.UserHasPermission(user.ID, action.Permission())
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Str("action", string(action)).
				Msg("failed to check permission, denying")

			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		switch action {
		case TaskActionCreate:
			if hasBase {
				return grant(c, gate, decisionGranted)
			}

		case TaskActionView:
			if hasBase {
				return grant(c, gate, decisionGranted)
			}

			// No view permission: a task assigned to the requester is
			// still viewable.
			if taskID, idOK := taskIDFromRequest(c); idOK {
				task, errLoad := svc.GetTaskByID(taskID)
				if errors.Is(errLoad, ErrTaskNotFound) {
					return reject(c, gate, decisionNotFound, fiber.StatusNotFound, msgTaskNotFound)
				}

				if errLoad != nil {
					return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
				}

				if strings.Contains(task.Assigned, user.Username) {
					return grant(c, gate, decisionGranted)
				}
			}

		case TaskActionUpdate, TaskActionDelete:
			if !hasBase {
				break
			}

			taskID, idOK := taskIDFromRequest(c)
			if !idOK {
				return reject(c, gate, decisionBadRequest, fiber.StatusBadRequest, msgTaskIDNeeded)
			}

			hasAny, errAny := svc.UserHasPermission(user.ID, action.AnyPermission())
			if errAny != nil {
				return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
			}

			if hasAny {
				return grant(c, gate, decisionGranted)
			}

			// Ownership can only be evaluated against an existing task.
			task, errLoad := svc.GetTaskByID(taskID)
			if errors.Is(errLoad, ErrTaskNotFound) {
				return reject(c, gate, decisionNotFound, fiber.StatusNotFound, msgTaskNotFound)
			}

			if errLoad != nil {
				return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
			}

			if ParseOwner(task.Creator).Matches(user.ID, user.Username) {
				return grant(c, gate, decisionGranted)
			}

			log.Warn().Uint64("user_id", user.ID).Uint64("task_id", taskID).
				Str("action", string(action)).Msg("user is not the task creator")

			return reject(c, gate, decisionDenied, fiber.StatusForbidden, msgNotOwner)
		}

		log.Warn().Uint64("user_id", user.ID).Str("action", string(action)).
			Msg("user lacks task permission")

		return reject(c, gate, decisionDenied, fiber.StatusForbidden, msgNoPermission)
	}
}

// RequireColumnPermission creates Fiber middleware gating a board column
// operation, with the same shape as the task gate: base permission, then
// for delete either column.delete.any or column ownership.
func RequireColumnPermission(svc *Service, action ColumnAction) fiber.Handler {
	const gate = "column"

	return func(c *fiber.Ctx) error {
		user, ok := SessionUser(c)
		if !ok {
			return reject(c, gate, decisionUnauthenticated, fiber.StatusUnauthorized, msgAuthRequired)
		}

		roles, err := svc.GetUserRoles(user.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Str("action", string(action)).
				Msg("failed to resolve roles, denying")

			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		if svc.IsSuperuser(roles) {
			return grant(c, gate, decisionBypass)
		}

		hasBase, err := svc.UserHasPermission(user.ID, action.Permission())
		if err != nil {
			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		if !hasBase {
			log.Warn().Uint64("user_id", user.ID).Str("action", string(action)).
				Msg("user lacks column permission")

			return reject(c, gate, decisionDenied, fiber.StatusForbidden, msgNoPermission)
		}

		if action == ColumnActionCreate {
			return grant(c, gate, decisionGranted)
		}

		slug := c.Params("slug")
		if slug == "" {
			slug = c.Query("slug")
		}

		if slug == "" {
			return reject(c, gate, decisionBadRequest, fiber.StatusBadRequest, msgColSlugNeeded)
		}

		hasAny, err := svc.UserHasPermission(user.ID, action.AnyPermission())
		if err != nil {
			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		if hasAny {
			return grant(c, gate, decisionGranted)
		}

		column, err := svc.GetColumnBySlug(slug)
		if errors.Is(err, ErrColumnNotFound) {
			return reject(c, gate, decisionNotFound, fiber.StatusNotFound, msgColNotFound)
		}

		if err != nil {
			return reject(c, gate, decisionError, fiber.StatusInternalServerError, msgCheckFailed)
		}

		if ParseOwner(column.Creator).Matches(user.ID, user.Username) {
			return grant(c, gate, decisionGranted)
		}

		log.Warn().Uint64("user_id", user.ID).Str("slug", slug).
			Str("action", string(action)).Msg("user is not the column creator")

		return reject(c, gate, decisionDenied, fiber.StatusForbidden, msgNotOwner)
	}
}

// AttachAuthorization resolves the current user's roles and permissions
// once and stores them in fiber Locals, so handlers in the same request
// lifecycle can reuse them without duplicate lookups. Unauthenticated
// requests and resolution failures pass through without the locals.
func AttachAuthorization(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := SessionUser(c)
		if !ok {
			return c.Next()
		}

		roles, err := svc.GetUserRoles(user.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).
				Msg("failed to resolve roles for request locals")

			return c.Next()
		}

		permissions, err := svc.GetUserPermissions(user.ID)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).
				Msg("failed to resolve permissions for request locals")

			return c.Next()
		}

		c.Locals(LocalRoles, roles)
		c.Locals(LocalPermissions, permissions)

		return c.Next()
	}
}

// taskIDFromRequest extracts the target task ID from the route parameter
// or the cardId query parameter.
func taskIDFromRequest(c *fiber.Ctx) (uint64, bool) {
	raw := c.Params("id")
	if raw == "" {
		raw = c.Query("cardId")
	}

	if raw == "" {
		return 0, false
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}
