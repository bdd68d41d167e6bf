// Package register provides the account registration endpoint.
package register

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/auth"
	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/rbac"
	"github.com/flowboard/flowboard/internal/web/handler"
)

const (
	// Path is the path to the registration endpoint.
	Path = "/auth/register"

	// DefaultRole is granted to every newly registered account.
	DefaultRole = "editor"

	// ErrUserExists is shown when the username or email is taken.
	ErrUserExists = "A user with this username or email already exists"
	// ErrValidation is shown when the registration input is invalid.
	ErrValidation = "Invalid registration data"
	// ErrInternal is shown on unexpected failures.
	ErrInternal = "Registration failed"
)

type registration struct {
	Username  string `json:"username" validate:"required,min=3,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

type registerResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

// Service is the registration handler service.
type Service struct {
	handler.Service
	local     *auth.LocalProvider
	rbac      *rbac.Service
	validator *validator.Validate
}

// Handler is the registration handler.
var Handler = Service{}

// Init initializes the registration handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, rbacService *rbac.Service) error {
	if app == nil || cfg == nil || db == nil || rbacService == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.local = auth.NewLocalProvider(db)
	s.rbac = rbacService
	s.validator = validator.New()

	app.Post(Path, s.Post)

	return nil
}

// Post creates a new local account and grants the default role.
func (s *Service) Post(c *fiber.Ctx) error {
	input := new(registration)

	if err := c.BodyParser(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if err := s.validator.Struct(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	user, err := s.local.CreateUser(
		input.Username, input.Email, input.Password, input.FirstName, input.LastName,
	)

	switch {
	case errors.Is(err, auth.ErrUserNameOrEmailExists):
		return handler.Fail(c, fiber.StatusConflict, ErrUserExists)
	case err != nil:
		log.Error().Err(err).Str("username", input.Username).Msg("registration failed")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	if err := GrantDefaultRole(s.rbac, user.ID); err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to grant default role")
	}

	return c.Status(fiber.StatusCreated).JSON(registerResponse{Success: true, User: user})
}

// GrantDefaultRole assigns the default role to a freshly created account.
// Shared with the OIDC callback handler for first logins. A missing
// default role is not fatal: the account exists but starts without
// permissions until an administrator intervenes.
func GrantDefaultRole(svc *rbac.Service, userID uint64) error {
	role, err := svc.GetRoleByName(DefaultRole)
	if err != nil {
		return err
	}

	return svc.AssignRoleToUser(userID, role.ID)
}
