// Package authstatus provides the session check endpoint consumed by the
// board client on startup.
package authstatus

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/rbac"
	"github.com/flowboard/flowboard/internal/web/handler"
)

// Path is the path to the auth status endpoint.
const Path = "/auth/check-auth"

type statusResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user,omitempty"`
}

// Service is the auth status handler service.
type Service struct {
	handler.Service
}

// Handler is the auth status handler.
var Handler = Service{}

// Init initializes the auth status handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	app.Get(Path, s.Get)

	return nil
}

// Get reports whether the request carries a valid session. An anonymous
// request is a successful check with success=false, not an error.
func (s *Service) Get(c *fiber.Ctx) error {
	user, ok := rbac.SessionUser(c)
	if !ok {
		return c.JSON(statusResponse{Success: false})
	}

	return c.JSON(statusResponse{Success: true, User: user})
}
