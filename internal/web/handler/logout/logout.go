// Package logout provides the logout endpoint.
package logout

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/web/handler"
	"github.com/flowboard/flowboard/internal/web/session"
)

// Path is the path to the logout endpoint.
const Path = "/auth/logout"

// Service is the logout handler service.
type Service struct {
	handler.Service
	cfg *config.Config
}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg

	app.Get(Path, s.Get)

	return nil
}

// Get invalidates the current session and clears the cookie.
func (s *Service) Get(c *fiber.Ctx) error {
	sessionID := c.Cookies(session.CookieName)
	if sessionID != "" {
		_ = session.Delete(sessionID)
	}

	c.ClearCookie(session.CookieName)

	return handler.OK(c, "Logged out")
}
