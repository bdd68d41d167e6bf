// Package login provides the local credential login endpoint.
package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/auth"
	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/web/handler"
	"github.com/flowboard/flowboard/internal/web/session"
)

const (
	// Path is the path to the login endpoint.
	Path = "/auth/login"

	// ErrInvalidCredentials is shown on any credential failure; the exact
	// cause is only logged.
	ErrInvalidCredentials = "Invalid username or password"
	// ErrAccountDisabled is shown when the account exists but is disabled.
	ErrAccountDisabled = "Account is disabled"
	// ErrInternal is shown on unexpected failures.
	ErrInternal = "Internal server error"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg   *config.Config
	local *auth.LocalProvider
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.local = auth.NewLocalProvider(db)

	app.Post(Path, s.Post)

	return nil
}

// Post handles the login request.
func (s *Service) Post(c *fiber.Ctx) error {
	creds := new(credentials)

	if err := c.BodyParser(creds); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrInvalidCredentials)
	}

	user, err := s.local.Authenticate(creds.Username, creds.Password)

	switch {
	case errors.Is(err, auth.ErrUserAccountDisabled):
		return handler.Fail(c, fiber.StatusForbidden, ErrAccountDisabled)
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidPassword):
		return handler.Fail(c, fiber.StatusUnauthorized, ErrInvalidCredentials)
	case err != nil:
		log.Error().Err(err).Str("username", creds.Username).Msg("login failed")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	if err := WriteSession(c, s.cfg, user); err != nil {
		log.Error().Err(err).Msg("failed to establish session")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.JSON(loginResponse{Success: true, User: user})
}

// WriteSession creates a session for the user and sets the session cookie.
// It is shared with the OIDC callback handler.
func WriteSession(c *fiber.Ctx, cfg *config.Config, user *models.User) error {
	sessionID, err := session.GenerateSessionID()
	if err != nil {
		return err
	}

	userSession := &session.Data{User: *user}

	if err = userSession.Write(sessionID, cfg.Webserver.Session.ExpiryTime); err != nil {
		return err
	}

	cookieSettings := &fiber.Cookie{
		Name:     session.CookieName,
		Value:    sessionID,
		MaxAge:   int(cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	return nil
}
