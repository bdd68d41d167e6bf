// Package oidc provides the OpenID Connect login flow endpoints.
package oidc

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/auth"
	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/rbac"
	"github.com/flowboard/flowboard/internal/web/handler"
	"github.com/flowboard/flowboard/internal/web/handler/login"
	"github.com/flowboard/flowboard/internal/web/handler/register"
)

const (
	// Path starts the OIDC login flow.
	Path = "/auth/oidc"
	// CallbackPath receives the provider redirect.
	CallbackPath = "/auth/oidc/callback"

	stateCookie = "oidc_state"

	// ErrLoginFailed is shown on any callback failure; details are logged.
	ErrLoginFailed = "OIDC login failed"
)

// Service is the OIDC handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	provider *auth.OIDCProvider
	rbac     *rbac.Service
}

// Handler is the OIDC handler.
var Handler = Service{}

// Init initializes the OIDC handler. When OIDC is disabled in the config
// the routes are simply not registered.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, rbacService *rbac.Service) error {
	if app == nil || cfg == nil || db == nil || rbacService == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	if !cfg.OIDC.Enabled {
		return nil
	}

	provider, err := auth.NewOIDCProvider(context.Background(), cfg.OIDC, db)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.provider = provider
	s.rbac = rbacService

	app.Get(Path, s.Start)
	app.Get(CallbackPath, s.Callback)

	return nil
}

// Start redirects the browser to the provider's authorization endpoint.
func (s *Service) Start(c *fiber.Ctx) error {
	state, err := auth.GenerateStateToken()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate oidc state")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrLoginFailed)
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		MaxAge:   300,
		Secure:   !s.cfg.DevMode,
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return c.Redirect(s.provider.GetAuthURL(state))
}

// Callback completes the flow: verifies state, exchanges the code, signs
// the user in and grants the default role on first login.
func (s *Service) Callback(c *fiber.Ctx) error {
	if c.Query("state") == "" || c.Query("state") != c.Cookies(stateCookie) {
		return handler.Fail(c, fiber.StatusBadRequest, ErrLoginFailed)
	}

	c.ClearCookie(stateCookie)

	user, err := s.provider.HandleCallback(c.Context(), c.Query("code"))
	if err != nil {
		log.Error().Err(err).Msg("oidc callback failed")

		return handler.Fail(c, fiber.StatusUnauthorized, ErrLoginFailed)
	}

	// First login: no roles yet, grant the default one.
	roles, err := s.rbac.GetUserRoles(user.ID)
	if err == nil && len(roles) == 0 {
		if errGrant := register.GrantDefaultRole(s.rbac, user.ID); errGrant != nil {
			log.Error().Err(errGrant).Uint64("user_id", user.ID).
				Msg("failed to grant default role on first oidc login")
		}
	}

	if err := login.WriteSession(c, s.cfg, user); err != nil {
		log.Error().Err(err).Msg("failed to establish session")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrLoginFailed)
	}

	return c.Redirect("/")
}
