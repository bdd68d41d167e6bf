// Package web wires the HTTP surface: the fiber app, the access logger,
// the authorization middleware and every route handler.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/config"
	accesslog "github.com/flowboard/flowboard/internal/logger/adapter/fiber"
	"github.com/flowboard/flowboard/internal/rbac"
	"github.com/flowboard/flowboard/internal/web/handler/authstatus"
	"github.com/flowboard/flowboard/internal/web/handler/board"
	"github.com/flowboard/flowboard/internal/web/handler/login"
	"github.com/flowboard/flowboard/internal/web/handler/logout"
	oidchandler "github.com/flowboard/flowboard/internal/web/handler/oidc"
	"github.com/flowboard/flowboard/internal/web/handler/rbacadmin"
	"github.com/flowboard/flowboard/internal/web/handler/register"
	"github.com/flowboard/flowboard/internal/web/handler/task"
)

// CheckAliveURI is the liveness probe path.
const CheckAliveURI = "/checkalive"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	authz        *rbac.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: report not-alive first, so
	// the LB stops routing here before the listener goes away.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB, authz *rbac.Service) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	if authz == nil {
		panic("authorization service cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	// access logging first, so every request is covered
	app.Use(accesslog.New(accesslog.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAliveURI,
	}))

	// resolve roles/permissions once per request for downstream handlers
	app.Use(rbac.AttachAuthorization(authz))

	service := &Service{
		cfg:   cfg,
		App:   app,
		db:    db,
		authz: authz,
	}

	service.alive.Store(true)

	app.Get(CheckAliveURI, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendStatus(fiber.StatusOK)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// init handlers (they register their own routes with permission checks)
	for name, initErr := range map[string]error{
		"login":      login.Handler.Init(app, cfg, db),
		"logout":     logout.Handler.Init(app, cfg, db),
		"authstatus": authstatus.Handler.Init(app, cfg, db),
		"register":   register.Handler.Init(app, cfg, db, authz),
		"oidc":       oidchandler.Handler.Init(app, cfg, db, authz),
		"rbacadmin":  rbacadmin.Handler.Init(app, cfg, db, authz),
		"task":       task.Handler.Init(app, cfg, db, authz),
		"board":      board.Handler.Init(app, cfg, db, authz),
	} {
		if initErr != nil {
			log.Fatal().Err(initErr).Str("handler", name).Msg("handler init failed")
		}
	}

	// redirect root to the board
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(board.Path)
	})

	return service
}
