// Package daemon boots the application: database, migrations, seed
// data, the session store and the web service.
package daemon

import (
	"fmt"

	"github.com/glebarez/sqlite"
	sessionsqlite "github.com/gofiber/storage/sqlite3"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/db/dsn"
	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/rbac"
	"github.com/flowboard/flowboard/internal/web"
	"github.com/flowboard/flowboard/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := gorm.Open(openDialector(cfg), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.Column{},
		&models.Task{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	seed(cfg, db)

	// Initialize fiber session store
	sessionStorage := sessionsqlite.New(sessionsqlite.Config{
		Database: cfg.DB.Name + "-sessions.db",
		Table:    "sessions",
	})

	session.Init(sessionStorage)

	cache := rbac.NewPermissionCache(cfg.RBAC.CacheSize, cfg.RBAC.CacheTTL)
	authz := rbac.NewService(db, cache)

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, db, authz),
	}
}

// openDialector selects the gorm driver for the configured engine.
func openDialector(cfg *config.Config) gorm.Dialector {
	switch cfg.DB.GormEngine {
	case "sqlite":
		return sqlite.Open(dsn.Create(cfg))
	case "postgres":
		return gormpostgres.Open(dsn.Create(cfg))
	default:
		return gormmysql.Open(dsn.Create(cfg))
	}
}
