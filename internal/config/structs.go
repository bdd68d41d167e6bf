package config

import (
	"time"

	"github.com/flowboard/flowboard/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// RBAC holds tunables for the authorization layer.
type RBAC struct {
	// CacheTTL bounds how long a user's resolved permission set may be
	// served from cache. Mutations invalidate entries regardless of this.
	CacheTTL time.Duration
	// CacheSize is the maximum number of users kept in the permission cache.
	CacheSize int
}

// OIDC holds OpenID Connect provider settings for web login.
type OIDC struct {
	Enabled      bool
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	RBAC      RBAC
	OIDC      OIDC
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath      bool    // use clean path middleware to allow multi slash requests
	DisableRecover bool    // disable recover middleware
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	Session        Session // session settings
}
