// Package client provides a session-scoped authorization context for Go
// programs talking to a FlowBoard server.
//
// The context caches the signed-in user's roles and permissions so UI
// code can make cheap show/hide decisions. It is advisory only: the
// server re-validates every mutation, so a stale or tampered context can
// never grant access.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

const (
	checkAuthPath   = "/auth/check-auth"
	userRolesFormat = "/rbac/public/users/%d/roles"
)

type checkAuthPayload struct {
	Success bool `json:"success"`
	User    *struct {
		ID       uint64 `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type authorizationPayload struct {
	Success bool `json:"success"`
	Roles   []struct {
		Name string `json:"name"`
	} `json:"roles"`
	Permissions []struct {
		Name string `json:"name"`
	} `json:"permissions"`
}

// RBAC is a goroutine-safe cache of the current user's roles and
// permissions. The zero value is not usable; create one with New.
type RBAC struct {
	baseURL string
	client  *http.Client

	mu          sync.RWMutex
	loading     bool
	userID      uint64
	username    string
	roles       map[string]struct{}
	permissions map[string]struct{}
}

// Option customizes a client context.
type Option func(*RBAC)

// WithHTTPClient replaces the default HTTP client. The replacement
// should carry a cookie jar holding the server session cookie.
func WithHTTPClient(client *http.Client) Option {
	return func(r *RBAC) {
		r.client = client
	}
}

// New creates an authorization context for the server at baseURL. The
// context starts in the loading state; call Refetch to populate it.
func New(baseURL string, opts ...Option) *RBAC {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cannot fail with nil options

	r := &RBAC{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
		loading:     true,
		roles:       map[string]struct{}{},
		permissions: map[string]struct{}{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Refetch reloads the context from the server. Any failure, including an
// expired session, degrades to the anonymous state rather than leaving
// stale grants behind; the error is returned for logging only.
func (r *RBAC) Refetch(ctx context.Context) error {
	var status checkAuthPayload

	err := r.getJSON(ctx, checkAuthPath, &status)
	if err != nil {
		r.setAnonymous()

		return fmt.Errorf("failed to check session: %w", err)
	}

	if !status.Success || status.User == nil {
		r.setAnonymous()

		return nil
	}

	var authorization authorizationPayload

	err = r.getJSON(ctx, fmt.Sprintf(userRolesFormat, status.User.ID), &authorization)
	if err != nil {
		r.setAnonymous()

		return fmt.Errorf("failed to load authorization: %w", err)
	}

	roles := make(map[string]struct{}, len(authorization.Roles))
	for _, role := range authorization.Roles {
		roles[normalize(role.Name)] = struct{}{}
	}

	permissions := make(map[string]struct{}, len(authorization.Permissions))
	for _, permission := range authorization.Permissions {
		permissions[normalize(permission.Name)] = struct{}{}
	}

	r.mu.Lock()
	r.loading = false
	r.userID = status.User.ID
	r.username = status.User.Username
	r.roles = roles
	r.permissions = permissions
	r.mu.Unlock()

	return nil
}

// HasPermission reports whether the cached permission set contains the
// named permission. The comparison trims whitespace and ignores case,
// deliberately looser than the server's exact match, so UI callers are
// forgiving about formatting. False while loading or anonymous.
func (r *RBAC) HasPermission(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.loading {
		return false
	}

	_, ok := r.permissions[normalize(name)]

	return ok
}

// HasRole reports whether the cached role set contains the named role,
// with the same forgiving comparison as HasPermission.
func (r *RBAC) HasRole(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.loading {
		return false
	}

	_, ok := r.roles[normalize(name)]

	return ok
}

// UserID returns the cached user ID, or zero while loading or anonymous.
func (r *RBAC) UserID() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.userID
}

// Username returns the cached username, or empty while loading or
// anonymous.
func (r *RBAC) Username() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.username
}

// Loading reports whether the context has completed its first Refetch.
// Callers treat the predicates as false while loading.
func (r *RBAC) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.loading
}

// Reset drops the context back to the anonymous state, used on logout.
func (r *RBAC) Reset() {
	r.setAnonymous()
}

func (r *RBAC) setAnonymous() {
	r.mu.Lock()
	r.loading = false
	r.userID = 0
	r.username = ""
	r.roles = map[string]struct{}{}
	r.permissions = map[string]struct{}{}
	r.mu.Unlock()
}

func (r *RBAC) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
