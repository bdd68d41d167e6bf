package rbacadmin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/rbac"
	websess "github.com/flowboard/flowboard/internal/web/session"
)

// testStorage is a minimal in-memory implementation of storage.Storage for tests.
type testStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Storage = (*testStorage)(nil)

func (s *testStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]byte(nil), s.data[key]...), nil
}

func (s *testStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), val...)

	return nil
}

func (s *testStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

func (s *testStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

func (s *testStorage) Close() error { return nil }

type fixture struct {
	app *fiber.App
	db  *gorm.DB
	svc *rbac.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
	))

	websess.Init(&testStorage{data: make(map[string][]byte)})

	app := fiber.New()
	svc := rbac.NewService(db, rbac.NewPermissionCache(64, time.Minute))

	cfg := &config.Config{
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
	}

	var s Service
	require.NoError(t, s.Init(app, cfg, db, svc))

	return &fixture{app: app, db: db, svc: svc}
}

func (f *fixture) newUser(t *testing.T, username string, roleNames ...string) (models.User, string) {
	t.Helper()

	user := models.User{Username: username, Email: username + "@example.com", Active: true}
	require.NoError(t, f.db.Create(&user).Error)

	for _, name := range roleNames {
		role := models.Role{Name: name}
		require.NoError(t, f.db.Where(models.Role{Name: name}).FirstOrCreate(&role).Error)
		require.NoError(t, f.db.Create(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Error)
	}

	sessionID, err := websess.GenerateSessionID()
	require.NoError(t, err)

	data := &websess.Data{User: user}
	require.NoError(t, data.Write(sessionID, time.Minute))

	return user, sessionID
}

func (f *fixture) perform(t *testing.T, method, target, sessionID, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: websess.CookieName, Value: sessionID})
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func TestAdminGate(t *testing.T) {
	f := newFixture(t)
	_, editorSession := f.newUser(t, "alice", "editor")

	resp := f.perform(t, http.MethodGet, RolesPath, editorSession, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.perform(t, http.MethodGet, RolesPath, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoleLifecycle(t *testing.T) {
	f := newFixture(t)
	_, adminSession := f.newUser(t, "root", "admin")

	// create
	resp := f.perform(t, http.MethodPost, RolesPath, adminSession,
		`{"name":"reviewer","description":"reviews things"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created roleResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotNil(t, created.Role)
	assert.Equal(t, "reviewer", created.Role.Name)

	rolePath := fmt.Sprintf("/rbac/roles/%d", created.Role.ID)

	// update
	resp = f.perform(t, http.MethodPut, rolePath, adminSession,
		`{"name":"approver","description":"approves things"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// set permissions
	var view models.Permission

	require.NoError(t, f.db.Where(models.Permission{Name: rbac.PermTaskView}).
		FirstOrCreate(&view).Error)

	resp = f.perform(t, http.MethodPut, rolePath+"/permissions", adminSession,
		fmt.Sprintf(`{"permissionIds":[%d]}`, view.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// read back
	resp = f.perform(t, http.MethodGet, rolePath, adminSession, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail roleDetailResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, "approver", detail.Role.Name)
	require.Len(t, detail.Permissions, 1)
	assert.Equal(t, rbac.PermTaskView, detail.Permissions[0].Name)

	// delete
	resp = f.perform(t, http.MethodDelete, rolePath, adminSession, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.perform(t, http.MethodGet, rolePath, adminSession, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAssignAndRemoveUserRole(t *testing.T) {
	f := newFixture(t)
	_, adminSession := f.newUser(t, "root", "admin")
	target, _ := f.newUser(t, "alice")

	role := models.Role{Name: "editor"}
	require.NoError(t, f.db.Create(&role).Error)

	path := fmt.Sprintf("/rbac/users/%d/roles/%d", target.ID, role.ID)

	resp := f.perform(t, http.MethodPost, path, adminSession, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	roles, err := f.svc.GetUserRoles(target.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "editor", roles[0].Name)

	resp = f.perform(t, http.MethodDelete, path, adminSession, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	roles, err = f.svc.GetUserRoles(target.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestAssignUnknownRole(t *testing.T) {
	f := newFixture(t)
	_, adminSession := f.newUser(t, "root", "admin")
	target, _ := f.newUser(t, "alice")

	resp := f.perform(t, http.MethodPost,
		fmt.Sprintf("/rbac/users/%d/roles/999", target.ID), adminSession, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUserAuthorization(t *testing.T) {
	f := newFixture(t)
	alice, aliceSession := f.newUser(t, "alice", "editor")
	bob, _ := f.newUser(t, "bob", "editor")
	_, adminSession := f.newUser(t, "root", "admin")

	var view models.Permission

	require.NoError(t, f.db.Where(models.Permission{Name: rbac.PermTaskView}).
		FirstOrCreate(&view).Error)

	var editor models.Role

	require.NoError(t, f.db.Where("name = ?", "editor").First(&editor).Error)
	require.NoError(t, f.db.Create(&models.RolePermission{
		RoleID:       editor.ID,
		PermissionID: view.ID,
	}).Error)

	alicePath := fmt.Sprintf("/rbac/public/users/%d/roles", alice.ID)

	// own profile
	resp := f.perform(t, http.MethodGet, alicePath, aliceSession, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body userAuthorizationResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Roles, 1)
	assert.Equal(t, "editor", body.Roles[0].Name)
	require.Len(t, body.Permissions, 1)
	assert.Equal(t, rbac.PermTaskView, body.Permissions[0].Name)

	// someone else's profile is forbidden for non-admins
	resp = f.perform(t, http.MethodGet,
		fmt.Sprintf("/rbac/public/users/%d/roles", bob.ID), aliceSession, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// admins may query anyone
	resp = f.perform(t, http.MethodGet, alicePath, adminSession, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// anonymous
	resp = f.perform(t, http.MethodGet, alicePath, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListPermissions(t *testing.T) {
	f := newFixture(t)
	_, adminSession := f.newUser(t, "root", "admin")

	for _, p := range []models.Permission{
		{Name: rbac.PermTaskView, Category: "task"},
		{Name: rbac.PermColumnCreate, Category: "column"},
	} {
		require.NoError(t, f.db.Create(&p).Error)
	}

	resp := f.perform(t, http.MethodGet, PermissionsPath+"?category=task", adminSession, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body permissionsResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Permissions, 1)
	assert.Equal(t, rbac.PermTaskView, body.Permissions[0].Name)
}
