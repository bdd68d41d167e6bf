package task

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
		&models.Column{},
		&models.Task{},
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

	require.NoError(t, db.Create(&models.Column{Title: "Todo", Slug: "todo", Creator: "1"}).Error)
	require.NoError(t, db.Create(&models.Column{Title: "Done", Slug: "done", Creator: "1"}).Error)

	return &fixture{app: app, db: db, svc: svc}
}

// newUser creates a user holding a role with the given permissions and
// returns the user with a live session ID.
func (f *fixture) newUser(t *testing.T, username string, permissions ...string) (models.User, string) {
	t.Helper()

	role := models.Role{Name: username + "-role"}
	require.NoError(t, f.db.Create(&role).Error)

	for _, name := range permissions {
		permission := models.Permission{Name: name}
		require.NoError(t, f.db.Where(models.Permission{Name: name}).
			FirstOrCreate(&permission).Error)
		require.NoError(t, f.db.Create(&models.RolePermission{
			RoleID:       role.ID,
			PermissionID: permission.ID,
		}).Error)
	}

	user := models.User{Username: username, Email: username + "@example.com", Active: true}
	require.NoError(t, f.db.Create(&user).Error)
	require.NoError(t, f.db.Create(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Error)

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

func TestPostTask(t *testing.T) {
	f := newFixture(t)
	user, sessionID := f.newUser(t, "alice", rbac.PermTaskCreate)

	resp := f.perform(t, http.MethodPost, Path, sessionID,
		`{"title":"write tests","assigned":"bob","columnId":"todo"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body taskResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Task)
	assert.Equal(t, "write tests", body.Task.Title)
	assert.Equal(t, models.TaskStatusStarted, body.Task.Status)
	assert.Equal(t, fmt.Sprintf("%d", user.ID), body.Task.Creator,
		"new tasks store the creator as a user ID")
	assert.NotEmpty(t, body.Task.Date, "a missing date defaults to today")
}

func TestPostTaskUnknownColumn(t *testing.T) {
	f := newFixture(t)
	_, sessionID := f.newUser(t, "alice", rbac.PermTaskCreate)

	resp := f.perform(t, http.MethodPost, Path, sessionID,
		`{"title":"stray","columnId":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostTaskWithoutPermission(t *testing.T) {
	f := newFixture(t)
	_, sessionID := f.newUser(t, "carol")

	resp := f.perform(t, http.MethodPost, Path, sessionID,
		`{"title":"nope","columnId":"todo"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPatchTask(t *testing.T) {
	f := newFixture(t)
	user, sessionID := f.newUser(t, "alice", rbac.PermTaskUpdate)

	task := models.Task{
		Title:    "draft",
		Status:   models.TaskStatusStarted,
		ColumnID: "todo",
		Creator:  rbac.OwnerByUserID(user.ID).Ref(),
	}
	require.NoError(t, f.db.Create(&task).Error)

	target := fmt.Sprintf("/tasks/%d", task.ID)

	resp := f.perform(t, http.MethodPatch, target, sessionID,
		`{"title":"final","status":"COMPLETED","columnId":"done"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Task

	require.NoError(t, f.db.First(&updated, task.ID).Error)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, models.TaskStatusCompleted, updated.Status)
	assert.Equal(t, "done", updated.ColumnID)

	// Invalid status values never reach the database.
	resp = f.perform(t, http.MethodPatch, target, sessionID, `{"status":"LIMBO"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// An empty patch is rejected.
	resp = f.perform(t, http.MethodPatch, target, sessionID, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPatchForeignTaskDenied(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.newUser(t, "alice", rbac.PermTaskUpdate)
	_, intruderSession := f.newUser(t, "bob", rbac.PermTaskUpdate)

	task := models.Task{
		Title:    "private",
		Status:   models.TaskStatusStarted,
		ColumnID: "todo",
		Creator:  rbac.OwnerByUserID(owner.ID).Ref(),
	}
	require.NoError(t, f.db.Create(&task).Error)

	resp := f.perform(t, http.MethodPatch, fmt.Sprintf("/tasks/%d", task.ID),
		intruderSession, `{"title":"hijacked"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var unchanged models.Task

	require.NoError(t, f.db.First(&unchanged, task.ID).Error)
	assert.Equal(t, "private", unchanged.Title)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	user, sessionID := f.newUser(t, "alice", rbac.PermTaskDelete)

	task := models.Task{
		Title:    "temporary",
		Status:   models.TaskStatusStarted,
		ColumnID: "todo",
		Creator:  rbac.OwnerByUserID(user.ID).Ref(),
	}
	require.NoError(t, f.db.Create(&task).Error)

	resp := f.perform(t, http.MethodDelete, fmt.Sprintf("/tasks/%d", task.ID), sessionID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64

	require.NoError(t, f.db.Model(&models.Task{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteTaskNotFound(t *testing.T) {
	f := newFixture(t)
	_, sessionID := f.newUser(t, "alice", rbac.PermTaskDelete)

	resp := f.perform(t, http.MethodDelete, "/tasks/999", sessionID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
