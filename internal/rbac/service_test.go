package rbac

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.UserRole{},
		&models.Column{},
		&models.Task{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)

	return NewService(db, NewPermissionCache(64, time.Minute)), db
}

// seedRole creates a role with the named permissions, creating the
// permissions on the fly.
func seedRole(t *testing.T, db *gorm.DB, name string, permissionNames ...string) models.Role {
	t.Helper()

	role := models.Role{Name: name}
	require.NoError(t, db.Create(&role).Error)

	for _, permissionName := range permissionNames {
		permission := models.Permission{Name: permissionName}
		require.NoError(t, db.Where(models.Permission{Name: permissionName}).
			FirstOrCreate(&permission).Error)

		require.NoError(t, db.Create(&models.RolePermission{
			RoleID:       role.ID,
			PermissionID: permission.ID,
		}).Error)
	}

	return role
}

func seedUser(t *testing.T, db *gorm.DB, username string, roles ...models.Role) models.User {
	t.Helper()

	user := models.User{Username: username, Email: username + "@example.com", Active: true}
	require.NoError(t, db.Create(&user).Error)

	for _, role := range roles {
		require.NoError(t, db.Create(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Error)
	}

	return user
}

func permissionNames(permissions []models.Permission) []string {
	names := make([]string, 0, len(permissions))
	for _, permission := range permissions {
		names = append(names, permission.Name)
	}

	return names
}

func TestIsSuperuser(t *testing.T) {
	svc, _ := newTestService(t)

	testCases := []struct {
		name     string
		roles    []models.Role
		expected bool
	}{
		{name: "no roles", roles: nil, expected: false},
		{name: "admin", roles: []models.Role{{Name: "admin"}}, expected: true},
		{name: "admin mixed case", roles: []models.Role{{Name: "Admin"}}, expected: true},
		{name: "admin among others", roles: []models.Role{{Name: "editor"}, {Name: "ADMIN"}}, expected: true},
		{name: "only editor", roles: []models.Role{{Name: "editor"}}, expected: false},
		{name: "prefix is not admin", roles: []models.Role{{Name: "administrator"}}, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, svc.IsSuperuser(tc.roles))
		})
	}
}

func TestGetUserPermissionsUnion(t *testing.T) {
	svc, db := newTestService(t)

	editor := seedRole(t, db, "editor", PermTaskView, PermTaskCreate, PermTaskUpdate)
	cleaner := seedRole(t, db, "cleaner", PermTaskView, PermTaskDeleteAny)
	user := seedUser(t, db, "alice", editor, cleaner)

	permissions, err := svc.GetUserPermissions(user.ID)
	require.NoError(t, err)

	names := permissionNames(permissions)
	assert.ElementsMatch(t,
		[]string{PermTaskView, PermTaskCreate, PermTaskUpdate, PermTaskDeleteAny},
		names, "union across roles must deduplicate shared permissions")
}

func TestGetUserPermissionsEmptyForRolelessUser(t *testing.T) {
	svc, db := newTestService(t)

	user := seedUser(t, db, "nobody")

	permissions, err := svc.GetUserPermissions(user.ID)
	require.NoError(t, err)
	assert.Empty(t, permissions)

	has, err := svc.UserHasPermission(user.ID, PermTaskView)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestUserHasPermissionExactMatch(t *testing.T) {
	svc, db := newTestService(t)

	editor := seedRole(t, db, "editor", PermTaskUpdate)
	user := seedUser(t, db, "alice", editor)

	has, err := svc.UserHasPermission(user.ID, PermTaskUpdate)
	require.NoError(t, err)
	assert.True(t, has)

	// The server-side match is exact: holding task.update does not grant
	// task.update.any, and names are not normalized.
	has, err = svc.UserHasPermission(user.ID, PermTaskUpdateAny)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = svc.UserHasPermission(user.ID, "Task.Update")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAssignRoleToUserIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)

	editor := seedRole(t, db, "editor", PermTaskView)
	user := seedUser(t, db, "alice")

	require.NoError(t, svc.AssignRoleToUser(user.ID, editor.ID))
	require.NoError(t, svc.AssignRoleToUser(user.ID, editor.ID))

	roles, err := svc.GetUserRoles(user.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestRoleAssignmentInvalidatesCache(t *testing.T) {
	svc, db := newTestService(t)

	editor := seedRole(t, db, "editor", PermTaskView)
	user := seedUser(t, db, "alice")

	// Prime the cache with the empty permission set.
	has, err := svc.UserHasPermission(user.ID, PermTaskView)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, svc.AssignRoleToUser(user.ID, editor.ID))

	// The grant must be visible immediately, not after the TTL.
	has, err = svc.UserHasPermission(user.ID, PermTaskView)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, svc.RemoveRoleFromUser(user.ID, editor.ID))

	has, err = svc.UserHasPermission(user.ID, PermTaskView)
	require.NoError(t, err)
	assert.False(t, has, "revocation must be visible immediately")
}

func TestSetRolePermissionsInvalidatesAllHolders(t *testing.T) {
	svc, db := newTestService(t)

	editor := seedRole(t, db, "editor", PermTaskView)
	alice := seedUser(t, db, "alice", editor)
	bob := seedUser(t, db, "bob", editor)

	for _, userID := range []uint64{alice.ID, bob.ID} {
		has, err := svc.UserHasPermission(userID, PermTaskView)
		require.NoError(t, err)
		require.True(t, has)
	}

	var create models.Permission

	require.NoError(t, db.Where(models.Permission{Name: PermTaskCreate}).
		FirstOrCreate(&create).Error)

	require.NoError(t, svc.SetRolePermissions(editor.ID, []uint{create.ID}))

	for _, userID := range []uint64{alice.ID, bob.ID} {
		has, err := svc.UserHasPermission(userID, PermTaskView)
		require.NoError(t, err)
		assert.False(t, has, "old permission must be gone for every holder")

		has, err = svc.UserHasPermission(userID, PermTaskCreate)
		require.NoError(t, err)
		assert.True(t, has, "new permission must be visible for every holder")
	}
}

func TestSetRolePermissionsUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.SetRolePermissions(9999, []uint{1})
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestAssignAndRemovePermissionsFromRole(t *testing.T) {
	svc, db := newTestService(t)

	editor := seedRole(t, db, "editor", PermTaskView)
	user := seedUser(t, db, "alice", editor)

	var update models.Permission

	require.NoError(t, db.Where(models.Permission{Name: PermTaskUpdate}).
		FirstOrCreate(&update).Error)

	require.NoError(t, svc.AssignPermissionsToRole(editor.ID, []uint{update.ID}))
	// assigning again keeps a single link
	require.NoError(t, svc.AssignPermissionsToRole(editor.ID, []uint{update.ID}))

	permissions, err := svc.GetRolePermissions(editor.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{PermTaskView, PermTaskUpdate}, permissionNames(permissions))

	has, err := svc.UserHasPermission(user.ID, PermTaskUpdate)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, svc.RemovePermissionsFromRole(editor.ID, []uint{update.ID}))

	has, err = svc.UserHasPermission(user.ID, PermTaskUpdate)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestUpdateRole(t *testing.T) {
	svc, db := newTestService(t)

	role := seedRole(t, db, "editor")

	require.NoError(t, svc.UpdateRole(role.ID, "writer", "writes things"))

	updated, err := svc.GetRoleByID(role.ID)
	require.NoError(t, err)
	assert.Equal(t, "writer", updated.Name)
	assert.Equal(t, "writes things", updated.Description)

	// An empty name leaves the current name untouched.
	require.NoError(t, svc.UpdateRole(role.ID, "", "still writes"))

	updated, err = svc.GetRoleByID(role.ID)
	require.NoError(t, err)
	assert.Equal(t, "writer", updated.Name)
	assert.Equal(t, "still writes", updated.Description)

	assert.ErrorIs(t, svc.UpdateRole(9999, "ghost", ""), ErrRoleNotFound)
}

func TestDeleteRoleCleansUpLinks(t *testing.T) {
	svc, db := newTestService(t)

	editor := seedRole(t, db, "editor", PermTaskView, PermTaskCreate)
	user := seedUser(t, db, "alice", editor)

	require.NoError(t, svc.DeleteRole(editor.ID))

	_, err := svc.GetRoleByID(editor.ID)
	assert.ErrorIs(t, err, ErrRoleNotFound)

	roles, err := svc.GetUserRoles(user.ID)
	require.NoError(t, err)
	assert.Empty(t, roles, "user assignments must be removed with the role")

	permissions, err := svc.GetUserPermissions(user.ID)
	require.NoError(t, err)
	assert.Empty(t, permissions, "deleting a role must revoke its permissions immediately")

	// The permission catalog itself is untouched.
	var count int64

	require.NoError(t, db.Model(&models.Permission{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	assert.ErrorIs(t, svc.DeleteRole(editor.ID), ErrRoleNotFound)
}

func TestGetRoleByName(t *testing.T) {
	svc, db := newTestService(t)

	seedRole(t, db, "editor")

	role, err := svc.GetRoleByName("editor")
	require.NoError(t, err)
	assert.Equal(t, "editor", role.Name)

	_, err = svc.GetRoleByName("ghost")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestGetAllPermissionsCategoryFilter(t *testing.T) {
	svc, db := newTestService(t)

	for _, p := range []models.Permission{
		{Name: PermTaskView, Category: "task"},
		{Name: PermTaskCreate, Category: "task"},
		{Name: PermColumnCreate, Category: "column"},
	} {
		require.NoError(t, db.Create(&p).Error)
	}

	all, err := svc.GetAllPermissions("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tasks, err := svc.GetAllPermissions("task")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{PermTaskView, PermTaskCreate}, permissionNames(tasks))
}

func TestGetTaskAndColumnLookups(t *testing.T) {
	svc, db := newTestService(t)

	require.NoError(t, db.Create(&models.Column{Title: "Todo", Slug: "todo", Creator: "1"}).Error)
	require.NoError(t, db.Create(&models.Task{
		Title:    "write tests",
		Status:   models.TaskStatusStarted,
		ColumnID: "todo",
		Creator:  "1",
	}).Error)

	task, err := svc.GetTaskByID(1)
	require.NoError(t, err)
	assert.Equal(t, "write tests", task.Title)

	_, err = svc.GetTaskByID(999)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	column, err := svc.GetColumnBySlug("todo")
	require.NoError(t, err)
	assert.Equal(t, "Todo", column.Title)

	_, err = svc.GetColumnBySlug("ghost")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}
