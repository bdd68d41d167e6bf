package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/rbac"
)

// seedPermissions is the full permission catalog. Seeding is idempotent,
// so a new permission added here appears on the next start without
// touching existing links.
var seedPermissions = []models.Permission{
	{Name: rbac.PermTaskView, Description: "View board tasks", Category: "task"},
	{Name: rbac.PermTaskCreate, Description: "Create board tasks", Category: "task"},
	{Name: rbac.PermTaskUpdate, Description: "Update own tasks", Category: "task"},
	{Name: rbac.PermTaskUpdateAny, Description: "Update any task", Category: "task"},
	{Name: rbac.PermTaskDelete, Description: "Delete own tasks", Category: "task"},
	{Name: rbac.PermTaskDeleteAny, Description: "Delete any task", Category: "task"},
	{Name: rbac.PermColumnCreate, Description: "Create board columns", Category: "column"},
	{Name: rbac.PermColumnDelete, Description: "Delete own columns", Category: "column"},
	{Name: rbac.PermColumnDeleteAny, Description: "Delete any column", Category: "column"},
}

// seedRoles maps the built-in roles to their permission sets. The admin
// role carries no explicit permissions: it is recognized by name and
// bypasses permission checks entirely.
var seedRoles = map[string]struct {
	description string
	permissions []string
}{
	rbac.SuperuserRole: {
		description: "Full access to everything",
	},
	"editor": {
		description: "Work with the board: create and manage own tasks and columns",
		permissions: []string{
			rbac.PermTaskView, rbac.PermTaskCreate, rbac.PermTaskUpdate, rbac.PermTaskDelete,
			rbac.PermColumnCreate, rbac.PermColumnDelete,
		},
	},
	"viewer": {
		description: "Read-only board access",
		permissions: []string{rbac.PermTaskView},
	},
}

func seed(_ *config.Config, db *gorm.DB) {
	for _, permission := range seedPermissions {
		p := permission

		if err := db.Where(models.Permission{Name: p.Name}).
			Assign(models.Permission{Description: p.Description, Category: p.Category}).
			FirstOrCreate(&p).Error; err != nil {
			log.Fatal().Err(err).Str("permission", p.Name).Msg("failed to seed permission")
		}
	}

	for name, spec := range seedRoles {
		role := models.Role{Name: name}

		if err := db.Where(models.Role{Name: name}).
			Assign(models.Role{Description: spec.description}).
			FirstOrCreate(&role).Error; err != nil {
			log.Fatal().Err(err).Str("role", name).Msg("failed to seed role")
		}

		for _, permissionName := range spec.permissions {
			var permission models.Permission

			if err := db.Where("name = ?", permissionName).
				First(&permission).Error; err != nil {
				log.Fatal().Err(err).Str("permission", permissionName).Msg("seed permission missing")
			}

			link := models.RolePermission{RoleID: role.ID, PermissionID: permission.ID}

			if err := db.Where(link).FirstOrCreate(&link).Error; err != nil {
				log.Fatal().Err(err).Str("role", name).Str("permission", permissionName).
					Msg("failed to seed role permission")
			}
		}
	}

	// Create the default admin account when the user table is empty.
	var count int64

	db.Model(&models.User{}).Count(&count)

	if count == 0 {
		admin := models.User{
			Username:   "admin",
			Email:      "admin@localhost",
			Password:   models.HashPassword("changeme"),
			Active:     true,
			AuthSource: models.AuthSourceLocal,
		}

		if err := db.Create(&admin).Error; err != nil {
			log.Fatal().Err(err).Msg("failed to seed admin user")
		}

		var adminRole models.Role

		if err := db.Where("name = ?", rbac.SuperuserRole).First(&adminRole).Error; err != nil {
			log.Fatal().Err(err).Msg("admin role missing after seed")
		}

		if err := db.Create(&models.UserRole{UserID: admin.ID, RoleID: adminRole.ID}).Error; err != nil {
			log.Fatal().Err(err).Msg("failed to assign admin role")
		}

		log.Warn().Msg("created default admin user with password 'changeme', change it immediately")
	}
}
