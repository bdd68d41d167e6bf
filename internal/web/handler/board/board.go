// Package board provides the board view and column endpoints.
package board

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/flowboard/flowboard/internal/config"
	"github.com/flowboard/flowboard/internal/db/models"
	"github.com/flowboard/flowboard/internal/rbac"
	"github.com/flowboard/flowboard/internal/web/handler"
)

// Route paths registered by this handler.
const (
	Path           = "/board"
	ColumnsPath    = "/columns"
	ColumnSlugPath = "/columns/:slug"
)

// User-facing error messages.
const (
	ErrValidation     = "Invalid column data"
	ErrColumnNotFound = "Column not found"
	ErrColumnExists   = "A column with this title already exists"
	ErrColumnNotEmpty = "Column still has unfinished tasks"
	ErrInternal       = "Internal server error"
)

type columnInput struct {
	Title string `json:"title" validate:"required,max=255"`
	Color string `json:"color" validate:"max=32"`
}

type columnWithTasks struct {
	models.Column
	Tasks []models.Task `json:"tasks"`
}

type boardResponse struct {
	Success bool              `json:"success"`
	Columns []columnWithTasks `json:"columns"`
}

type columnResponse struct {
	Success bool           `json:"success"`
	Column  *models.Column `json:"column"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the URL slug a column is addressed by from its title.
func Slugify(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")

	return strings.Trim(slug, "-")
}

// Service is the board handler service.
type Service struct {
	handler.Service
	db        *gorm.DB
	rbac      *rbac.Service
	validator *validator.Validate
}

// Handler is the board handler.
var Handler = Service{}

// Init initializes the board handler behind the task and column gates.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, rbacService *rbac.Service) error {
	if app == nil || cfg == nil || db == nil || rbacService == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.rbac = rbacService
	s.validator = validator.New()

	app.Get(Path, rbac.RequireTaskPermission(rbacService, rbac.TaskActionView), s.Get)
	app.Post(ColumnsPath, rbac.RequireColumnPermission(rbacService, rbac.ColumnActionCreate), s.PostColumn)
	app.Delete(ColumnSlugPath, rbac.RequireColumnPermission(rbacService, rbac.ColumnActionDelete), s.DeleteColumn)

	return nil
}

// Get returns every column with its tasks.
func (s *Service) Get(c *fiber.Ctx) error {
	var columns []models.Column

	if err := s.db.Order("id").Find(&columns).Error; err != nil {
		log.Error().Err(err).Msg("failed to load columns")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	var tasks []models.Task

	if err := s.db.Order("id").Find(&tasks).Error; err != nil {
		log.Error().Err(err).Msg("failed to load tasks")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	tasksByColumn := make(map[string][]models.Task, len(columns))
	for _, task := range tasks {
		tasksByColumn[task.ColumnID] = append(tasksByColumn[task.ColumnID], task)
	}

	board := make([]columnWithTasks, 0, len(columns))
	for _, column := range columns {
		entry := columnWithTasks{Column: column, Tasks: tasksByColumn[column.Slug]}
		if entry.Tasks == nil {
			entry.Tasks = []models.Task{}
		}

		board = append(board, entry)
	}

	return c.JSON(boardResponse{Success: true, Columns: board})
}

// PostColumn creates a column. The slug is derived from the title and
// must be unique on the board.
func (s *Service) PostColumn(c *fiber.Ctx) error {
	user, ok := rbac.SessionUser(c)
	if !ok {
		return handler.Fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	input := new(columnInput)

	if err := c.BodyParser(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if err := s.validator.Struct(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	slug := Slugify(input.Title)
	if slug == "" {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if _, err := s.rbac.GetColumnBySlug(slug); err == nil {
		return handler.Fail(c, fiber.StatusConflict, ErrColumnExists)
	} else if !errors.Is(err, rbac.ErrColumnNotFound) {
		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	column := models.Column{
		Title:   input.Title,
		Slug:    slug,
		Color:   input.Color,
		Creator: rbac.OwnerByUserID(user.ID).Ref(),
	}

	if err := s.db.Create(&column).Error; err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to create column")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.Status(fiber.StatusCreated).JSON(columnResponse{Success: true, Column: &column})
}

// DeleteColumn removes a column. Deletion is refused while the column
// still holds tasks that are not completed; completed tasks are removed
// together with the column.
func (s *Service) DeleteColumn(c *fiber.Ctx) error {
	slug := c.Params("slug")

	column, err := s.rbac.GetColumnBySlug(slug)
	if errors.Is(err, rbac.ErrColumnNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, ErrColumnNotFound)
	}

	if err != nil {
		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	var unfinished int64

	err = s.db.Model(&models.Task{}).
		Where("column_id = ? AND UPPER(status) <> ?", column.Slug, models.TaskStatusCompleted).
		Count(&unfinished).Error
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to count column tasks")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	if unfinished > 0 {
		return handler.Fail(c, fiber.StatusConflict, ErrColumnNotEmpty)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if errTx := tx.Where("column_id = ?", column.Slug).
			Delete(&models.Task{}).Error; errTx != nil {
			return errTx
		}

		return tx.Delete(&models.Column{}, column.ID).Error
	})
	if err != nil {
		log.Error().Err(err).Str("slug", slug).Msg("failed to delete column")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return handler.OK(c, "Column deleted")
}
