// Package task provides the board task endpoints.
package task

import (
	"errors"
	"time"

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
	Path   = "/tasks"
	IDPath = "/tasks/:id"
)

// User-facing error messages.
const (
	ErrValidation     = "Invalid task data"
	ErrTaskNotFound   = "Task not found"
	ErrColumnNotFound = "Column not found"
	ErrInternal       = "Internal server error"
)

type taskInput struct {
	Title    string `json:"title" validate:"required,max=255"`
	Assigned string `json:"assigned" validate:"max=255"`
	Date     string `json:"date" validate:"max=64"`
	ColumnID string `json:"columnId" validate:"required,max=255"`
}

type taskPatch struct {
	Title    *string `json:"title" validate:"omitempty,max=255"`
	Status   *string `json:"status" validate:"omitempty,oneof=STARTED COMPLETED"`
	Assigned *string `json:"assigned" validate:"omitempty,max=255"`
	ColumnID *string `json:"columnId" validate:"omitempty,max=255"`
}

type taskResponse struct {
	Success bool         `json:"success"`
	Task    *models.Task `json:"task"`
}

// Service is the task handler service.
type Service struct {
	handler.Service
	db        *gorm.DB
	rbac      *rbac.Service
	validator *validator.Validate
}

// Handler is the task handler.
var Handler = Service{}

// Init initializes the task handler behind the task authorization gates.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, rbacService *rbac.Service) error {
	if app == nil || cfg == nil || db == nil || rbacService == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.rbac = rbacService
	s.validator = validator.New()

	app.Post(Path, rbac.RequireTaskPermission(rbacService, rbac.TaskActionCreate), s.Post)
	app.Patch(IDPath, rbac.RequireTaskPermission(rbacService, rbac.TaskActionUpdate), s.Patch)
	app.Delete(IDPath, rbac.RequireTaskPermission(rbacService, rbac.TaskActionDelete), s.Delete)

	return nil
}

// Post creates a task in the given column. The creator is recorded in
// the canonical user ID form so later ownership checks do not depend on
// the username staying stable.
func (s *Service) Post(c *fiber.Ctx) error {
	user, ok := rbac.SessionUser(c)
	if !ok {
		return handler.Fail(c, fiber.StatusUnauthorized, "Authentication required")
	}

	input := new(taskInput)

	if err := c.BodyParser(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if err := s.validator.Struct(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if _, err := s.rbac.GetColumnBySlug(input.ColumnID); err != nil {
		if errors.Is(err, rbac.ErrColumnNotFound) {
			return handler.Fail(c, fiber.StatusNotFound, ErrColumnNotFound)
		}

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	date := input.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	task := models.Task{
		Title:    input.Title,
		Status:   models.TaskStatusStarted,
		Assigned: input.Assigned,
		Date:     date,
		ColumnID: input.ColumnID,
		Creator:  rbac.OwnerByUserID(user.ID).Ref(),
	}

	if err := s.db.Create(&task).Error; err != nil {
		log.Error().Err(err).Str("title", input.Title).Msg("failed to create task")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.Status(fiber.StatusCreated).JSON(taskResponse{Success: true, Task: &task})
}

// Patch applies a partial update to a task. Only the provided fields
// change; moving the task validates the target column first.
func (s *Service) Patch(c *fiber.Ctx) error {
	taskID, err := c.ParamsInt("id")
	if err != nil || taskID <= 0 {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	input := new(taskPatch)

	if err = c.BodyParser(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	if err = s.validator.Struct(input); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	task, err := s.rbac.GetTaskByID(uint64(taskID))
	if errors.Is(err, rbac.ErrTaskNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, ErrTaskNotFound)
	}

	if err != nil {
		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	updates := map[string]interface{}{}

	if input.Title != nil {
		updates["title"] = *input.Title
	}

	if input.Status != nil {
		updates["status"] = *input.Status
	}

	if input.Assigned != nil {
		updates["assigned"] = *input.Assigned
	}

	if input.ColumnID != nil {
		if _, err = s.rbac.GetColumnBySlug(*input.ColumnID); err != nil {
			if errors.Is(err, rbac.ErrColumnNotFound) {
				return handler.Fail(c, fiber.StatusNotFound, ErrColumnNotFound)
			}

			return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
		}

		updates["column_id"] = *input.ColumnID
	}

	if len(updates) == 0 {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	err = s.db.Model(&models.Task{}).Where("id = ?", task.ID).Updates(updates).Error
	if err != nil {
		log.Error().Err(err).Uint64("task_id", task.ID).Msg("failed to update task")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	updated, err := s.rbac.GetTaskByID(task.ID)
	if err != nil {
		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return c.JSON(taskResponse{Success: true, Task: updated})
}

// Delete removes a task.
func (s *Service) Delete(c *fiber.Ctx) error {
	taskID, err := c.ParamsInt("id")
	if err != nil || taskID <= 0 {
		return handler.Fail(c, fiber.StatusBadRequest, ErrValidation)
	}

	task, err := s.rbac.GetTaskByID(uint64(taskID))
	if errors.Is(err, rbac.ErrTaskNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, ErrTaskNotFound)
	}

	if err != nil {
		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	if err = s.db.Delete(&models.Task{}, task.ID).Error; err != nil {
		log.Error().Err(err).Uint64("task_id", task.ID).Msg("failed to delete task")

		return handler.Fail(c, fiber.StatusInternalServerError, ErrInternal)
	}

	return handler.OK(c, "Task deleted")
}
