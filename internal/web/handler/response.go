package handler

import "github.com/gofiber/fiber/v2"

// Response is the JSON envelope shared by all API handlers.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Fail writes a JSON failure response with the given status code.
func Fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Response{Success: false, Message: message})
}

// OK writes a JSON success response.
func OK(c *fiber.Ctx, message string) error {
	return c.JSON(Response{Success: true, Message: message})
}
