package plugins

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/linht/logiclk-manager/mmcm"
)

// APIResponse is the envelope of every JSON reply
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// errorStatus maps core errors to HTTP status codes, first match wins
var errorStatus = []struct {
	err    error
	status int
}{
	{mmcm.ErrInvalidOutput, fiber.StatusBadRequest},
	{mmcm.ErrInvalidFrequency, fiber.StatusBadRequest},
	{mmcm.ErrInvalidParameters, fiber.StatusBadRequest},
	{mmcm.ErrInvalidConfig, fiber.StatusBadRequest},
	{mmcm.ErrLockTimeout, fiber.StatusGatewayTimeout},
	{mmcm.ErrClosed, fiber.StatusServiceUnavailable},
}

// SendSuccess sends a successful response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return c.JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends an error response
func SendError(c *fiber.Ctx, status int, err error) error {
	return SendErrorMessage(c, status, err.Error())
}

// SendErrorMessage sends an error response with a custom message
func SendErrorMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   message,
	})
}

// SendMappedError sends err with the status of its core error kind,
// 500 for anything else (register I/O)
func SendMappedError(c *fiber.Ctx, err error) error {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return SendError(c, e.status, err)
		}
	}
	return SendError(c, fiber.StatusInternalServerError, err)
}
