package handlers

import (
	stderrors "errors"

	"marketplace/pkg/errors"
	"marketplace/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// errorBody is the JSON shape of every error response.
func errorBody(err error) (int, fiber.Map) {
	typed := errors.As(err)
	code := errors.CodeOf(err)
	meta := errors.MetadataFor(code)

	message := meta.PublicMessage
	if typed != nil && code != errors.CodeInternal && typed.Message() != "" {
		message = typed.Message()
	}
	body := fiber.Map{
		"code":    code,
		"message": message,
	}
	if typed != nil && meta.DetailsAllowed && typed.Details() != nil {
		body["details"] = typed.Details()
	}
	return meta.HTTPStatus, body
}

// writeError maps err to its HTTP status and logs server-side failures.
func writeError(c *fiber.Ctx, logg *logger.Logger, err error) error {
	status, body := errorBody(err)
	if status >= fiber.StatusInternalServerError {
		logg.Error(c.UserContext(), "request failed", err)
	}
	return c.Status(status).JSON(body)
}

// parseBody decodes the JSON request body into out.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errors.Wrap(errors.CodeValidation, err, "Invalid request body")
	}
	return nil
}

// ErrorHandler renders errors that escape a handler, such as unmatched routes
// and recovered panics, in the same shape as writeError.
func ErrorHandler(logg *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if stderrors.As(err, &fiberErr) {
			code := errors.CodeInternal
			switch fiberErr.Code {
			case fiber.StatusNotFound:
				code = errors.CodeNotFound
			case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
				code = errors.CodeValidation
			}
			if code != errors.CodeInternal {
				return c.Status(fiberErr.Code).JSON(fiber.Map{
					"code":    code,
					"message": fiberErr.Message,
				})
			}
		}
		return writeError(c, logg, err)
	}
}
