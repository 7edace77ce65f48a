package handler

import (
	"errors"

	"go-inventory-ledger/internal/middleware"
	pkgerrors "go-inventory-ledger/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// writeError maps a service error onto its HTTP status. Internal causes never leak.
func writeError(c *fiber.Ctx, err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := fiber.Map{"error": typed.Message(), "code": typed.Code()}
	if meta.HTTPStatus >= fiber.StatusInternalServerError || typed.Message() == "" {
		body["error"] = meta.PublicMessage
	}
	if meta.DetailsAllowed && typed.Details() != nil {
		body["details"] = typed.Details()
	}
	if meta.Retryable {
		body["retryable"] = true
	}
	return c.Status(meta.HTTPStatus).JSON(body)
}

// ErrorHandler is the fiber fallback for errors that escape a handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return writeError(c, err)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return writeError(c, pkgerrors.New(pkgerrors.CodeValidation, msg))
}

func parseID(c *fiber.Ctx, param, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid %s ID", what)
	}
	return id, nil
}

// currentUserID reads the identity RequireAuth stored in locals.
func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals(middleware.LocalUserID).(string)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user identity")
	}
	return id, nil
}
