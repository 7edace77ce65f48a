package middleware

import (
	"strings"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/service"
	pkgerrors "go-inventory-ledger/pkg/errors"
	"go-inventory-ledger/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by RequireAuth.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
	LocalUserRole = "user_role"
)

// RequireAuth validates the bearer token, loads the user and stores identity in locals.
func RequireAuth(auth service.AuthService, logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return deny(c, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authorization token"))
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return deny(c, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid authorization format, use: Bearer <token>"))
		}

		user, err := auth.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			return deny(c, err)
		}

		c.Locals(LocalUserID, user.ID.String())
		c.Locals(LocalUsername, user.Username)
		c.Locals(LocalUserRole, string(user.Role))
		if logg != nil {
			c.SetUserContext(logg.WithUserID(c.UserContext(), user.ID.String()))
		}
		return c.Next()
	}
}

// RequirePrivilege checks the authenticated user's role grants the privilege.
func RequirePrivilege(required model.Privilege) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalUserRole).(string)
		if !ok {
			return deny(c, pkgerrors.New(pkgerrors.CodeForbidden, "no role found"))
		}
		if !model.Role(role).Can(required) {
			return deny(c, pkgerrors.Newf(pkgerrors.CodeForbidden, "forbidden: requires '%s' privilege", required))
		}
		return c.Next()
	}
}

// RequireAnyPrivilege passes when the role grants at least one of the privileges.
func RequireAnyPrivilege(required ...model.Privilege) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalUserRole).(string)
		if !ok {
			return deny(c, pkgerrors.New(pkgerrors.CodeForbidden, "no role found"))
		}
		names := make([]string, len(required))
		for i, p := range required {
			if model.Role(role).Can(p) {
				return c.Next()
			}
			names[i] = string(p)
		}
		return deny(c, pkgerrors.Newf(pkgerrors.CodeForbidden,
			"forbidden: requires one of %s privileges", strings.Join(names, ", ")))
	}
}

func deny(c *fiber.Ctx, err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "unauthorized")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	message := typed.Message()
	if meta.HTTPStatus >= fiber.StatusInternalServerError {
		message = meta.PublicMessage
	}
	return c.Status(meta.HTTPStatus).JSON(fiber.Map{"error": message, "code": typed.Code()})
}
