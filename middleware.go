package permcore

import (
	"github.com/gofiber/fiber/v2"
)

// Mode selects how a multi-permission requirement combines its names.
type Mode string

const (
	ModeAny Mode = "any"
	ModeAll Mode = "all"
)

// Requirement declares the permissions an operation needs. Requirements are
// bound to routes statically at startup; nothing is discovered by reflection
// at request time.
type Requirement struct {
	Permissions []string `json:"permissions"`
	Mode        Mode     `json:"mode"`
}

// UserIDKey is the request-locals key the upstream authentication layer must
// populate with the caller's user id.
const UserIDKey = "user_id"

// Guard returns Fiber middleware enforcing a requirement. Missing identity is
// 401, an evaluated denial is 403 carrying the required set (and, for AND
// checks, the missing subset), and an engine failure is 500 with no
// permission details leaked.
func (s *Service) Guard(req Requirement) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(UserIDKey).(uint)
		if !ok || userID == 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "no authenticated user")
		}

		switch req.Mode {
		case ModeAll:
			res, err := s.HasAll(c.Context(), userID, req.Permissions)
			if err != nil {
				s.log.Errorw("permission check failed", "user_id", userID, "error", err)
				return fiber.NewError(fiber.StatusInternalServerError, "authorization unavailable")
			}
			if !res.Granted {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error":    "permission denied",
					"required": req.Permissions,
					"mode":     ModeAll,
					"missing":  res.MissingPermissions,
				})
			}
		default:
			granted, err := s.HasAny(c.Context(), userID, req.Permissions)
			if err != nil {
				s.log.Errorw("permission check failed", "user_id", userID, "error", err)
				return fiber.NewError(fiber.StatusInternalServerError, "authorization unavailable")
			}
			if !granted {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error":    "permission denied",
					"required": req.Permissions,
					"mode":     ModeAny,
				})
			}
		}
		return c.Next()
	}
}
