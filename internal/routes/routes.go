package routes

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/calyptra/permcore"
	"github.com/calyptra/permcore/internal/db"
)

// Route requirements are declared statically and bound at startup, so a
// missing declaration is visible in one place instead of scattered over
// handler decorators.
var userListRequirement = permcore.Requirement{
	Permissions: []string{"users.read", "users.*"},
	Mode:        permcore.ModeAny,
}

type handlers struct {
	svc *permcore.Service
	pg  *db.PostgresDB
}

// Setup registers all routes on the Fiber app.
func Setup(app *fiber.App, svc *permcore.Service, pg *db.PostgresDB) {
	h := &handlers{svc: svc, pg: pg}

	app.Use(requestID())
	app.Use(identity())

	app.Get("/healthz", h.health)

	api := app.Group("/api/v1")

	authz := api.Group("/authz")
	authz.Post("/check", h.check)
	authz.Post("/check-any", h.checkAny)
	authz.Post("/check-all", h.checkAll)
	authz.Get("/scope", h.scope)
	authz.Post("/invalidate/:userID", h.invalidateUser)
	authz.Post("/invalidate", h.invalidateAll)

	// Sample scoped resource: the guard runs first, then the handler asks for
	// the caller's row-level scope. The data access layer is expected to
	// render the predicate into its query.
	api.Get("/users", svc.Guard(userListRequirement), h.listUsers)
}

// requestID tags every request for log correlation.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set("X-Request-ID", id)
		return c.Next()
	}
}

// identity trusts the user id the upstream gateway resolved from the JWT.
// Token verification itself happens before traffic reaches this service.
func identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := c.Get("X-User-ID"); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 32); err == nil && id > 0 {
				c.Locals(permcore.UserIDKey, uint(id))
			}
		}
		return c.Next()
	}
}

type checkRequest struct {
	UserID      uint     `json:"user_id"`
	Permission  string   `json:"permission"`
	Permissions []string `json:"permissions"`
}

func (h *handlers) check(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	res, err := h.svc.Check(c.Context(), req.UserID, req.Permission)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(res)
}

func (h *handlers) checkAny(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	granted, err := h.svc.HasAny(c.Context(), req.UserID, req.Permissions)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(fiber.Map{"granted": granted})
}

func (h *handlers) checkAll(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	res, err := h.svc.HasAll(c.Context(), req.UserID, req.Permissions)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(res)
}

func (h *handlers) scope(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
	if err != nil || userID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}
	table := c.Query("table")
	if table == "" {
		return fiber.NewError(fiber.StatusBadRequest, "table is required")
	}
	scope, err := h.svc.ScopeForUser(c.Context(), uint(userID), table, c.Query("column"))
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(scope)
}

func (h *handlers) invalidateUser(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userID"), 10, 32)
	if err != nil || userID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	h.svc.InvalidateUser(uint(userID))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) invalidateAll(c *fiber.Ctx) error {
	h.svc.InvalidateAll()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) listUsers(c *fiber.Ctx) error {
	userID := c.Locals(permcore.UserIDKey).(uint)
	scope, err := h.svc.ScopeForUser(c.Context(), userID, "users", "")
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(fiber.Map{"scope": scope})
}

func (h *handlers) health(c *fiber.Ctx) error {
	if h.pg != nil {
		if err := h.pg.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"cache":  h.svc.CacheStats(),
	})
}

// mapEngineError keeps bad requests and store failures apart: an unreachable
// store is a 5xx, never a 403.
func mapEngineError(err error) error {
	switch {
	case errors.Is(err, permcore.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, permcore.ErrStoreUnavailable):
		return fiber.NewError(fiber.StatusInternalServerError, "authorization unavailable")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
