package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderActorID carries the authenticated actor's ID. Authentication
// itself happens upstream (gateway or reverse proxy); this service only
// requires that an identity was established.
const HeaderActorID = "X-Actor-ID"

const actorIDKey contextKey = "actor_id"

// RequireActor rejects requests that do not carry a valid actor ID.
func RequireActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(HeaderActorID)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing "+HeaderActorID+" header")
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid "+HeaderActorID+" header")
			}

			c.Set(string(actorIDKey), id)
			return next(c)
		}
	}
}

// ActorFrom returns the actor ID established by RequireActor. The zero
// UUID means the middleware did not run.
func ActorFrom(c echo.Context) uuid.UUID {
	id, _ := c.Get(string(actorIDKey)).(uuid.UUID)
	return id
}
