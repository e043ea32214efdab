package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
)

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func teacherMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsTeacher || claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// optionalAuthMiddleware runs JWT auth only when credentials are supplied,
// letting anonymous shoppers through. Identity is then resolved per request
// from the claims or the cart session header.
func optionalAuthMiddleware() echo.MiddlewareFunc {
	jwt := middleware.JWTWithConfig(appJWTConfig)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withAuth := jwt(next)
		return func(ctx echo.Context) error {
			if ctx.Request().Header.Get(echo.HeaderAuthorization) != "" {
				return withAuth(ctx)
			}
			return next(ctx)
		}
	}
}

// cartSessionHeader carries the anonymous cart key, generated client-side.
const cartSessionHeader = "X-Cart-Session"

var errMissingCartSession = echo.NewHTTPError(http.StatusBadRequest, "missing cart session")
