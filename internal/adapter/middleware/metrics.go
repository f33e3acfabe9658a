package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestObserver records one served request.
type RequestObserver interface {
	ObserveRequest(method, route, code string, seconds float64)
}

// RequestMetrics labels by route template (c.Path()), never the raw URL, so
// ids in paths do not explode label cardinality.
func RequestMetrics(obs RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(c.Request().Method, route, strconv.Itoa(c.Response().Status), time.Since(start).Seconds())
			return nil
		}
	}
}
