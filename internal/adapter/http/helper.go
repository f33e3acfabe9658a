package http

import (
	"errors"
	"net/http"

	domain "zkloan/internal/domain/loan"
	"zkloan/internal/domain/lock"
	"zkloan/internal/domain/pool"
	"zkloan/pkg/amount"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HeaderAccountID names the caller. The idempotency middleware has already
// checked its format on mutating routes.
const HeaderAccountID = "Ax-Account-Id"

// statusFor maps domain errors → HTTP codes. Anything unknown is an
// accounting or storage fault and becomes 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMalformedSignals),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientRepayment),
		errors.Is(err, pool.ErrZeroDeposit),
		errors.Is(err, amount.ErrPrecision),
		errors.Is(err, amount.ErrNegative):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrActiveLoanExists),
		errors.Is(err, domain.ErrRepaymentDeadlinePassed),
		errors.Is(err, domain.ErrNotYetLiquidatable),
		errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, lock.ErrNotAcquired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an ErrorResponse. Internal faults are logged and not
// echoed to the client.
func fail(c echo.Context, log *zap.Logger, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err))
		return c.JSON(code, ErrorResponse{Error: "internal error"})
	}
	return c.JSON(code, ErrorResponse{Error: err.Error()})
}

// bindValid binds and validates req, writing the 400 itself. ok=false means
// the response is already written.
func bindValid(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}
