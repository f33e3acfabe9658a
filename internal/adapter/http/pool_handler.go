package http

import (
	"context"
	"net/http"
	"strings"

	"zkloan/internal/usecase/pool"
	"zkloan/pkg/amount"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type PoolHandler struct {
	uc  *pool.Usecase
	u   units
	log *zap.Logger
}

func NewPoolHandler(uc *pool.Usecase, decimals int32, log *zap.Logger) *PoolHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PoolHandler{uc: uc, u: units(decimals), log: log}
}

type depositReq struct {
	Amount string `json:"amount" validate:"required,amount"`
}

func (h *PoolHandler) GetPool(c echo.Context) error {
	s, err := h.uc.Stats(c.Request().Context())
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.u.pool(s))
}

func (h *PoolHandler) GetPolicy(c echo.Context) error {
	p := h.uc.Policy()
	return c.JSON(http.StatusOK, policyView{
		LoanDuration:       p.LoanDuration,
		LoanDurationSecs:   p.LoanDurationSecs,
		MinSecurityDeposit: h.u.str(p.MinSecurityDeposit),
		AssetDecimals:      p.AssetDecimals,
	})
}

// Deposit credits LP liquidity from the calling account.
func (h *PoolHandler) Deposit(c echo.Context) error {
	return h.credit(c, h.uc.Deposit, http.StatusCreated)
}

// Receive books a transfer that reached the pool outside Deposit.
func (h *PoolHandler) Receive(c echo.Context) error {
	return h.credit(c, h.uc.ReceiveUnsolicited, http.StatusOK)
}

func (h *PoolHandler) credit(c echo.Context, op func(context.Context, pool.DepositInput) (*pool.StatsDTO, error), code int) error {
	var req depositReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	a, err := amount.FromDecimal(req.Amount, int32(h.u))
	if err != nil {
		return fail(c, h.log, err)
	}
	s, err := op(c.Request().Context(), pool.DepositInput{
		DepositorID: strings.TrimSpace(c.Request().Header.Get(HeaderAccountID)),
		Amount:      a,
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(code, h.u.pool(s))
}
