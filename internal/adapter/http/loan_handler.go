package http

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"zkloan/internal/domain/proof"
	"zkloan/internal/usecase/loan"
	"zkloan/pkg/amount"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type LoanHandler struct {
	uc         *loan.Usecase
	u          units
	minDeposit amount.Amount
	log        *zap.Logger
}

// NewLoanHandler: minDeposit is in base units and gates POST /loans.
func NewLoanHandler(uc *loan.Usecase, decimals int32, minDeposit amount.Amount, log *zap.Logger) *LoanHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanHandler{uc: uc, u: units(decimals), minDeposit: minDeposit, log: log}
}

type requestLoanReq struct {
	BorrowerID      string   `json:"borrower_id"      validate:"required,hex32"`
	Amount          string   `json:"amount"           validate:"required,amount"`
	CreditScore     uint64   `json:"credit_score"`
	Proof           string   `json:"proof"            validate:"required,base64"`
	PublicSignals   []string `json:"public_signals"   validate:"required,min=3,dive,signal"`
	Collateral      string   `json:"collateral"       validate:"required,amount"`
	SecurityDeposit string   `json:"security_deposit" validate:"required,amount"`
}

type repayReq struct {
	Amount string `json:"amount" validate:"required,amount"`
}

func (h *LoanHandler) parse(s string) (amount.Amount, error) {
	return amount.FromDecimal(s, int32(h.u))
}

// RequestLoan answers 201 for an approved loan and 422 for a rejection. Both
// carry the decision body.
func (h *LoanHandler) RequestLoan(c echo.Context) error {
	var req requestLoanReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if acct := c.Request().Header.Get(HeaderAccountID); acct != "" && acct != req.BorrowerID {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "borrower_id does not match " + HeaderAccountID})
	}

	deposit, err := h.parse(req.SecurityDeposit)
	if err != nil {
		return fail(c, h.log, err)
	}
	if deposit.Lt(h.minDeposit) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "security deposit below minimum"})
	}
	principal, err := h.parse(req.Amount)
	if err != nil {
		return fail(c, h.log, err)
	}
	collateral, err := h.parse(req.Collateral)
	if err != nil {
		return fail(c, h.log, err)
	}
	artifact, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "proof is not base64"})
	}

	dec, err := h.uc.RequestLoan(c.Request().Context(), loan.RequestInput{
		BorrowerID:  req.BorrowerID,
		Amount:      principal,
		CreditScore: req.CreditScore,
		Proof:       artifact,
		Signals:     req.PublicSignals,
		Collateral:  collateral,
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	code := http.StatusCreated
	if !dec.Approved {
		code = http.StatusUnprocessableEntity
	}
	return c.JSON(code, h.u.decision(dec))
}

// GetLoan returns the borrower's active loan.
func (h *LoanHandler) GetLoan(c echo.Context) error {
	borrowerID := c.Param("borrower_id")
	if !reHex32.MatchString(borrowerID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid borrower_id"})
	}
	dto, err := h.uc.GetLoan(c.Request().Context(), borrowerID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.u.loan(dto))
}

func (h *LoanHandler) GetLoanByID(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id"})
	}
	dto, err := h.uc.GetLoanByID(c.Request().Context(), loanID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.u.loan(dto))
}

// Repay is only accepted from the borrower's own account.
func (h *LoanHandler) Repay(c echo.Context) error {
	borrowerID := c.Param("borrower_id")
	if !reHex32.MatchString(borrowerID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid borrower_id"})
	}
	if acct := c.Request().Header.Get(HeaderAccountID); acct != "" && acct != borrowerID {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the borrower can repay"})
	}
	var req repayReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	supplied, err := h.parse(req.Amount)
	if err != nil {
		return fail(c, h.log, err)
	}
	res, err := h.uc.Repay(c.Request().Context(), loan.RepayInput{BorrowerID: borrowerID, Amount: supplied})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, repayView{
		Loan:               h.u.loan(res.Loan),
		Supplied:           h.u.str(res.Supplied),
		CollateralReturned: h.u.str(res.CollateralReturned),
	})
}

// Liquidate may be called by any account.
func (h *LoanHandler) Liquidate(c echo.Context) error {
	borrowerID := c.Param("borrower_id")
	if !reHex32.MatchString(borrowerID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid borrower_id"})
	}
	res, err := h.uc.Liquidate(c.Request().Context(), loan.LiquidateInput{
		BorrowerID: borrowerID,
		CallerID:   strings.TrimSpace(c.Request().Header.Get(HeaderAccountID)),
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, liquidateView{
		Loan:               h.u.loan(res.Loan),
		CollateralAbsorbed: h.u.str(res.CollateralAbsorbed),
	})
}

func (h *LoanHandler) GetProof(c echo.Context) error {
	fp := strings.ToLower(c.Param("fingerprint"))
	if !reFingerprint.MatchString(fp) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid fingerprint"})
	}
	used, err := h.uc.IsProofUsed(c.Request().Context(), proof.Fingerprint(fp))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"fingerprint": fp, "used": used})
}

// Activity lists events and payouts for an account. ?limit bounds the events.
func (h *LoanHandler) Activity(c echo.Context) error {
	accountID := c.Param("account_id")
	if !reHex32.MatchString(accountID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid account_id"})
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500"})
		}
		limit = n
	}
	a, err := h.uc.Activity(c.Request().Context(), accountID, limit)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.u.activity(a))
}
