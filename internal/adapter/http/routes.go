package http

import "github.com/labstack/echo/v4"

// Register mounts every route. mutating wraps the POST routes (idempotency).
func Register(e *echo.Echo, h *Handler, loans *LoanHandler, pool *PoolHandler, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)
	e.GET("/policy", pool.GetPolicy)

	e.GET("/pool", pool.GetPool)
	e.POST("/pool/deposits", pool.Deposit, mutating...)
	e.POST("/pool/receipts", pool.Receive, mutating...)

	e.POST("/loans", loans.RequestLoan, mutating...)
	e.GET("/loans/id/:loan_id", loans.GetLoanByID)
	e.GET("/loans/:borrower_id", loans.GetLoan)
	e.POST("/loans/:borrower_id/repay", loans.Repay, mutating...)
	e.POST("/loans/:borrower_id/liquidate", loans.Liquidate, mutating...)

	e.GET("/proofs/:fingerprint", loans.GetProof)
	e.GET("/accounts/:account_id/activity", loans.Activity)
}
