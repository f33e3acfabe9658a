package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zkloan/internal/domain/pool"
	"zkloan/internal/testutil/authoritymock"
	"zkloan/internal/testutil/lockmock"
	"zkloan/internal/testutil/memstore"
	"zkloan/internal/usecase/loan"
	pooluc "zkloan/internal/usecase/pool"
	"zkloan/pkg/amount"

	"github.com/holiman/uint256"
	"github.com/labstack/echo/v4"
)

// -------- helpers --------

// one decimal place: "10" on the wire is 100 base units
const decimals = 1

var (
	borrowerID = strings.Repeat("b", 32)
	keeperID   = strings.Repeat("c", 32)
)

type server struct {
	e     *echo.Echo
	store *memstore.Store
	ver   *authoritymock.Verifier
	rules *authoritymock.Constraints
	now   time.Time
}

func newServer(t *testing.T, liquidity uint64) *server {
	t.Helper()
	s := &server{
		store: memstore.New(),
		ver:   &authoritymock.Verifier{},
		rules: &authoritymock.Constraints{Ratio: 150},
		now:   time.Date(2025, 9, 6, 10, 0, 0, 0, time.UTC),
	}
	s.store.SetPool(pool.State{TotalValueLocked: amount.New(liquidity), Liquidity: amount.New(liquidity)})

	loans := loan.NewUsecase(loan.Deps{
		UoW:          s.store,
		Locker:       lockmock.New(),
		Verifier:     s.ver,
		Models:       &authoritymock.Models{},
		Constraints:  s.rules,
		LoanDuration: 24 * time.Hour,
		Clock:        func() time.Time { return s.now },
	})
	minDeposit := amount.New(1)
	pools := pooluc.NewUsecase(s.store, pooluc.Policy{
		LoanDuration:       24 * time.Hour,
		MinSecurityDeposit: minDeposit,
		AssetDecimals:      decimals,
	}, nil, nil, nil)

	s.e = echo.New()
	s.e.Validator = NewValidator(decimals)
	Register(s.e, NewHandler(nil), NewLoanHandler(loans, decimals, minDeposit, nil), NewPoolHandler(pools, decimals, nil))
	return s
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func (s *server) do(method, path string, body any, account string) *httptest.ResponseRecorder {
	var req *stdhttp.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, mustJSON(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if account != "" {
		req.Header.Set(HeaderAccountID, account)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func loanBody(amt, collateral, artifact string) map[string]any {
	return map[string]any{
		"borrower_id":      borrowerID,
		"amount":           amt,
		"credit_score":     720,
		"proof":            base64.StdEncoding.EncodeToString([]byte(artifact)),
		"public_signals":   []string{"5000", "30", "0x2a"},
		"collateral":       collateral,
		"security_deposit": "0.1",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("bad json: %v; raw=%s", err, rec.Body.String())
	}
	return v
}

func wantPool(t *testing.T, s *server, tvl, liq string) {
	t.Helper()
	rec := s.do(stdhttp.MethodGet, "/pool", nil, "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("GET /pool status = %d", rec.Code)
	}
	got := decode[poolView](t, rec)
	if got.TotalValueLocked != tvl || got.Liquidity != liq {
		t.Fatalf("pool = %+v, want tvl %s liquidity %s", got, tvl, liq)
	}
}

// -------- tests --------

func TestRequestLoan_ApprovedThenRepaid(t *testing.T) {
	s := newServer(t, 100)

	rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), borrowerID)
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201; body=%s", rec.Code, rec.Body.String())
	}
	dec := decode[decisionView](t, rec)
	if !dec.Approved || dec.Loan == nil || dec.CollateralRatio != 150 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if dec.Loan.Principal != "2" || dec.Loan.Collateral != "3" || dec.Loan.State != "active" {
		t.Fatalf("unexpected loan: %+v", dec.Loan)
	}
	wantPool(t, s, "11", "8")

	rec = s.do(stdhttp.MethodGet, "/loans/"+borrowerID, nil, "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("GET loan status = %d", rec.Code)
	}
	if got := decode[loanView](t, rec); got.LoanID != dec.Loan.LoanID {
		t.Fatalf("loan_id = %s, want %s", got.LoanID, dec.Loan.LoanID)
	}

	rec = s.do(stdhttp.MethodPost, "/loans/"+borrowerID+"/repay", map[string]string{"amount": "2"}, borrowerID)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("repay status = %d; body=%s", rec.Code, rec.Body.String())
	}
	rep := decode[repayView](t, rec)
	if rep.CollateralReturned != "3" || rep.Loan.State != "repaid" {
		t.Fatalf("unexpected repay: %+v", rep)
	}
	wantPool(t, s, "10", "10")

	rec = s.do(stdhttp.MethodGet, "/loans/"+borrowerID, nil, "")
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("GET after repay status = %d, want 404", rec.Code)
	}
	rec = s.do(stdhttp.MethodGet, "/loans/id/"+dec.Loan.LoanID, nil, "")
	if rec.Code != stdhttp.StatusOK || decode[loanView](t, rec).State != "repaid" {
		t.Fatalf("GET by id status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = s.do(stdhttp.MethodGet, "/proofs/"+dec.Fingerprint, nil, "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("GET proof status = %d", rec.Code)
	}
	if m := decode[map[string]any](t, rec); m["used"] != true {
		t.Fatalf("proof not reported used: %v", m)
	}
}

func TestRequestLoan_RejectedIs422(t *testing.T) {
	s := newServer(t, 100)
	s.ver.VerifyFn = func(context.Context, []byte, []string) (bool, error) { return false, nil }

	rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), "")
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body=%s", rec.Code, rec.Body.String())
	}
	dec := decode[decisionView](t, rec)
	if dec.Approved || dec.Reason != string(loan.ReasonInvalidProof) || dec.Loan != nil {
		t.Fatalf("unexpected decision: %+v", dec)
	}

	// same artifact again: replay
	s.ver.VerifyFn = nil
	rec = s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), "")
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if dec := decode[decisionView](t, rec); dec.Reason != string(loan.ReasonReplay) {
		t.Fatalf("reason = %q, want replay", dec.Reason)
	}
	wantPool(t, s, "10", "10")
}

func TestRequestLoan_InsufficientCollateral(t *testing.T) {
	s := newServer(t, 100)
	// 2 * 150% = 3; 2.9 falls short
	rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "2.9", "p1"), "")
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if dec := decode[decisionView](t, rec); dec.Reason != string(loan.ReasonInsufficientCollateral) {
		t.Fatalf("reason = %q", dec.Reason)
	}
}

func TestRequestLoan_BadInput(t *testing.T) {
	s := newServer(t, 100)

	cases := []struct {
		name   string
		mutate func(m map[string]any)
		raw    string
		code   int
		detail string
	}{
		{name: "broken json", raw: `{"borrower_id":`, code: stdhttp.StatusBadRequest},
		{name: "bad borrower", mutate: func(m map[string]any) { m["borrower_id"] = "NOT_HEX" }, code: stdhttp.StatusBadRequest, detail: "borrower_id"},
		{name: "too precise", mutate: func(m map[string]any) { m["amount"] = "1.25" }, code: stdhttp.StatusBadRequest, detail: "amount"},
		{name: "two signals", mutate: func(m map[string]any) { m["public_signals"] = []string{"1", "2"} }, code: stdhttp.StatusBadRequest, detail: "public_signals"},
		{name: "proof not base64", mutate: func(m map[string]any) { m["proof"] = "***" }, code: stdhttp.StatusBadRequest, detail: "proof"},
		{name: "deposit below minimum", mutate: func(m map[string]any) { m["security_deposit"] = "0" }, code: stdhttp.StatusBadRequest},
		{name: "zero amount", mutate: func(m map[string]any) { m["amount"] = "0" }, code: stdhttp.StatusBadRequest},
		{name: "exceeds liquidity", mutate: func(m map[string]any) { m["amount"] = "11" }, code: stdhttp.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req *stdhttp.Request
			if tc.raw != "" {
				req = httptest.NewRequest(stdhttp.MethodPost, "/loans", strings.NewReader(tc.raw))
			} else {
				body := loanBody("2", "3", "p-"+tc.name)
				tc.mutate(body)
				req = httptest.NewRequest(stdhttp.MethodPost, "/loans", mustJSON(body))
			}
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			s.e.ServeHTTP(rec, req)

			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d; body=%s", rec.Code, tc.code, rec.Body.String())
			}
			if tc.detail != "" {
				er := decode[ErrorResponse](t, rec)
				found := false
				for _, d := range er.Details {
					if strings.HasPrefix(d.Field, tc.detail) {
						found = true
					}
				}
				if !found {
					t.Fatalf("missing detail for %s: %+v", tc.detail, er.Details)
				}
			}
		})
	}
	if n := len(s.store.Events()); n != 0 {
		t.Fatalf("bad input wrote %d events", n)
	}
}

func TestRequestLoan_AccountMismatchForbidden(t *testing.T) {
	s := newServer(t, 100)
	rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), keeperID)
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequestLoan_SecondActiveLoanConflict(t *testing.T) {
	s := newServer(t, 100)
	if rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), ""); rec.Code != stdhttp.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p2"), "")
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("second status = %d, want 409", rec.Code)
	}
}

func TestRequestLoan_AuthorityFaultIs500(t *testing.T) {
	s := newServer(t, 100)
	s.rules.CheckEligibilityFn = func(context.Context, *uint256.Int, *uint256.Int, uint64) (bool, error) {
		return false, errors.New("policy store down")
	}

	rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), "")
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if er := decode[ErrorResponse](t, rec); er.Error != "internal error" {
		t.Fatalf("error = %q, internal details leaked", er.Error)
	}
}

func TestRepay_Errors(t *testing.T) {
	s := newServer(t, 100)

	rec := s.do(stdhttp.MethodPost, "/loans/"+borrowerID+"/repay", map[string]string{"amount": "2"}, "")
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("no loan: status = %d, want 404", rec.Code)
	}

	if rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), ""); rec.Code != stdhttp.StatusCreated {
		t.Fatalf("request status = %d", rec.Code)
	}

	rec = s.do(stdhttp.MethodPost, "/loans/"+borrowerID+"/repay", map[string]string{"amount": "2"}, keeperID)
	if rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("other account: status = %d, want 403", rec.Code)
	}
	rec = s.do(stdhttp.MethodPost, "/loans/"+borrowerID+"/repay", map[string]string{"amount": "1.9"}, "")
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("short repayment: status = %d, want 400", rec.Code)
	}

	s.now = s.now.Add(24*time.Hour + time.Second)
	rec = s.do(stdhttp.MethodPost, "/loans/"+borrowerID+"/repay", map[string]string{"amount": "2"}, "")
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("late repayment: status = %d, want 409", rec.Code)
	}
}

func TestLiquidate(t *testing.T) {
	s := newServer(t, 100)
	if rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), ""); rec.Code != stdhttp.StatusCreated {
		t.Fatalf("request status = %d", rec.Code)
	}

	rec := s.do(stdhttp.MethodPost, "/loans/"+borrowerID+"/liquidate", nil, keeperID)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("early liquidation: status = %d, want 409", rec.Code)
	}

	s.now = s.now.Add(24*time.Hour + time.Second)
	rec = s.do(stdhttp.MethodPost, "/loans/"+borrowerID+"/liquidate", nil, keeperID)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("liquidation: status = %d; body=%s", rec.Code, rec.Body.String())
	}
	got := decode[liquidateView](t, rec)
	if got.CollateralAbsorbed != "3" || got.Loan.State != "liquidated" {
		t.Fatalf("unexpected liquidation: %+v", got)
	}
	wantPool(t, s, "11", "11")
}

func TestQueries_InvalidParams(t *testing.T) {
	s := newServer(t, 100)
	for _, path := range []string{
		"/loans/XYZ",
		"/loans/id/short",
		"/proofs/0x1234",
		"/accounts/nothex/activity",
		"/accounts/" + borrowerID + "/activity?limit=0",
	} {
		if rec := s.do(stdhttp.MethodGet, path, nil, ""); rec.Code != stdhttp.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", path, rec.Code)
		}
	}
	rec := s.do(stdhttp.MethodGet, "/proofs/0x"+strings.Repeat("0", 64), nil, "")
	if rec.Code != stdhttp.StatusOK || decode[map[string]any](t, rec)["used"] != false {
		t.Fatalf("unused proof: status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestActivity(t *testing.T) {
	s := newServer(t, 100)
	if rec := s.do(stdhttp.MethodPost, "/loans", loanBody("2", "3", "p1"), ""); rec.Code != stdhttp.StatusCreated {
		t.Fatalf("request status = %d", rec.Code)
	}

	rec := s.do(stdhttp.MethodGet, "/accounts/"+borrowerID+"/activity?limit=10", nil, "")
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[activityView](t, rec)
	if len(got.Events) != 1 || got.Events[0].Kind != "LoanApproved" {
		t.Fatalf("events = %+v", got.Events)
	}
	if len(got.Payouts) != 1 || got.Payouts[0].Amount != "2" || got.Payouts[0].Purpose != "disbursement" {
		t.Fatalf("payouts = %+v", got.Payouts)
	}
	var payload map[string]any
	if err := json.Unmarshal(got.Events[0].Payload, &payload); err != nil || payload["borrower"] != borrowerID {
		t.Fatalf("payload = %s (%v)", got.Events[0].Payload, err)
	}
}
