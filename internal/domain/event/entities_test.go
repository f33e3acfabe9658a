package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"zkloan/pkg/amount"
)

func TestNew_LoanApprovedPayload(t *testing.T) {
	at := time.Date(2025, 9, 6, 10, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	ev, err := New(KindLoanApproved, "bbbb", LoanApproved{
		Borrower:    "bbbb",
		Amount:      amount.New(20),
		Collateral:  amount.New(24),
		Ratio:       120,
		CreditScore: 700,
		Timestamp:   at.Unix(),
	}, at)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Fatalf("event id is not a uuid: %q", ev.ID)
	}
	if ev.CreatedAt.Location() != time.UTC {
		t.Fatalf("CreatedAt must be UTC, got %v", ev.CreatedAt.Location())
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(ev.Payload), &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	want := map[string]any{
		"borrower":    "bbbb",
		"amount":      "20",
		"collateral":  "24",
		"ratio":       float64(120),
		"creditScore": float64(700),
		"timestamp":   float64(at.Unix()),
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("payload[%s] = %v, want %v", k, got[k], v)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("payload has extra fields: %v", got)
	}
}
