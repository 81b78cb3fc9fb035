package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type AuditEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	Reference string          `json:"reference"`
	AccountID int64           `json:"account_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Details   any             `json:"details,omitempty"`
}

// AuditLogger writes one JSON line per money movement. Card data never
// reaches it; callers pass only the last four digits.
type AuditLogger struct {
	now func() time.Time
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{now: time.Now}
}

func (a *AuditLogger) LogTransfer(reference string, fromAccount, toAccount int64, amount decimal.Decimal, status string) {
	a.log(AuditEvent{
		Timestamp: a.now(),
		EventType: "TRANSFER",
		Reference: reference,
		AccountID: fromAccount,
		Amount:    amount,
		Status:    status,
		Details: map[string]int64{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

func (a *AuditLogger) LogFunding(reference string, accountID int64, amount decimal.Decimal, cardLast4, status string) {
	a.log(AuditEvent{
		Timestamp: a.now(),
		EventType: "FUNDING",
		Reference: reference,
		AccountID: accountID,
		Amount:    amount,
		Status:    status,
		Details:   map[string]string{"card_last4": cardLast4},
	})
}

func (a *AuditLogger) LogError(reference string, accountID int64, err error) {
	a.log(AuditEvent{
		Timestamp: a.now(),
		EventType: "ERROR",
		Reference: reference,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
