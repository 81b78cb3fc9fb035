package models

import (
	"fmt"
	"strings"
	"time"
)

// FundingInstrument is a card presented for a single funding or transfer.
// It is never persisted; only Last4 ends up on the transaction record.
type FundingInstrument struct {
	CardNumber string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	Expiry     string `json:"expiry" validate:"required,expiry"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// NewFundingInstrument returns nil when every card field is blank, which is
// how the browser client submits test-mode transfers.
func NewFundingInstrument(cardNumber, expiry, cvv string) *FundingInstrument {
	inst := &FundingInstrument{
		CardNumber: NormalizeCardNumber(cardNumber),
		Expiry:     strings.TrimSpace(expiry),
		CVV:        strings.TrimSpace(cvv),
	}
	if inst.IsEmpty() {
		return nil
	}
	return inst
}

func (f *FundingInstrument) IsEmpty() bool {
	return f == nil || (f.CardNumber == "" && f.Expiry == "" && f.CVV == "")
}

func (f *FundingInstrument) Last4() string {
	if len(f.CardNumber) < 4 {
		return f.CardNumber
	}
	return f.CardNumber[len(f.CardNumber)-4:]
}

// ExpiresAt returns the first instant after the card's expiry month.
func (f *FundingInstrument) ExpiresAt() (time.Time, error) {
	t, err := time.Parse("01/06", f.Expiry)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q: %w", f.Expiry, err)
	}
	return t.AddDate(0, 1, 0), nil
}

// String never includes the full card number or CVV.
func (f *FundingInstrument) String() string {
	return fmt.Sprintf("card ****%s exp %s", f.Last4(), f.Expiry)
}

// NormalizeCardNumber strips the spaces and dashes people type into card fields.
func NormalizeCardNumber(number string) string {
	clean := strings.ReplaceAll(strings.TrimSpace(number), " ", "")
	return strings.ReplaceAll(clean, "-", "")
}
