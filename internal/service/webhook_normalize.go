package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"investment-core/internal/core/domain"

	"github.com/shopspring/decimal"
)

// AmountUnit says how provider amounts are denominated.
type AmountUnit string

const (
	AmountUnitAuto  AmountUnit = "auto"  // integers above the threshold are minor units
	AmountUnitMajor AmountUnit = "major" // reais
	AmountUnitMinor AmountUnit = "minor" // centavos
)

// DefaultMinorThreshold applies when no positive threshold is configured.
const DefaultMinorThreshold int64 = 1000

var errMissingTransactionID = errors.New("missing transaction id")

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexAmount accepts 25.5, "25.50" or 2550 and remembers whether the
// literal was an integer.
type flexAmount struct {
	value   decimal.Decimal
	integer bool
	set     bool
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	lit := string(b)
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(lit)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		lit = strings.TrimSpace(s)
	}
	v, err := decimal.NewFromString(lit)
	if err != nil {
		return fmt.Errorf("amount %q: %w", lit, err)
	}
	a.value = v
	a.integer = !strings.ContainsAny(lit, ".eE")
	a.set = true
	return nil
}

type customerFields struct {
	Email string `json:"email"`
}

// webhookFields covers both the nested and the flat legacy shape.
type webhookFields struct {
	Event             string          `json:"event"`
	Type              string          `json:"type"`
	EventType         string          `json:"event_type"`
	ID                flexString      `json:"id"`
	TransactionID     flexString      `json:"transaction_id"`
	Status            string          `json:"status"`
	Amount            flexAmount      `json:"amount"`
	ExternalReference string          `json:"external_reference"`
	Email             string          `json:"email"`
	Customer          *customerFields `json:"customer"`
	Data              *webhookFields  `json:"data"`
}

func (f *webhookFields) eventName() string {
	return firstNonEmpty(f.Event, f.Type, f.EventType)
}

func (f *webhookFields) email() string {
	if f.Email != "" {
		return f.Email
	}
	if f.Customer != nil {
		return f.Customer.Email
	}
	return ""
}

// NormalizePaymentEvent maps either provider payload shape onto a
// PaymentEvent with the amount in major units.
//
//	nested: {"event":"payment.approved","data":{"transaction_id":"..","status":"approved","amount":25.5}}
//	flat:   {"event":"payment.approved","transaction_id":"..","status":"approved","amount":25.5}
func NormalizePaymentEvent(raw []byte, unit AmountUnit, minorThreshold int64) (domain.PaymentEvent, error) {
	var top webhookFields
	if err := json.Unmarshal(raw, &top); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("decode payload: %w", err)
	}

	// Fields inside data win; the flat shape has none.
	data := top.Data
	if data == nil {
		data = &webhookFields{}
	}

	txID := firstNonEmpty(string(data.TransactionID), string(data.ID), string(top.TransactionID))
	if strings.TrimSpace(txID) == "" {
		return domain.PaymentEvent{}, errMissingTransactionID
	}

	amount := data.Amount
	if !amount.set {
		amount = top.Amount
	}

	return domain.PaymentEvent{
		EventType:         strings.ToLower(strings.TrimSpace(firstNonEmpty(top.eventName(), data.eventName()))),
		TransactionID:     strings.TrimSpace(txID),
		Status:            strings.ToLower(strings.TrimSpace(firstNonEmpty(data.Status, top.Status))),
		Amount:            toMajorUnits(amount, unit, minorThreshold),
		ExternalReference: strings.TrimSpace(firstNonEmpty(data.ExternalReference, top.ExternalReference)),
		Email:             strings.ToLower(strings.TrimSpace(firstNonEmpty(data.email(), top.email()))),
	}, nil
}

func toMajorUnits(a flexAmount, unit AmountUnit, minorThreshold int64) decimal.Decimal {
	if !a.set {
		return decimal.Zero
	}
	v := a.value
	switch unit {
	case AmountUnitMinor:
		v = v.Shift(-2)
	case AmountUnitMajor:
	default:
		if minorThreshold <= 0 {
			minorThreshold = DefaultMinorThreshold
		}
		if a.integer && v.GreaterThan(decimal.NewFromInt(minorThreshold)) {
			v = v.Shift(-2)
		}
	}
	return v.Round(2)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
