package domain

import (
	"github.com/shopspring/decimal"
)

// PayoutMethod is how a withdrawal leaves the platform.
type PayoutMethod string

const (
	PayoutPix    PayoutMethod = "pix"
	PayoutCrypto PayoutMethod = "crypto"
)

// WithdrawalDestination is where the net amount is sent.
type WithdrawalDestination struct {
	Method  PayoutMethod `json:"method"`
	Key     string       `json:"key,omitempty"`
	KeyType string       `json:"key_type,omitempty"` // cpf, cnpj, email, phone, random
	Address string       `json:"address,omitempty"`
	Network string       `json:"network,omitempty"`
}

// Target returns the key or address the payout gateway should pay.
func (d WithdrawalDestination) Target() (string, string) {
	if d.Method == PayoutCrypto {
		return d.Address, d.Network
	}
	return d.Key, d.KeyType
}

// PayoutResult is the payout gateway's answer for an approved withdrawal.
type PayoutResult struct {
	GatewayTransactionID string          `json:"gateway_transaction_id"`
	Status               string          `json:"gateway_status"`
	Fee                  decimal.Decimal `json:"fee"`
	NetAmount            decimal.Decimal `json:"net_amount"`
}

// Payload keys stored on withdrawal rows.
const (
	PayloadDestination     = "destination"
	PayloadFee             = "fee"
	PayloadNetAmount       = "net_amount"
	PayloadGatewayID       = "gateway_transaction_id"
	PayloadGatewayStatus   = "gateway_status"
	PayloadError           = "error"
	PayloadRejectionReason = "reason"
	PayloadOperatorID      = "operator_id"
)
