// Package brcode builds EMV BR-Code payloads for PIX deposits.
package brcode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	idPayloadFormat   = "00"
	idInitiation      = "01"
	idMerchantAccount = "26"
	idCategory        = "52"
	idCurrency        = "53"
	idAmount          = "54"
	idCountry         = "58"
	idMerchantName    = "59"
	idMerchantCity    = "60"
	idAdditionalData  = "62"
	idCRC             = "63"

	gui            = "br.gov.bcb.pix"
	currencyBRL    = "986"
	singleUse      = "12"
	maxNameLength  = 25
	maxCityLength  = 15
	txIDLength     = 25
	maxFieldLength = 99
	maxAmountChars = 13
	crcFieldPrefix = idCRC + "04"
)

var (
	ErrEmptyKey      = errors.New("brcode: pix key is required")
	ErrInvalidAmount = errors.New("brcode: amount must be positive")
	ErrChecksum      = errors.New("brcode: checksum mismatch")
	ErrTruncated     = errors.New("brcode: truncated field")
	ErrFieldTooLong  = errors.New("brcode: field value exceeds 99 characters")
	ErrAmountTooLong = errors.New("brcode: amount exceeds 13 characters")
	ErrEmptyMerchant = errors.New("brcode: merchant name and city are required")
)

// Payload is an encoded deposit request.
type Payload struct {
	Text string
	TxID string
}

// BuildDepositPayload encodes a single-use payload with a fresh transaction id.
func BuildDepositPayload(key string, amount decimal.Decimal, merchantName, merchantCity string) (Payload, error) {
	return BuildWithTxID(key, amount, merchantName, merchantCity, NewTxID())
}

// BuildWithTxID is BuildDepositPayload with a caller-chosen transaction id.
// Identical inputs always produce identical output.
func BuildWithTxID(key string, amount decimal.Decimal, merchantName, merchantCity, txID string) (Payload, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Payload{}, ErrEmptyKey
	}
	if !amount.IsPositive() {
		return Payload{}, ErrInvalidAmount
	}

	amountText := amount.StringFixed(2)
	if len(amountText) > maxAmountChars {
		return Payload{}, fmt.Errorf("%w: %s", ErrAmountTooLong, amountText)
	}
	name := sanitize(merchantName, maxNameLength)
	city := sanitize(merchantCity, maxCityLength)
	if name == "" || city == "" {
		return Payload{}, ErrEmptyMerchant
	}

	var acct encoder
	acct.field("00", gui)
	acct.field("01", key)
	var txData encoder
	txData.field("05", txID)

	var e encoder
	e.field(idPayloadFormat, "01")
	e.field(idInitiation, singleUse)
	e.field(idMerchantAccount, acct.String())
	e.field(idCategory, "0000")
	e.field(idCurrency, currencyBRL)
	e.field(idAmount, amountText)
	e.field(idCountry, "BR")
	e.field(idMerchantName, name)
	e.field(idMerchantCity, city)
	e.field(idAdditionalData, txData.String())
	for _, err := range []error{acct.err, txData.err, e.err} {
		if err != nil {
			return Payload{}, err
		}
	}
	e.b.WriteString(crcFieldPrefix)

	body := e.b.String()
	return Payload{Text: body + Checksum(body), TxID: txID}, nil
}

// NewTxID returns 25 upper-case alphanumerics.
func NewTxID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:txIDLength])
}

// Validate checks the trailing CRC field of a payload.
func Validate(payload string) error {
	if len(payload) < len(crcFieldPrefix)+4 {
		return ErrTruncated
	}
	split := len(payload) - 4
	if payload[split-len(crcFieldPrefix):split] != crcFieldPrefix {
		return fmt.Errorf("%w: missing %s trailer", ErrChecksum, crcFieldPrefix)
	}
	if want := Checksum(payload[:split]); payload[split:] != want {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksum, payload[split:], want)
	}
	return nil
}

// Fields splits the top level of a payload into id -> value.
func Fields(payload string) (map[string]string, error) {
	out := make(map[string]string)
	for i := 0; i < len(payload); {
		if i+4 > len(payload) {
			return nil, ErrTruncated
		}
		id := payload[i : i+2]
		n, err := strconv.Atoi(payload[i+2 : i+4])
		if err != nil {
			return nil, fmt.Errorf("brcode: field %s length: %w", id, err)
		}
		if i+4+n > len(payload) {
			return nil, ErrTruncated
		}
		out[id] = payload[i+4 : i+4+n]
		i += 4 + n
	}
	return out, nil
}

// encoder writes id/length/value fields and keeps the first length error.
type encoder struct {
	b   strings.Builder
	err error
}

func (e *encoder) field(id, value string) {
	if e.err != nil {
		return
	}
	if len(value) > maxFieldLength {
		e.err = fmt.Errorf("%w: id %s has %d", ErrFieldTooLong, id, len(value))
		return
	}
	fmt.Fprintf(&e.b, "%s%02d%s", id, len(value), value)
}

func (e *encoder) String() string {
	return e.b.String()
}

// sanitize folds accents, upper-cases, drops non-ASCII and truncates.
func sanitize(s string, max int) string {
	foldAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToUpper(strings.TrimSpace(folded))

	var b strings.Builder
	for _, r := range folded {
		if r < 0x80 && unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > max {
		out = strings.TrimSpace(out[:max])
	}
	return out
}
