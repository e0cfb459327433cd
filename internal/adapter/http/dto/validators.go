package dto

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxMoney caps request amounts well below NUMERIC(20,2).
var maxMoney = decimal.NewFromInt(1_000_000_000)

var pixKeyTypes = map[string]bool{
	"cpf":    true,
	"cnpj":   true,
	"email":  true,
	"phone":  true,
	"random": true,
	"evp":    true,
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidators(v)
	}
}

// RegisterValidators adds the custom tags to v.
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("pix_key_type", validatePixKeyType)
}

// validateMoney accepts positive decimal strings with at most two places.
func validateMoney(fl validator.FieldLevel) bool {
	d, ok := ParseMoney(fl.Field().String())
	return ok && d.IsPositive()
}

func validatePixKeyType(fl validator.FieldLevel) bool {
	return pixKeyTypes[strings.ToLower(fl.Field().String())]
}

// ParseMoney parses an amount string such as "25.50".
func ParseMoney(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return decimal.Zero, false
	}
	if d.GreaterThan(maxMoney) {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// TrimStruct trims surrounding whitespace from every exported string field
// (including *string) of a struct pointer. Values are otherwise kept as sent:
// pix keys and operator reasons are stored verbatim.
func TrimStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	trimFields(rv.Elem())
}

func trimFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(strings.TrimSpace(elem.String()))
			}
		}
	}
}
