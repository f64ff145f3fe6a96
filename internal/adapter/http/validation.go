package http

import (
	"errors"
	"regexp"

	"tuition-escrow/pkg/id"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Reason  string       `json:"reason,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// classic address: base58 (ripple alphabet), leading 'r'
var reXRPAddr = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{24,34}$`)

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// request/offer/agreement ids = 32-char lowercase hex
	_ = v.RegisterValidation("id32", func(fl validator.FieldLevel) bool {
		return id.Valid(fl.Field().String())
	})
	// positive whole number of drops, as a decimal string
	_ = v.RegisterValidation("drops", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive() && d.IsInteger()
	})
	// interest rate as a fraction in [0, 1]
	_ = v.RegisterValidation("rate", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
	})
	_ = v.RegisterValidation("xrpaddr", func(fl validator.FieldLevel) bool {
		return reXRPAddr.MatchString(fl.Field().String())
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "id32":
			out = append(out, FieldError{Field: field, Message: "must be 32-char lowercase hex"})
		case "drops":
			out = append(out, FieldError{Field: field, Message: "must be a positive whole number of drops"})
		case "rate":
			out = append(out, FieldError{Field: field, Message: "must be a decimal fraction between 0 and 1"})
		case "xrpaddr":
			out = append(out, FieldError{Field: field, Message: "must be a classic ledger address"})
		case "datetime":
			out = append(out, FieldError{Field: field, Message: "must be a date formatted " + e.Param()})
		case "hexadecimal":
			out = append(out, FieldError{Field: field, Message: "must be hex"})
		case "len":
			out = append(out, FieldError{Field: field, Message: "must have length " + e.Param()})
		case "oneof":
			out = append(out, FieldError{Field: field, Message: "must be one of " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte", "max":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
