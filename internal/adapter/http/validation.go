package http

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"zkloan/internal/domain/verification"
	"zkloan/pkg/amount"

	"github.com/go-playground/validator/v10"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

var (
	reHex32       = regexp.MustCompile(`^[a-f0-9]{32}$`)
	reFingerprint = regexp.MustCompile(`^0x[a-f0-9]{64}$`)
)

type CustomValidator struct{ v *validator.Validate }

// NewValidator registers the domain tags. decimals is the asset precision
// used by the "amount" tag.
func NewValidator(decimals int32) *CustomValidator {
	v := validator.New()

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// account ids = 32-char lowercase hex
	_ = v.RegisterValidation("hex32", func(fl validator.FieldLevel) bool {
		return reHex32.MatchString(fl.Field().String())
	})
	// non-negative decimal in asset units, no finer than the asset allows
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := amount.FromDecimal(fl.Field().String(), decimals)
		return err == nil
	})
	// public signal = field element, decimal or 0x-hex
	_ = v.RegisterValidation("signal", func(fl validator.FieldLevel) bool {
		_, err := verification.ParseSignal(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("fingerprint", func(fl validator.FieldLevel) bool {
		return reFingerprint.MatchString(fl.Field().String())
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
		case "hex32":
			out = append(out, FieldError{Field: field, Message: "must be 32-char lowercase hex"})
		case "amount":
			out = append(out, FieldError{Field: field, Message: "must be a non-negative decimal within asset precision"})
		case "signal":
			out = append(out, FieldError{Field: field, Message: "must be a field element (decimal or 0x-hex)"})
		case "fingerprint":
			out = append(out, FieldError{Field: field, Message: "must be 0x followed by 64 lowercase hex chars"})
		case "base64":
			out = append(out, FieldError{Field: field, Message: "must be standard base64"})
		case "min":
			out = append(out, FieldError{Field: field, Message: "must have at least " + e.Param() + " items"})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
