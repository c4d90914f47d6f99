package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/haven/ledger/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// decimalRules are the amount tags available in binding tags
var decimalRules = map[string]func(decimal.Decimal) bool{
	"decimal_gt0":  decimal.Decimal.IsPositive,
	"decimal_gte0": func(d decimal.Decimal) bool { return !d.IsNegative() },
}

// fieldMessages explain a failed tag to API clients. %s is the tag param.
var fieldMessages = map[string]string{
	"required":     "This field is required",
	"decimal_gt0":  "Must be a positive amount",
	"decimal_gte0": "Must not be negative",
	"uuid":         "Invalid UUID format",
	"oneof":        "Must be one of: %s",
	"min":          "Must be at least %s",
	"max":          "Must be at most %s",
}

// SetupValidator installs the ledger rules on gin's binding validator
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return RegisterValidations(v)
}

// RegisterValidations makes v report JSON (or form) field names and teaches
// it the decimal amount tags.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(fieldName)

	// "required" on a struct never fails, so decimals validate as their
	// string form and a zero amount counts as missing.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok || d.IsZero() {
			return ""
		}
		return d.String()
	}, decimal.Decimal{})

	for tag, rule := range decimalRules {
		if err := v.RegisterValidation(tag, decimalRule(rule)); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// fieldName is the json or form name of a field, or its Go name when
// neither tag names it
func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}

func decimalRule(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.String {
			return false
		}
		if f.String() == "" {
			return ok(decimal.Zero)
		}
		d, err := decimal.NewFromString(f.String())
		return err == nil && ok(d)
	}
}

// FormatValidationErrors turns a binding error into a VALIDATION_ERROR
// envelope. Field details are only available for validator failures;
// anything else was a body that did not parse.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dto.Invalid("Malformed request body", requestID, nil)
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Tag:     fe.Tag(),
		})
	}
	return dto.Invalid("Request validation failed", requestID, details)
}

// HandleValidationError answers 400 with the formatted binding error
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func fieldMessage(fe validator.FieldError) string {
	msg, ok := fieldMessages[fe.Tag()]
	if !ok {
		return "Invalid value"
	}
	if fe.Tag() == "max" && fe.Kind() == reflect.String {
		msg += " characters"
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, fe.Param())
	}
	return msg
}
