package validator

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

var (
	global   *validator.Validate
	tagRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("tag", validateTag)
	_ = v.RegisterValidation("future", validateFutureDate)
	_ = v.RegisterValidation("positive", validatePositiveInt)
	_ = v.RegisterValidation("eventtype", validateEventType)
	_ = v.RegisterValidation("eligibility", validateEligibility)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func validateTag(fl validator.FieldLevel) bool {
	return tagRegex.MatchString(fl.Field().String())
}

func validateFutureDate(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	return ok && (t.IsZero() || t.After(time.Now()))
}

func validatePositiveInt(fl validator.FieldLevel) bool {
	switch val := fl.Field().Interface().(type) {
	case int:
		return val > 0
	case int64:
		return val > 0
	}
	return false
}

func validateEventType(fl validator.FieldLevel) bool {
	switch model.EventType(fl.Field().String()) {
	case model.EventNormal, model.EventMerchandise:
		return true
	}
	return false
}

func validateEligibility(fl validator.FieldLevel) bool {
	switch model.Eligibility(fl.Field().String()) {
	case "", model.EligibilityAll, model.EligibilityIIITOnly, model.EligibilityNonIIIT:
		return true
	}
	return false
}

func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

// Var validates a single value against tag, e.g. Var(v, "email").
func Var(value any, tag string) error {
	return parseValidationErrors(Validator().Var(value, tag))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return err
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "tag":
		msg = ErrInvalidFormat
	case "required", "required_without":
		msg = ErrFieldRequired
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	case "future":
		msg = "Date must be in the future"
	case "positive":
		msg = "Value must be positive"
	case "email":
		msg = "Invalid email address"
	case "eventtype":
		msg = "Event type must be Normal or Merchandise"
	case "eligibility":
		msg = "Eligibility must be All, IIITOnly or NonIIITOnly"
	case "oneof":
		msg = "Value is not one of the allowed options"
	default:
		msg = ErrUnknownValidation
	}
	if ve.Namespace() == "" {
		return errors.New(msg)
	}
	return errors.New(msg + ": " + ve.Namespace())
}

