package dto

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	Unauthorized       = "UNAUTHORIZED"
	InternalError      = "Service is currently unavailable. Please try again later."
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code  string `json:"code"`
	Desc  string `json:"desc"`
	Field string `json:"field,omitempty"`
}

func ErrorResponse(c *ginext.Context, status int, code, desc string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func UnauthorizedError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthorized, desc)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func ValidationError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusUnprocessableEntity, FieldIncorrect, desc)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusUnprocessableEntity
	case errs.KindState, errs.KindCapacity, errs.KindConflict, errs.KindDuplicate:
		return http.StatusConflict
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError renders err; anything outside the taxonomy becomes a 500.
func ServiceError(c *ginext.Context, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		InternalServerError(c)
		return
	}
	c.AbortWithStatusJSON(StatusFor(e.Kind), Response{
		Status: "error",
		Error: &Error{
			Code:  e.Code,
			Desc:  e.Msg,
			Field: e.Field,
		},
	})
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
