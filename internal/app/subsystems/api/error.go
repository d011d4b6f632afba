package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/resonatehq/syncevents/internal/transport"
	"github.com/resonatehq/syncevents/pkg/persist"
)

type Error struct {
	// Code is the http status of the error
	Code int `json:"code,omitempty"`

	// Message is the error message
	Message string `json:"message,omitempty"`

	// Details is a list of details about the error
	Details []*ErrorDetails `json:"details,omitempty"`
}

type ErrorDetails struct {
	// Type is the specific error type
	Type string `json:"@type,omitempty"`

	// Message is a human readable description of the error
	Message string `json:"message,omitempty"`

	// Domain is the domain of the error
	Domain string `json:"domain,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// OperationError describes an operation that settled through its error
// callback with the given status.
func OperationError(status string, err error) *Error {
	code := transport.Code(err)
	if code == 0 {
		switch status {
		case persist.StatusTimeout:
			code = http.StatusGatewayTimeout
		case persist.StatusAbort:
			code = 499
		default:
			code = http.StatusInternalServerError
		}
	}

	domain := "server"
	if code < 500 {
		domain = "request"
	}

	var message string
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		message = unwrapped.Error()
	}

	return &Error{
		Code:    code,
		Message: err.Error(),
		Details: []*ErrorDetails{{
			Type:    "OperationError",
			Message: message,
			Domain:  domain,
		}},
	}
}

// ServerError describes an operation the transport refused to send.
func ServerError(err error) *Error {
	return &Error{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
		Details: []*ErrorDetails{{
			Type:    "ServerError",
			Message: err.Error(),
			Domain:  "server",
		}},
	}
}

// AuthenticationError describes a request rejected for its credentials.
func AuthenticationError(err error) *Error {
	return &Error{
		Code:    http.StatusUnauthorized,
		Message: "The request is unauthorized",
		Details: []*ErrorDetails{{
			Type:    "AuthenticationError",
			Message: err.Error(),
			Domain:  "request",
		}},
	}
}

func RequestValidationError(err error) *Error {
	details := []*ErrorDetails{}

	for _, err := range parseBindingError(err) {
		details = append(details, &ErrorDetails{
			Type:    "FieldValidationError",
			Message: err,
			Domain:  "request",
		})
	}

	return &Error{
		Code:    http.StatusBadRequest,
		Message: "The request is invalid",
		Details: details,
	}
}

// Helper functions

func parseBindingError(errs ...error) []string {
	var out []string
	for _, err := range errs {
		switch typedErr := err.(type) {
		case validator.ValidationErrors:
			for _, e := range typedErr {
				out = append(out, parseFieldError(e))
			}
		default:
			out = append(out, err.Error())
		}
	}
	return out
}

func parseFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("The field %s is required.", field)
	case "min":
		param := e.Param()
		return fmt.Sprintf("The field %s must be be at least length %s.", field, param)
	case "max":
		param := e.Param()
		return fmt.Sprintf("The field %s must be be at most length %s.", field, param)
	case "alphanum":
		return fmt.Sprintf("The field %s must be alphanumeric.", field)
	default:
		return e.Error()
	}
}
