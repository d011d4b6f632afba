package persist

import "errors"

var (
	// ErrInvalidIntercept is returned when Options.Intercept is set to an
	// interceptor that cannot be called, such as a nil InterceptorFunc.
	ErrInvalidIntercept = errors.New("intercept must be a callable interceptor")

	ErrUnknownMethod = errors.New("unknown method")
)
