package persist

import (
	"context"
	"reflect"
)

// Error statuses handed to ErrorFunc, mirroring the text statuses of a
// browser transport.
const (
	StatusError   = "error"
	StatusAbort   = "abort"
	StatusTimeout = "timeout"
	StatusParse   = "parsererror"
)

type SuccessFunc func(data any, status int, h Handle)

type ErrorFunc func(h Handle, status string, err error)

// BeforeSendFunc runs right before the transport sends a request. Returning
// false vetoes the send.
type BeforeSendFunc func(h Handle, s *Settings) bool

// Interceptor replaces transport delegation for one call. It becomes
// responsible for eventually calling opts.Success or opts.Error.
type Interceptor interface {
	Intercept(ctx context.Context, opts *Options) (Handle, error)
}

type InterceptorFunc func(ctx context.Context, opts *Options) (Handle, error)

func (f InterceptorFunc) Intercept(ctx context.Context, opts *Options) (Handle, error) {
	return f(ctx, opts)
}

// Options is the configuration bag of one persistence call. Middleware
// decorates it in place, so every layer of the chain sees the same value.
type Options struct {
	URL    string
	Body   any
	Header map[string]string

	// Event overrides the event type published for the call; the method
	// name is used when empty.
	Event string

	Success    SuccessFunc
	Error      ErrorFunc
	BeforeSend BeforeSendFunc
	Intercept  Interceptor
}

// EventName returns the event type published for a call of method m.
func (o *Options) EventName(m Method) string {
	if o != nil && o.Event != "" {
		return o.Event
	}
	return string(m)
}

// Interceptor returns the configured interceptor, nil when none is set, or
// ErrInvalidIntercept when one is set but cannot be called.
func (o *Options) Interceptor() (Interceptor, error) {
	if o == nil || o.Intercept == nil {
		return nil, nil
	}

	v := reflect.ValueOf(o.Intercept)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			return nil, ErrInvalidIntercept
		}
	}

	return o.Intercept, nil
}

// Settings describes the request a transport is about to send.
type Settings struct {
	Method Method
	Verb   string
	URL    string
	Header map[string]string
	Body   any
}

// Handle is the transport's handle on an in-flight operation.
type Handle interface {
	// Abort asks the transport to cancel the operation. It is safe to call
	// more than once and after completion.
	Abort()
}
