package persist

import (
	"fmt"
	"net/http"
	"strings"
)

type Method string

const (
	Create Method = "create"
	Read   Method = "read"
	Update Method = "update"
	Patch  Method = "patch"
	Delete Method = "delete"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case Create, Read, Update, Patch, Delete:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Verb returns the HTTP verb a REST transport uses for m.
func (m Method) Verb() string {
	switch m {
	case Create:
		return http.MethodPost
	case Read:
		return http.MethodGet
	case Update:
		return http.MethodPut
	case Patch:
		return http.MethodPatch
	case Delete:
		return http.MethodDelete
	default:
		panic(fmt.Sprintf("invalid method %q", string(m)))
	}
}

func (m Method) String() string {
	return string(m)
}
