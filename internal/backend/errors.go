package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
)

var (
	// ErrSessionExpired matches an *APIError raised after an unrecoverable 401.
	ErrSessionExpired = errors.New("backend: session expired")
	// ErrForbidden matches an *APIError for HTTP 403.
	ErrForbidden = errors.New("backend: forbidden")
)

// APIError is a failed call to the backend REST API.
type APIError struct {
	Method string
	Path   string
	// Status is 0 when no response was received.
	Status int
	Kind   auth.ErrorKind
	// Code and Message are what the server said, if anything.
	Code    string
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend %s %s", e.Method, e.Path)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrSessionExpired and ErrForbidden.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrSessionExpired:
		return e.Kind == auth.KindSessionExpired
	case ErrForbidden:
		return e.Kind == auth.KindForbidden
	}
	return false
}

// UserMessage is the fixed Spanish message for the error's kind.
func (e *APIError) UserMessage() string { return e.Kind.Message() }

// FieldError returns the first message for field, if any.
func (e *APIError) FieldError(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// KindOf returns the error kind of err, KindUnknown for non-API errors.
func KindOf(err error) auth.ErrorKind {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Kind
	}
	return auth.KindUnknown
}

// errorEnvelope is the body of a non-2xx response: {message|detail, errors?, code?}.
// detail is either a string or a list of {loc, msg} validation items.
type errorEnvelope struct {
	Message string              `json:"message"`
	Detail  json.RawMessage     `json:"detail"`
	Errors  map[string][]string `json:"errors"`
	Code    string              `json:"code"`
}

type detailItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseErrorBody fills message, code and field errors from a response body.
// Unparseable bodies are ignored; the status alone still classifies the error.
func parseErrorBody(body []byte) (message, code string, fields map[string][]string) {
	var env errorEnvelope
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return "", "", nil
	}
	message, code, fields = env.Message, env.Code, env.Errors

	if len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			if message == "" {
				message = s
			}
		} else {
			var items []detailItem
			if json.Unmarshal(env.Detail, &items) == nil {
				if fields == nil {
					fields = make(map[string][]string)
				}
				for _, it := range items {
					name := "__all__"
					if n := len(it.Loc); n > 0 {
						name = fmt.Sprint(it.Loc[n-1])
					}
					fields[name] = append(fields[name], it.Msg)
				}
				if message == "" && len(items) > 0 {
					message = items[0].Msg
				}
			}
		}
	}
	return message, code, fields
}
