package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnauthenticated means there is no credential, or the API rejected it (401)
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials means login or register was rejected (401 on a public endpoint)
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrForbidden means the credential is valid but lacks access, e.g. no membership in a tenant (403)
	ErrForbidden  = errors.New("access denied")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrNetwork    = errors.New("network error")
	ErrServer     = errors.New("server error")
)

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
	RequestID  string
	kind       error
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("request failed (status %d): %s (%s)", e.StatusCode, e.Message, formatFields(e.Fields))
	}
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match the taxonomy with errors.Is
func (e *APIError) Unwrap() error {
	return e.kind
}

// ValidationError is returned before sending a request whose body fails validation
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, formatFields(e.Fields))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// errorBody is the error envelope the API uses: {"error": "..."} or {"errors": {...}}
type errorBody struct {
	Error  string          `json:"error"`
	Errors json.RawMessage `json:"errors"`
}

// newAPIError maps a response status and body onto the error taxonomy
func newAPIError(statusCode int, body []byte, public bool) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		kind:       kindForStatus(statusCode, public),
	}

	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Message = envelope.Error
		apiErr.Fields = parseFieldErrors(envelope.Errors)
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}

	return apiErr
}

func kindForStatus(statusCode int, public bool) error {
	switch {
	case statusCode == http.StatusUnauthorized && public:
		return ErrInvalidCredentials
	case statusCode == http.StatusUnauthorized:
		return ErrUnauthenticated
	case statusCode == http.StatusForbidden:
		return ErrForbidden
	case statusCode == http.StatusNotFound:
		return ErrNotFound
	case statusCode == http.StatusConflict:
		return ErrConflict
	case statusCode == http.StatusBadRequest, statusCode == http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrServer
	}
}

// parseFieldErrors accepts either {"field": "message"} or ["message", ...]
func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var byField map[string]string
	if err := json.Unmarshal(raw, &byField); err == nil {
		return byField
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		fields := make(map[string]string, len(list))
		for i, msg := range list {
			fields[fmt.Sprintf("%d", i)] = msg
		}
		return fields
	}

	return nil
}

// validationFields converts validator errors into json-name keyed messages
func validationFields(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fieldPath(fe.Namespace())] = describeTag(fe)
	}
	return fields
}

// fieldPath strips the struct name from a validator namespace: "InvoiceRequest.items[0].rate" -> "items[0].rate"
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must be a date formatted as %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func formatFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, fields[k]))
	}
	return strings.Join(parts, "; ")
}
