// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Kind carries the machine-readable failure classification so automation
// callers can decide whether a retry is safe without parsing Detail.
type APIError struct {
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
	Retryable bool   `json:"retryable,omitempty"`
}

func New(kind, msg string) *APIError {
	return &APIError{Kind: kind, Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Kind   string            `json:"kind"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Kind: "invalid_input", Detail: "validation failed", Fields: fields}
}
