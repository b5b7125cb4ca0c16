// Package errors provides categorized errors and their HTTP status mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/strava-board/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryPayload represents malformed upstream payload errors
	CategoryPayload ErrorCategory = "payload"
	// CategoryAuthorization represents authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryUpstream represents Strava API errors
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryStorage represents persistence errors
	CategoryStorage ErrorCategory = "storage"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewMalformedPayloadError marks an activity payload missing or mistyping a required field
func NewMalformedPayloadError(field string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPayload,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       types.CodeMalformedPayload,
		Message:    fmt.Sprintf("activity payload malformed: field %q missing or wrong type", field),
		Cause:      cause,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// NewUpstreamUnavailableError marks a non-success response from the Strava API
func NewUpstreamUnavailableError(endpoint string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       types.CodeUpstreamUnavailable,
		Message:    fmt.Sprintf("strava API unavailable: %s", endpoint),
		Cause:      cause,
		Details: map[string]interface{}{
			"endpoint": endpoint,
		},
	}
}

// NewTokenExpiredError marks an expired access token with no refresh token stored.
// The user must re-authenticate.
func NewTokenExpiredError(userID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       types.CodeTokenExpiredNoRefresh,
		Message:    "access token expired and no refresh token available, re-authentication required",
		Details: map[string]interface{}{
			"userId": userID,
		},
	}
}

// NewStorageError marks a persistence operation failure
func NewStorageError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStorage,
		StatusCode: http.StatusInternalServerError,
		Code:       types.CodeStorageFailure,
		Message:    fmt.Sprintf("storage error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	// If already categorized, return it even through fmt.Errorf wraps
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	// If it's a ServiceError, convert it
	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	// Default to internal error
	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError by code
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	var category ErrorCategory
	var status int

	switch err.Code {
	case types.CodeMalformedPayload:
		category, status = CategoryPayload, http.StatusUnprocessableEntity
	case types.CodeUpstreamUnavailable:
		category, status = CategoryUpstream, http.StatusBadGateway
	case types.CodeTokenExpiredNoRefresh:
		category, status = CategoryAuthorization, http.StatusUnauthorized
	case types.CodeStorageFailure:
		category, status = CategoryStorage, http.StatusInternalServerError
	case "USER_NOT_FOUND", "RUN_NOT_FOUND", "CLUB_NOT_FOUND", "NOT_FOUND":
		category, status = CategoryNotFound, http.StatusNotFound
	case "INVALID_PARAMETER", "INVALID_INPUT":
		category, status = CategoryValidation, http.StatusBadRequest
	default:
		category, status = CategorySystem, http.StatusInternalServerError
	}

	return &CategorizedError{
		Category:   category,
		StatusCode: status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryUpstream, CategoryStorage:
		return true
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
