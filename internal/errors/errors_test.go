package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strava-board/internal/types"
)

func TestCategorizePreservesCategorizedErrors(t *testing.T) {
	base := NewUpstreamUnavailableError("/oauth/token", nil)

	catErr := Categorize(base)
	assert.Equal(t, types.CodeUpstreamUnavailable, catErr.Code)
	assert.Equal(t, http.StatusBadGateway, catErr.StatusCode)
}

func TestCategorizeSeesThroughWraps(t *testing.T) {
	// Services annotate errors with fmt.Errorf("...: %w"); the category
	// must survive the wrap or every upstream outage turns into a 500.
	base := NewUpstreamUnavailableError("/oauth/token", nil)
	wrapped := fmt.Errorf("failed to refresh token: %w", base)

	catErr := Categorize(wrapped)
	require.NotNil(t, catErr)
	assert.Equal(t, types.CodeUpstreamUnavailable, catErr.Code)
	assert.Equal(t, http.StatusBadGateway, catErr.StatusCode)
	assert.Equal(t, CategoryUpstream, catErr.Category)

	doubleWrapped := fmt.Errorf("sync failed: %w", wrapped)
	assert.Equal(t, types.CodeUpstreamUnavailable, Categorize(doubleWrapped).Code)
}

func TestCategorizeWrappedServiceError(t *testing.T) {
	svcErr := &types.ServiceError{Code: "USER_NOT_FOUND", Message: "user not found"}
	wrapped := fmt.Errorf("lookup failed: %w", svcErr)

	catErr := Categorize(wrapped)
	assert.Equal(t, CategoryNotFound, catErr.Category)
	assert.Equal(t, http.StatusNotFound, catErr.StatusCode)
}

func TestCategorizeUnknownErrorIsInternal(t *testing.T) {
	catErr := Categorize(fmt.Errorf("something broke"))
	assert.Equal(t, "INTERNAL_ERROR", catErr.Code)
	assert.Equal(t, http.StatusInternalServerError, catErr.StatusCode)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewUpstreamUnavailableError("/api/v3/activities", nil)))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", NewStorageError("upsert run", nil))))
	assert.False(t, IsRetryable(NewTokenExpiredError("user-1")))
	assert.False(t, IsRetryable(NewMalformedPayloadError("start_date", nil)))
}
