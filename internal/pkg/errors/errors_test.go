package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeSchemaMismatch, "required key DataFeeds not found")
	assert.Equal(t, "SCHEMA_MISMATCH: required key DataFeeds not found", err.Error())

	wrapped := Wrap(fmt.Errorf("connection refused"), ErrCodeStoreUnavailable, "store find failed")
	assert.Equal(t, "STORE_UNAVAILABLE: store find failed - connection refused", wrapped.Error())
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("ingest data.json: %w", UnsupportedFileType(".json"))

	assert.True(t, errors.Is(err, ErrUnsupportedFileType))
	assert.False(t, errors.Is(err, ErrSchemaMismatch))
	assert.True(t, HasCode(err, ErrCodeUnsupportedFileType))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := StoreUnavailable(cause, "insert")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insert", err.Details["operation"])
}

func TestGetAppError(t *testing.T) {
	err := fmt.Errorf("outer: %w", SchemaMismatch("DataFeeds.item_data"))

	appErr, ok := GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeSchemaMismatch, appErr.Code)
	assert.Equal(t, "DataFeeds.item_data", appErr.Details["path"])

	_, ok = GetAppError(fmt.Errorf("plain"))
	assert.False(t, ok)
	assert.False(t, IsAppError(fmt.Errorf("plain")))
}

func TestUnsupportedFileType_NoExtension(t *testing.T) {
	err := UnsupportedFileType("")
	assert.Contains(t, err.Error(), "(none)")
}
