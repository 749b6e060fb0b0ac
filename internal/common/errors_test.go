package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", ValidationErrors{{Field: "topic", Message: "is required"}}, http.StatusBadRequest},
		{"invalid input", fmt.Errorf("bad: %w", ErrInvalidInput), http.StatusBadRequest},
		{"not found", fmt.Errorf("job x: %w", ErrNotFound), http.StatusNotFound},
		{"rate limited", NewOracleRateLimited("openai", errors.New("429")), http.StatusTooManyRequests},
		{"unavailable", NewOracleUnavailable("openai", errors.New("503")), http.StatusBadGateway},
		{"all failed", &AllOraclesFailedError{}, http.StatusBadGateway},
		{"timeout", &TimeoutError{Op: "pipeline", Limit: time.Minute}, http.StatusGatewayTimeout},
		{"overloaded", fmt.Errorf("%w: queue full", ErrOverloaded), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestOracleError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("draft: %w", NewOracleUnavailable("anthropic", cause))

	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.NotErrorIs(t, err, ErrOracleRateLimited)
	assert.ErrorIs(t, err, cause)

	var oe *OracleError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "anthropic", oe.Oracle)
	assert.Contains(t, err.Error(), `oracle "anthropic"`)
}

func TestAllOraclesFailedError(t *testing.T) {
	err := &AllOraclesFailedError{
		Failures: map[string]error{"b": errors.New("down"), "a": errors.New("slow")},
		Order:    []string{"a", "b"},
	}
	assert.ErrorIs(t, err, ErrAllOraclesFailed)
	assert.Equal(t, "all oracles failed: a: slow; b: down", err.Error())

	assert.Equal(t, "all oracles failed: no oracles configured", (&AllOraclesFailedError{}).Error())
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Op: "stage draft", Limit: 3 * time.Minute}
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "stage draft: deadline exceeded (limit 3m0s)", err.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewAppError("CONFIG_ERROR", "parse", ErrInvalidInput)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "CONFIG_ERROR: parse: invalid input", err.Error())
	assert.Nil(t, WrapError(nil, "ignored"))
}

type sample struct {
	Name  string   `json:"name" validate:"notblank"`
	Tone  string   `json:"tone" validate:"omitempty,tone"`
	Items []string `json:"items" validate:"min=1"`
}

func TestValidateStruct(t *testing.T) {
	err := ValidateStruct(sample{Name: "  ", Tone: "shouty"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var ve ValidationErrors
	require.ErrorAs(t, err, &ve)
	fields := map[string]string{}
	for _, f := range ve {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "is required", fields["name"])
	assert.Contains(t, fields["tone"], "must be one of")
	assert.Equal(t, "must contain at least 1 items", fields["items"])

	assert.NoError(t, ValidateStruct(sample{Name: "ok", Items: []string{"x"}}))
}

func TestValidatorMerge(t *testing.T) {
	v := NewValidator()
	assert.False(t, v.Merge(errors.New("plain")))
	assert.True(t, v.Merge(ValidationErrors{{Field: "a", Message: "bad"}}))
	v.Add("b", 1, "worse")
	require.Len(t, v.Errors(), 2)
	assert.ErrorIs(t, v.Error(), ErrValidation)
	assert.NoError(t, NewValidator().Error())
}
