package toolforge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupArgs struct {
	City  string `json:"city"`
	Limit int    `json:"limit,omitempty"`
}

type checkedArgs struct {
	Port int `json:"port"`
}

func (a *checkedArgs) Validate() error {
	if a.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

type passthroughArgs struct {
	X int `json:"x"`
}

func (passthroughArgs) Validate() error {
	return &ClientError{Reason: "x is never acceptable", Retryable: true}
}

func TestExtractor_ParseAndValidate_Success(t *testing.T) {
	ext, err := NewExtractor[lookupArgs](false)
	require.NoError(t, err)

	got, err := ext.ParseAndValidate([]byte(`{"city":"Paris","limit":3}`))
	require.NoError(t, err)
	assert.Equal(t, lookupArgs{City: "Paris", Limit: 3}, got)
}

func TestExtractor_ParseAndValidate_Failures(t *testing.T) {
	ext, err := NewExtractor[lookupArgs](false)
	require.NoError(t, err)

	tests := []struct {
		name       string
		args       string
		validation bool
	}{
		{name: "invalid json", args: `{"city":`},
		{name: "missing required", args: `{"limit":3}`, validation: true},
		{name: "wrong type", args: `{"city":42}`, validation: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ext.ParseAndValidate([]byte(tt.args))
			require.Error(t, err)
			assert.True(t, IsClientError(err))
			assert.Equal(t, tt.validation, errors.Is(err, ErrValidation))
		})
	}
}

func TestExtractor_ParseAndValidate_Validatable(t *testing.T) {
	ext, err := NewExtractor[checkedArgs](false)
	require.NoError(t, err)

	_, err = ext.ParseAndValidate([]byte(`{"port":0}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "port must be positive")

	got, err := ext.ParseAndValidate([]byte(`{"port":8080}`))
	require.NoError(t, err)
	assert.Equal(t, 8080, got.Port)
}

func TestExtractor_ParseAndValidate_ClientErrorPassthrough(t *testing.T) {
	ext, err := NewExtractor[passthroughArgs](false)
	require.NoError(t, err)

	_, err = ext.ParseAndValidate([]byte(`{"x":1}`))
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Retryable)
	assert.Equal(t, "x is never acceptable", ce.Reason)
}

func TestExtractor_Strict(t *testing.T) {
	ext, err := NewExtractor[lookupArgs](true)
	require.NoError(t, err)

	s := ext.Schema()
	assert.Equal(t, false, s["additionalProperties"])
	assert.Equal(t, []any{"city", "limit"}, s["required"])

	_, err = ext.ParseAndValidate([]byte(`{"city":"Paris"}`))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ext.ParseAndValidate([]byte(`{"city":"Paris","limit":1,"extra":true}`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExtractor_Schema_ReturnsCopy(t *testing.T) {
	ext, err := NewExtractor[lookupArgs](false)
	require.NoError(t, err)

	s := ext.Schema()
	s["type"] = "mutated"
	assert.Equal(t, "object", ext.Schema()["type"])
}
