package errors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("updating: %w", &ValidationError{Name: "alpha", Missing: []string{"url"}})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), `project "alpha" missing required fields: url`)

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"url"}, ve.Missing)
}

func TestBackendUnavailableErrorCarriesCause(t *testing.T) {
	err := &BackendUnavailableError{
		Backend: "postgres",
		Target:  "localhost:5432/toolbox",
		Remedy:  "make sure the server is running",
		Err:     io.EOF,
	}
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "localhost:5432/toolbox")
}

func TestMalformedNamesSource(t *testing.T) {
	err := Malformed("alpha-1a2b3c4d.json", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "alpha-1a2b3c4d.json")
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{&ValidationError{Missing: []string{"name"}}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ErrBackendUnavailable), http.StatusServiceUnavailable},
		{New(ErrInvalidInput, http.StatusConflict, "name mismatch"), http.StatusConflict},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("parse: %w", ErrInvalidInput)))
	assert.Equal(t, 2, ExitCode(ErrUnknownBackend))
	assert.Equal(t, 3, ExitCode(&BackendUnavailableError{Backend: "redis"}))
	assert.Equal(t, 1, ExitCode(io.EOF))
}
