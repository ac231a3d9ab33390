package dErrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	err := New(CodeRateLimited, "already claimed")
	assert.True(t, Is(err, CodeRateLimited))
	assert.False(t, Is(err, CodeNotEligible))
	assert.False(t, Is(errors.New("plain"), CodeRateLimited))
	assert.False(t, Is(nil, CodeRateLimited))
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "claim store unavailable")

	assert.True(t, Is(err, CodeUnavailable))
	assert.True(t, errors.Is(err, cause))

	// Another layer of wrapping keeps the code reachable.
	outer := fmt.Errorf("claim: %w", err)
	assert.Equal(t, CodeUnavailable, CodeOf(outer))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "gone")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("anything else")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:         http.StatusBadRequest,
		CodeInvalidBeneficiary: http.StatusBadRequest,
		CodeLivenessRequired:   http.StatusBadRequest,
		CodeNotEligible:        http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeRateLimited:        http.StatusTooManyRequests,
		CodeLedgerRejected:     http.StatusBadGateway,
		CodeIndeterminate:      http.StatusBadGateway,
		CodeUnavailable:        http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
		Code("unmapped"):       http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
