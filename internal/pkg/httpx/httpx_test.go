package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
	"time"
)

type statusErr struct {
	code int
}

func (e *statusErr) Error() string       { return "provider error" }
func (e *statusErr) HTTPStatusCode() int { return e.code }

func TestIsRetryableError_TransportFailuresRetry(t *testing.T) {
	refused := &url.Error{
		Op:  "Get",
		URL: "https://provider.invalid/items",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
	}
	reset := &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}

	for _, err := range []error{refused, reset, context.DeadlineExceeded} {
		if !IsRetryableError(err) {
			t.Fatalf("expected %v to be retryable", err)
		}
	}
}

func TestIsRetryableError_StatusCodes(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{408, true},
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(&statusErr{code: tc.code}); got != tc.want {
			t.Fatalf("status %d: retryable=%v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsRetryableError_NonTransportErrorsDoNot(t *testing.T) {
	for _, err := range []error{nil, errors.New("decode failed"), context.Canceled} {
		if IsRetryableError(err) {
			t.Fatalf("expected %v not to be retryable", err)
		}
	}
}

func TestRetryAfterDuration_HonorsHeaderAndCap(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"5"}}}
	if got := RetryAfterDuration(resp, time.Second, 30*time.Second); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
	if got := RetryAfterDuration(resp, time.Second, 2*time.Second); got != 2*time.Second {
		t.Fatalf("expected cap at 2s, got %v", got)
	}
	if got := RetryAfterDuration(nil, time.Second, 30*time.Second); got != time.Second {
		t.Fatalf("expected fallback 1s, got %v", got)
	}
}
