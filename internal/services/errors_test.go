package services

import (
	"errors"
	"testing"

	"github.com/ls5986/habexa-backend/internal/clients/keepa"
	"github.com/ls5986/habexa-backend/internal/clients/spapi"
	apperrors "github.com/ls5986/habexa-backend/internal/pkg/errors"
)

func TestClassifyProviderErr_CredentialStatusesAreFatal(t *testing.T) {
	for _, status := range []int{401, 403} {
		err := classifyProviderErr("spapi", "search", &spapi.HTTPError{StatusCode: status})
		if !IsFatal(err) {
			t.Fatalf("status %d must classify fatal, got %T", status, err)
		}
	}
}

func TestClassifyProviderErr_ServerErrorsAreTransient(t *testing.T) {
	err := classifyProviderErr("keepa", "product", &keepa.HTTPError{StatusCode: 503})
	if IsFatal(err) {
		t.Fatalf("503 must not be fatal")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
}

func TestClassifyProviderErr_MalformedPayloadIsDataError(t *testing.T) {
	err := classifyProviderErr("spapi", "pricing", &spapi.DecodeError{Raw: []byte("{"), Err: errors.New("unexpected end")})
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected DataError, got %T", err)
	}
	if IsFatal(err) {
		t.Fatalf("data errors degrade items, never abort runs")
	}
}

func TestClassifyProviderErr_ThrottleSentinelSurvivesWrapping(t *testing.T) {
	err := classifyProviderErr("spapi", "fees", apperrors.ErrThrottled)
	if !errors.Is(err, apperrors.ErrThrottled) {
		t.Fatalf("sentinel must unwrap, got %v", err)
	}
	if IsFatal(err) {
		t.Fatalf("throttling is transient")
	}
}
