package services

import (
	"errors"
	"fmt"

	"github.com/ls5986/habexa-backend/internal/clients/keepa"
	"github.com/ls5986/habexa-backend/internal/clients/spapi"
	"github.com/ls5986/habexa-backend/internal/pkg/httpx"
)

// ProviderError wraps a transient provider failure that already exhausted its
// retries. Affected items degrade to "unavailable" for that data type; the
// run keeps going.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DataError wraps a malformed provider payload. Treated like ProviderError
// for the affected items, but logged with the raw payload for debugging.
type DataError struct {
	Provider string
	Op       string
	Raw      []byte
	Err      error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s %s: malformed payload: %v", e.Provider, e.Op, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// FatalError aborts the run: configuration or credential failures mean no
// item could succeed.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// classifyProviderErr maps a raw client error into the pipeline taxonomy.
// Credential rejections are fatal; malformed payloads are data errors;
// everything else is a (post-retry) provider error.
func classifyProviderErr(provider, op string, err error) error {
	if err == nil {
		return nil
	}

	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) {
		switch sc.HTTPStatusCode() {
		case 401, 403:
			return &FatalError{Err: fmt.Errorf("%s credentials rejected: %w", provider, err)}
		}
	}

	var spapiDecode *spapi.DecodeError
	if errors.As(err, &spapiDecode) {
		return &DataError{Provider: provider, Op: op, Raw: spapiDecode.Raw, Err: err}
	}
	var keepaDecode *keepa.DecodeError
	if errors.As(err, &keepaDecode) {
		return &DataError{Provider: provider, Op: op, Raw: keepaDecode.Raw, Err: err}
	}

	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// IsFatal reports whether the run must abort.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
