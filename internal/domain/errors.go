package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnsupportedKind     = errors.New("unsupported generation kind")
	ErrUnknownModel        = errors.New("unknown model")
)

// InsufficientCreditsError rejects a submission whose cost exceeds the
// caller's balance. Surfaced with both amounts so the caller can prompt a
// top-up; never retried automatically.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// InvalidRequestError carries a provider parameter rejection verbatim.
type InvalidRequestError struct {
	Detail string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Detail
}
