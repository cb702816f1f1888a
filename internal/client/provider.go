package client

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// TextGenerator defines the interface for text-generation backends.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	IsConfigured() bool
	Name() string
}

// ProviderError is a typed failure from a generation backend. Validation
// failures of generated content are not ProviderErrors; only transport and
// API-level faults are.
type ProviderError struct {
	Provider string
	Status   int // 0 for transport errors
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Transient reports whether a retry against another backend is worthwhile.
func (e *ProviderError) Transient() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// ProviderAdapter fronts a primary backend with a single-shot fallback.
// The fallback is attempted once on outright provider error, independent of
// any validation-retry counting done by the caller.
type ProviderAdapter struct {
	primary  TextGenerator
	fallback TextGenerator
}

// NewProviderAdapter wires primary and fallback backends. Either may be nil
// or unconfigured; when both are, a deterministic mock serves all calls.
func NewProviderAdapter(primary, fallback TextGenerator) *ProviderAdapter {
	return &ProviderAdapter{primary: primary, fallback: fallback}
}

func (a *ProviderAdapter) Name() string { return "adapter" }

func (a *ProviderAdapter) IsConfigured() bool {
	return (a.primary != nil && a.primary.IsConfigured()) ||
		(a.fallback != nil && a.fallback.IsConfigured())
}

// Generate calls the primary backend, falling back once on transient
// provider error. Non-transient failures (bad request, auth) would fail the
// same way against the fallback, so they surface immediately.
func (a *ProviderAdapter) Generate(ctx context.Context, system, user string) (string, error) {
	if !a.IsConfigured() {
		return MockGenerate(system, user), nil
	}

	var primaryErr error
	if a.primary != nil && a.primary.IsConfigured() {
		out, err := a.primary.Generate(ctx, system, user)
		if err == nil {
			return out, nil
		}
		var pe *ProviderError
		if errors.As(err, &pe) && !pe.Transient() {
			return "", err
		}
		primaryErr = err
		log.Printf("Provider %s failed, trying fallback: %v", a.primary.Name(), err)
	}

	if a.fallback != nil && a.fallback.IsConfigured() {
		out, err := a.fallback.Generate(ctx, system, user)
		if err == nil {
			return out, nil
		}
		if primaryErr != nil {
			return "", fmt.Errorf("primary: %v; fallback: %w", primaryErr, err)
		}
		return "", err
	}

	return "", primaryErr
}
