package client

import (
	"context"
	"strings"
	"testing"
)

// stubGen is a canned backend for adapter tests.
type stubGen struct {
	name  string
	out   string
	err   error
	calls int
}

func (g *stubGen) Generate(_ context.Context, _, _ string) (string, error) {
	g.calls++
	return g.out, g.err
}

func (g *stubGen) IsConfigured() bool { return true }
func (g *stubGen) Name() string       { return g.name }

func TestAdapterFallsBackOnTransientError(t *testing.T) {
	primary := &stubGen{name: "primary", err: &ProviderError{Provider: "primary", Status: 503, Message: "overloaded"}}
	fallback := &stubGen{name: "fallback", out: "from fallback"}
	a := NewProviderAdapter(primary, fallback)

	out, err := a.Generate(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "from fallback" {
		t.Errorf("out = %q", out)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback called %d times", fallback.calls)
	}
}

func TestAdapterSkipsFallbackOnNonTransientError(t *testing.T) {
	primary := &stubGen{name: "primary", err: &ProviderError{Provider: "primary", Status: 400, Message: "bad request"}}
	fallback := &stubGen{name: "fallback", out: "from fallback"}
	a := NewProviderAdapter(primary, fallback)

	_, err := a.Generate(context.Background(), "sys", "user")
	if err == nil {
		t.Fatal("expected the primary error to surface")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("err = %v", err)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times for a non-transient failure", fallback.calls)
	}
}

func TestAdapterFallsBackOnTransportError(t *testing.T) {
	primary := &stubGen{name: "primary", err: &ProviderError{Provider: "primary", Status: 0, Message: "connection refused"}}
	fallback := &stubGen{name: "fallback", out: "from fallback"}
	a := NewProviderAdapter(primary, fallback)

	out, err := a.Generate(context.Background(), "sys", "user")
	if err != nil || out != "from fallback" {
		t.Fatalf("out = %q, err = %v", out, err)
	}
}

func TestAdapterMocksWhenUnconfigured(t *testing.T) {
	a := NewProviderAdapter(nil, nil)

	out, err := a.Generate(context.Background(), "sys", "Heading: Topic\nTarget length: 80 words")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(strings.Fields(out)) < 80 {
		t.Errorf("mock body too short: %d words", len(strings.Fields(out)))
	}
}

func TestProviderErrorTransient(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, c := range cases {
		e := &ProviderError{Provider: "p", Status: c.status}
		if got := e.Transient(); got != c.want {
			t.Errorf("Transient(%d) = %v, want %v", c.status, got, c.want)
		}
	}
}
