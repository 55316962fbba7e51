package llm

import (
	"context"
	"testing"
)

type fakeProvider struct{ name string }

func (f fakeProvider) Complete(_ context.Context, _ *Request) (<-chan *Chunk, error) { return nil, nil }
func (f fakeProvider) Name() string                                                  { return f.name }
func (f fakeProvider) SupportsTools() bool                                           { return false }

func TestRegistryGetReturnsRegisteredProvider(t *testing.T) {
	r := NewRegistry(fakeProvider{name: "openai"}, fakeProvider{name: "anthropic"})

	p, ok := r.Get("anthropic")
	if !ok || p.Name() != "anthropic" {
		t.Fatalf("expected to find anthropic provider, got %v, %v", p, ok)
	}

	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected missing provider to return ok=false")
	}
}
