package embedding

import (
	"context"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.707, 0.01},
		{"empty", Vector{}, Vector{}, 0.0, 0.001},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f (±%f)", tt.a, tt.b, got, tt.expected, tt.delta)
			}
		})
	}
}

func TestHashProviderDeterministic(t *testing.T) {
	ctx := context.Background()
	p := NewHashProvider(64)

	a, err := p.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("hash embed: %v", err)
	}
	b, _ := p.Embed(ctx, "the quick brown fox")
	c, _ := p.Embed(ctx, "a different text")

	if len(a) != 64 {
		t.Errorf("expected 64 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should produce identical vectors")
		}
	}
	if CosineSimilarity(a, c) > 0.99 {
		t.Error("different texts should not produce near-identical vectors")
	}
	for _, v := range a {
		if v < -1 || v >= 1 {
			t.Fatalf("component %f out of [-1, 1)", v)
		}
	}
}

func TestHashProviderDefaultDims(t *testing.T) {
	p := NewHashProvider(0)
	if p.Dims() != DefaultHashDims {
		t.Errorf("expected default dims %d, got %d", DefaultHashDims, p.Dims())
	}
	if p.Name() != HashProviderName {
		t.Errorf("name = %q", p.Name())
	}
}
