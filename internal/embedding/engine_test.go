package embedding

import (
	"math"
	"testing"
)

func TestNewEngineUnsupportedProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "cohere"

	_, err := NewEngine(cfg)
	if err == nil {
		t.Fatal("Expected error for unsupported provider")
	}
}

func TestNewEngineOllama(t *testing.T) {
	cfg := DefaultConfig()

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if engine.Name() != "ollama:nomic-embed-text" {
		t.Errorf("Name = %q, want ollama:nomic-embed-text", engine.Name())
	}
	if engine.Dimensions() != 768 {
		t.Errorf("Dimensions = %d, want 768", engine.Dimensions())
	}
}

func TestNewEngineGeminiRequiresKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "gemini"
	cfg.GenAIAPIKey = ""

	_, err := NewEngine(cfg)
	if err == nil {
		t.Fatal("Expected error for gemini without API key")
	}
}

func TestDotProduct(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"parallel", []float32{1, 2, 3}, []float32{1, 2, 3}, 14},
		{"negative", []float32{1, -1}, []float32{1, 1}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{4, 5, 6}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DotProduct(tt.a, tt.b)
			if err != nil {
				t.Fatalf("DotProduct failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DotProduct = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestDotProductDimensionMismatch(t *testing.T) {
	_, err := DotProduct([]float32{1, 2}, []float32{1, 2, 3})
	if err == nil {
		t.Fatal("Expected error for dimension mismatch")
	}
}

// TestDotProductUnnormalized pins the magnitude sensitivity: a vector twice
// as long scores twice as high against the same query. Ranking depends on it.
func TestDotProductUnnormalized(t *testing.T) {
	query := []float32{1, 1}
	short := []float32{1, 1}
	long := []float32{2, 2}

	shortScore, _ := DotProduct(query, short)
	longScore, _ := DotProduct(query, long)

	if longScore != 2*shortScore {
		t.Errorf("Expected magnitude to affect score: short=%f long=%f", shortScore, longScore)
	}
}
