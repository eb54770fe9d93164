package pricing

import (
	"math"
	"testing"

	"github.com/winterlabs/multichat/internal/provider"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestNative_ProTier(t *testing.T) {
	cost := Native("gemini-3-pro-preview", provider.Usage{TotalTokens: 1000})
	if !almostEqual(cost, 0.0035) {
		t.Errorf("Expected 0.0035, got %v", cost)
	}
}

func TestNative_DefaultTier(t *testing.T) {
	cost := Native("gemini-3-flash-preview", provider.Usage{TotalTokens: 1000})
	if !almostEqual(cost, 0.0001) {
		t.Errorf("Expected 0.0001, got %v", cost)
	}
}

func TestNative_ZeroUsage(t *testing.T) {
	if cost := Native("gemini-3-pro-preview", provider.Usage{}); cost != 0 {
		t.Errorf("Expected zero cost for absent usage, got %v", cost)
	}
}

func TestCompatible_DefaultTier(t *testing.T) {
	cost := Compatible("xiaomi/mimo-v2-flash:free", provider.Usage{PromptTokens: 500, CompletionTokens: 100})
	if !almostEqual(cost, 0.000135) {
		t.Errorf("Expected 0.000135, got %v", cost)
	}
}

func TestCompatible_PremiumTier(t *testing.T) {
	cost := Compatible("openai/gpt-4o-2024-08-06", provider.Usage{PromptTokens: 1000, CompletionTokens: 1000})
	if !almostEqual(cost, 0.02) {
		t.Errorf("Expected 0.02, got %v", cost)
	}
}

func TestCompatible_MiniIsDefaultTier(t *testing.T) {
	cost := Compatible("openai/gpt-4o-mini", provider.Usage{PromptTokens: 1000, CompletionTokens: 1000})
	if !almostEqual(cost, 0.00075) {
		t.Errorf("Expected 0.00075, got %v", cost)
	}
}

func TestCompatible_ZeroUsage(t *testing.T) {
	if cost := Compatible("openai/gpt-4o-mini", provider.Usage{}); cost != 0 {
		t.Errorf("Expected zero cost for absent usage, got %v", cost)
	}
}
