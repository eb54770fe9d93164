// Package pricing estimates the USD cost of an upstream call from its token
// usage. The rates are coarse policy constants, not billing-grade figures:
// the native family bills a flat per-token rate in two tiers, the compatible
// family bills prompt and completion tokens separately per thousand.
package pricing

import (
	"strings"

	"github.com/winterlabs/multichat/internal/provider"
)

// Native-family flat rates, USD per token.
const (
	nativeProRate     = 0.0000035 // "pro" high-capability tier
	nativeDefaultRate = 0.0000001 // flash and everything else
)

// Compatible-family rates, USD per 1k tokens.
const (
	premiumInputRate  = 0.005
	premiumOutputRate = 0.015
	defaultInputRate  = 0.00015
	defaultOutputRate = 0.0006
)

// Native prices a native-family call: totalTokens times a flat per-token
// rate, with the "pro" tier selected by a model-id substring check.
func Native(modelID string, u provider.Usage) float64 {
	rate := nativeDefaultRate
	if strings.Contains(modelID, "pro") {
		rate = nativeProRate
	}
	return float64(u.TotalTokens) * rate
}

// Compatible prices a compatible-family call from prompt and completion
// counts. Full-size gpt-4o is the distinguished high-cost tier; everything
// else, mini included, gets the default rates. Absent usage prices to zero.
func Compatible(modelID string, u provider.Usage) float64 {
	inputRate, outputRate := defaultInputRate, defaultOutputRate
	if strings.Contains(modelID, "gpt-4o") && !strings.Contains(modelID, "mini") {
		inputRate, outputRate = premiumInputRate, premiumOutputRate
	}
	return (float64(u.PromptTokens)/1000)*inputRate + (float64(u.CompletionTokens)/1000)*outputRate
}
