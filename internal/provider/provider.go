package provider

import (
	"context"
	"fmt"

	"github.com/winterlabs/multichat/internal/chat"
)

// Usage is the token accounting reported by an upstream call. All-zero when
// the upstream omitted it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is the unit returned by every adapter call: the generated text plus
// the estimated cost of producing it.
type Result struct {
	Text  string
	Cost  float64 // USD, always >= 0
	Usage Usage
}

// Adapter translates a normalized conversation into one upstream generation
// call. History holds the turns preceding the current exchange; the new user
// parts are passed separately and are not yet part of history.
//
// Implementations make exactly one upstream call per invocation. Transient
// failures surface immediately; there are no retries.
type Adapter interface {
	Generate(ctx context.Context, modelID string, history []chat.Turn, current []chat.Part, credential string) (*Result, error)
	Name() string
}

// ProviderError reports a failed upstream call: network error, non-2xx
// status, malformed payload, or empty generation.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// CredentialError reports a missing required credential. It is raised before
// any network attempt is made.
type CredentialError struct {
	Provider string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: credential missing", e.Provider)
}

// ConfigError reports absent process-wide configuration, such as the native
// family's deployment credential.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
