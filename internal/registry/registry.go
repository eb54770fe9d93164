package registry

import (
	"errors"
	"fmt"
)

var ErrUnknownModel = errors.New("unknown model")

// ProviderGoogle marks the native structured-content family. Every other
// provider tag routes through the OpenAI-compatible family.
const ProviderGoogle = "google"

const (
	// DefaultModelID is assigned to newly created chats.
	DefaultModelID = "gemini-3-flash-preview"

	// SensoryModelID handles the internal transcription/description pass
	// for audio and video attachments, regardless of the user's model.
	SensoryModelID = "gemini-3-flash-preview"
)

// Model is a static catalog entry mapping a model id to its upstream family.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Provider    string `json:"provider"`
}

// Native reports whether the model belongs to the native (Google) family.
func (m Model) Native() bool {
	return m.Provider == ProviderGoogle
}

var catalog = []Model{
	{
		ID:          "gemini-3-flash-preview",
		Name:        "Gemini 3 Flash",
		Description: "Ultra-fast multimodal model via Google.",
		Category:    "Google",
		Provider:    "google",
	},
	{
		ID:          "gemini-3-pro-preview",
		Name:        "Gemini 3 Pro preview",
		Description: "Top-tier reasoning and multimodal understanding.",
		Category:    "Premium",
		Provider:    "google",
	},
	{
		ID:          "openai/gpt-4o-2024-08-06",
		Name:        "GPT-4o",
		Description: "Omni model, versatile and intelligent.",
		Category:    "OpenAI",
		Provider:    "openai",
	},
	{
		ID:          "openai/gpt-4o-mini",
		Name:        "GPT-4o mini",
		Description: "Fast and smart companion model.",
		Category:    "OpenAI",
		Provider:    "openai",
	},
	{
		ID:          "anthropic/claude-3-haiku",
		Name:        "Claude 3 Haiku",
		Description: "Blazing fast and compact model from Anthropic.",
		Category:    "Premium",
		Provider:    "openai",
	},
	{
		ID:          "x-ai/grok-4.1-fast",
		Name:        "Grok 4.1 Fast",
		Description: "High-speed intelligence from xAI via OpenRouter.",
		Category:    "Other",
		Provider:    "openai",
	},
	{
		ID:          "xiaomi/mimo-v2-flash:free",
		Name:        "Xiaomi: MiMo-V2-Flash",
		Description: "Efficient Xiaomi model (free)",
		Category:    "Other",
		Provider:    "xiaomi",
	},
}

var byID = func() map[string]Model {
	m := make(map[string]Model, len(catalog))
	for _, entry := range catalog {
		m[entry.ID] = entry
	}
	return m
}()

// Resolve looks up a model id in the static catalog.
func Resolve(id string) (Model, error) {
	m, ok := byID[id]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return m, nil
}

// List returns the catalog in declaration order.
func List() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}
