package registry

import (
	"errors"
	"testing"
)

func TestResolve_Known(t *testing.T) {
	m, err := Resolve("gemini-3-pro-preview")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !m.Native() {
		t.Error("gemini-3-pro-preview should be native family")
	}
}

func TestResolve_CompatibleFamily(t *testing.T) {
	for _, id := range []string{"openai/gpt-4o-mini", "anthropic/claude-3-haiku", "xiaomi/mimo-v2-flash:free"} {
		m, err := Resolve(id)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", id, err)
		}
		if m.Native() {
			t.Errorf("%s should not be native family", id)
		}
	}
}

func TestResolve_Unknown(t *testing.T) {
	_, err := Resolve("no-such-model")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
}

func TestList_ContainsDefault(t *testing.T) {
	found := false
	for _, m := range List() {
		if m.ID == DefaultModelID {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Default model %s missing from catalog", DefaultModelID)
	}
}
