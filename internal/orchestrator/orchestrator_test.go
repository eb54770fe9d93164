package orchestrator

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/winterlabs/multichat/internal/chat"
	"github.com/winterlabs/multichat/internal/provider"
	"github.com/winterlabs/multichat/internal/registry"
	"github.com/winterlabs/multichat/internal/sensory"
)

// mockAdapter records every call so tests can assert on what the final call
// actually received.
type mockAdapter struct {
	name    string
	results []*provider.Result
	errs    []error
	calls   []recordedCall
}

type recordedCall struct {
	modelID    string
	history    []chat.Turn
	parts      []chat.Part
	credential string
}

func (m *mockAdapter) Generate(ctx context.Context, modelID string, history []chat.Turn, current []chat.Part, credential string) (*provider.Result, error) {
	i := len(m.calls)
	m.calls = append(m.calls, recordedCall{modelID: modelID, history: history, parts: current, credential: credential})
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.results) {
		return m.results[i], nil
	}
	return &provider.Result{Text: "ok"}, nil
}

func (m *mockAdapter) Name() string { return m.name }

// newBare builds an orchestrator over raw mocks, bypassing the circuit
// breaker wrapping so call counts are deterministic per test.
func newBare(native, compatible provider.Adapter) *Orchestrator {
	return &Orchestrator{
		native:     native,
		compatible: compatible,
		pre:        sensory.New(native),
	}
}

func TestRespond_NoMediaPassThrough(t *testing.T) {
	native := &mockAdapter{name: "gemini", results: []*provider.Result{{Text: "answer", Cost: 0.001}}}
	compatible := &mockAdapter{name: "openrouter"}
	o := newBare(native, compatible)

	parts := []chat.Part{chat.TextPart("hello"), chat.BlobPart("image/png", "aW1n")}
	result, err := o.Respond(context.Background(), "gemini-3-flash-preview", nil, parts, "user-key")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if len(native.calls) != 1 {
		t.Fatalf("Expected exactly one native call, got %d", len(native.calls))
	}
	if len(compatible.calls) != 0 {
		t.Fatalf("Compatible adapter must not be called for a native model")
	}
	call := native.calls[0]
	if len(call.parts) != 2 || call.parts[0].Text != "hello" || call.parts[1].Blob == nil {
		t.Errorf("Final call must receive the original parts unaugmented, got %+v", call.parts)
	}
	if call.credential != "" {
		t.Errorf("Native final call must use the process-wide key, got credential %q", call.credential)
	}
	if result.Cost != 0.001 {
		t.Errorf("Cost must equal the final call's cost alone, got %v", result.Cost)
	}
}

func TestRespond_CompatibleFamilyRouting(t *testing.T) {
	native := &mockAdapter{name: "gemini"}
	compatible := &mockAdapter{name: "openrouter", results: []*provider.Result{{Text: "answer"}}}
	o := newBare(native, compatible)

	_, err := o.Respond(context.Background(), "openai/gpt-4o-mini", nil, []chat.Part{chat.TextPart("hi")}, "user-key")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if len(compatible.calls) != 1 || len(native.calls) != 0 {
		t.Fatalf("Expected one compatible call and no native calls, got %d/%d", len(compatible.calls), len(native.calls))
	}
	if compatible.calls[0].credential != "user-key" {
		t.Errorf("Compatible call must carry the user's credential, got %q", compatible.calls[0].credential)
	}
}

func TestRespond_AugmentationOrderAndCost(t *testing.T) {
	native := &mockAdapter{name: "gemini", results: []*provider.Result{
		{Text: "Transcript: hi", Cost: 0.0002}, // analysis call
		{Text: "final answer", Cost: 0.001},    // final call
	}}
	compatible := &mockAdapter{name: "openrouter"}
	o := newBare(native, compatible)

	parts := []chat.Part{
		chat.TextPart("hello-original"),
		chat.BlobPart("audio/mp3", "c25k"),
	}
	result, err := o.Respond(context.Background(), "gemini-3-flash-preview", nil, parts, "user-key")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if len(native.calls) != 2 {
		t.Fatalf("Expected analysis + final call, got %d calls", len(native.calls))
	}

	analysis := native.calls[0]
	if analysis.modelID != registry.SensoryModelID {
		t.Errorf("Analysis must use the sensory model, got %s", analysis.modelID)
	}
	if analysis.credential != "user-key" {
		t.Errorf("Analysis must forward the credential for a native target, got %q", analysis.credential)
	}

	final := native.calls[1]
	if len(final.parts) != 2 {
		t.Fatalf("Expected 2 final parts, got %d", len(final.parts))
	}
	if final.parts[0].Text != "hello-original" {
		t.Errorf("Text part must keep its position, got %+v", final.parts[0])
	}
	want := sensory.AnalysisMarker + "Transcript: hi"
	if final.parts[1].Text != want {
		t.Errorf("Audio part must be replaced in place, got %q", final.parts[1].Text)
	}

	if math.Abs(result.Cost-0.0012) > 1e-12 {
		t.Errorf("Expected final + analysis cost 0.0012, got %v", result.Cost)
	}
}

func TestRespond_NoCredentialForwardedToAnalysisForCompatibleTarget(t *testing.T) {
	native := &mockAdapter{name: "gemini", results: []*provider.Result{{Text: "desc", Cost: 0.0001}}}
	compatible := &mockAdapter{name: "openrouter", results: []*provider.Result{{Text: "answer", Cost: 0.0005}}}
	o := newBare(native, compatible)

	parts := []chat.Part{chat.BlobPart("video/mp4", "dmlk")}
	result, err := o.Respond(context.Background(), "openai/gpt-4o-mini", nil, parts, "user-key")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if native.calls[0].credential != "" {
		t.Errorf("Analysis for a compatible target must not forward the user's key, got %q", native.calls[0].credential)
	}
	if compatible.calls[0].credential != "user-key" {
		t.Errorf("Final compatible call must carry the user's key, got %q", compatible.calls[0].credential)
	}
	if math.Abs(result.Cost-0.0006) > 1e-12 {
		t.Errorf("Expected 0.0006 total cost, got %v", result.Cost)
	}
}

func TestRespond_GracefulDegradation(t *testing.T) {
	native := &mockAdapter{name: "gemini",
		errs:    []error{errors.New("analysis upstream down"), nil},
		results: []*provider.Result{nil, {Text: "direct answer", Cost: 0.001}},
	}
	compatible := &mockAdapter{name: "openrouter"}
	o := newBare(native, compatible)

	parts := []chat.Part{
		chat.TextPart("hello"),
		chat.BlobPart("audio/mp3", "c25k"),
	}
	result, err := o.Respond(context.Background(), "gemini-3-flash-preview", nil, parts, "")
	if err != nil {
		t.Fatalf("Preprocessing failure must not surface to the caller, got %v", err)
	}

	final := native.calls[1]
	if final.parts[1].Blob == nil || !strings.HasPrefix(final.parts[1].Blob.MimeType, "audio/") {
		t.Errorf("Final call must receive the original unaugmented parts, got %+v", final.parts[1])
	}
	if result.Cost != 0.001 {
		t.Errorf("Partially incurred analysis cost must not be billed, got %v", result.Cost)
	}
	if result.Text != "direct answer" {
		t.Errorf("Expected degraded-mode answer, got %q", result.Text)
	}
}

func TestRespond_FinalCallErrorPropagates(t *testing.T) {
	wantErr := &provider.ProviderError{Provider: "openrouter", Message: "boom"}
	native := &mockAdapter{name: "gemini"}
	compatible := &mockAdapter{name: "openrouter", errs: []error{wantErr}}
	o := newBare(native, compatible)

	_, err := o.Respond(context.Background(), "openai/gpt-4o-mini", nil, []chat.Part{chat.TextPart("hi")}, "key")
	if !errors.Is(err, wantErr) {
		t.Errorf("Final-call error must propagate unmodified, got %v", err)
	}
}

func TestRespond_UnknownModel(t *testing.T) {
	o := newBare(&mockAdapter{name: "gemini"}, &mockAdapter{name: "openrouter"})

	_, err := o.Respond(context.Background(), "no-such-model", nil, []chat.Part{chat.TextPart("hi")}, "key")
	if !errors.Is(err, registry.ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
}

func TestRespond_HistoryPassedThrough(t *testing.T) {
	native := &mockAdapter{name: "gemini", results: []*provider.Result{{Text: "ok"}}}
	o := newBare(native, &mockAdapter{name: "openrouter"})

	turn, _ := chat.NewTurn(chat.RoleUser, []chat.Part{chat.TextPart("earlier")})
	_, err := o.Respond(context.Background(), "gemini-3-flash-preview", []chat.Turn{turn}, []chat.Part{chat.TextPart("now")}, "")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if len(native.calls[0].history) != 1 || native.calls[0].history[0].FirstText() != "earlier" {
		t.Errorf("History must reach the final call untouched, got %+v", native.calls[0].history)
	}
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &mockAdapter{name: "gemini", errs: []error{
		errors.New("down"), errors.New("down"), errors.New("down"),
	}}
	wrapped := withBreaker(inner)

	for i := 0; i < 3; i++ {
		_, _ = wrapped.Generate(context.Background(), "m", nil, []chat.Part{chat.TextPart("x")}, "")
	}

	_, err := wrapped.Generate(context.Background(), "m", nil, []chat.Part{chat.TextPart("x")}, "")
	var provErr *provider.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected ProviderError while circuit is open, got %v", err)
	}
	if len(inner.calls) != 3 {
		t.Errorf("Open circuit must not reach the upstream, got %d calls", len(inner.calls))
	}
}

func TestBreaker_CredentialErrorsDoNotTrip(t *testing.T) {
	credErr := &provider.CredentialError{Provider: "openrouter"}
	inner := &mockAdapter{name: "openrouter", errs: []error{credErr, credErr, credErr, credErr}}
	wrapped := withBreaker(inner)

	for i := 0; i < 4; i++ {
		_, err := wrapped.Generate(context.Background(), "m", nil, []chat.Part{chat.TextPart("x")}, "")
		var got *provider.CredentialError
		if !errors.As(err, &got) {
			t.Fatalf("call %d: expected CredentialError to pass through, got %v", i, err)
		}
	}
	if len(inner.calls) != 4 {
		t.Errorf("Credential errors must not open the circuit, got %d upstream calls", len(inner.calls))
	}
}
