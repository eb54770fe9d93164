// Package sensory rewrites audio and video attachments into text before the
// user's chosen model sees them. A dedicated analysis call transcribes audio
// and describes video; the resulting text replaces the attachment in place.
package sensory

import (
	"context"

	"github.com/winterlabs/multichat/internal/chat"
	"github.com/winterlabs/multichat/internal/provider"
	"github.com/winterlabs/multichat/internal/registry"
)

const instruction = "ACT AS SENSORY PROCESSOR. Analyze the attached media. For audio: transcribe precisely. For video: describe visual timeline and text. Output ONLY facts, no chat."

// AnalysisMarker prefixes every substituted text part so downstream models
// can tell machine analysis from user text.
const AnalysisMarker = "[SYSTEM SENSORY ANALYSIS]:\n"

// Preprocessor runs the analysis pass through the fast multimodal native
// model, regardless of which model the user selected.
type Preprocessor struct {
	adapter provider.Adapter // always the native-family adapter
}

func New(adapter provider.Adapter) *Preprocessor {
	return &Preprocessor{adapter: adapter}
}

// NeedsAnalysis reports whether any part is an audio or video attachment.
func (p *Preprocessor) NeedsAnalysis(parts []chat.Part) bool {
	for _, part := range parts {
		if part.IsMedia() {
			return true
		}
	}
	return false
}

// Analyze sends the instruction plus ALL current parts (text and binary, so
// the analysis has full context) through the sensory model, then returns a
// copy of the parts with every audio/video attachment replaced in place by
// the marked analysis text. Other parts pass through unchanged.
//
// The credential is forwarded only when the caller's target model is also
// native-family; the adapter falls back to its process-wide key otherwise.
func (p *Preprocessor) Analyze(ctx context.Context, parts []chat.Part, credential string) ([]chat.Part, float64, error) {
	prompt := make([]chat.Part, 0, len(parts)+1)
	prompt = append(prompt, chat.TextPart(instruction))
	prompt = append(prompt, parts...)

	result, err := p.adapter.Generate(ctx, registry.SensoryModelID, nil, prompt, credential)
	if err != nil {
		return nil, 0, err
	}

	augmented := make([]chat.Part, len(parts))
	for i, part := range parts {
		if part.IsMedia() {
			augmented[i] = chat.TextPart(AnalysisMarker + result.Text)
			continue
		}
		augmented[i] = part
	}
	return augmented, result.Cost, nil
}
