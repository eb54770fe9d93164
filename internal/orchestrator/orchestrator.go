// Package orchestrator sequences one chat exchange: optional sensory
// pre-processing of audio/video attachments, then the generation call
// against the adapter matching the model's family, with the combined cost
// flowing back to the caller.
package orchestrator

import (
	"context"
	"log"

	"github.com/winterlabs/multichat/internal/chat"
	"github.com/winterlabs/multichat/internal/provider"
	"github.com/winterlabs/multichat/internal/registry"
	"github.com/winterlabs/multichat/internal/sensory"
)

type Orchestrator struct {
	native     provider.Adapter
	compatible provider.Adapter
	pre        *sensory.Preprocessor
}

// New wires both adapter families. Each adapter is wrapped in a circuit
// breaker that fails fast while its upstream is confirmed down; there are
// no retries in either direction.
func New(native, compatible provider.Adapter) *Orchestrator {
	native = withBreaker(native)
	compatible = withBreaker(compatible)
	return &Orchestrator{
		native:     native,
		compatible: compatible,
		pre:        sensory.New(native),
	}
}

// Respond runs one exchange. History holds only the turns preceding this
// exchange; the new user parts arrive separately and join history only after
// the caller commits the result.
//
// Audio/video attachments trigger the sensory pass first. If it succeeds the
// final call sees the augmented parts and the returned cost includes both
// calls. If it fails for any reason the exchange degrades to the original
// parts and the analysis error never reaches the caller. Errors from the
// final call itself propagate unmodified, with no cost to apply.
//
// Respond holds no state between calls: concurrent exchanges are safe.
func (o *Orchestrator) Respond(ctx context.Context, modelID string, history []chat.Turn, current []chat.Part, credential string) (*provider.Result, error) {
	model, err := registry.Resolve(modelID)
	if err != nil {
		return nil, err
	}

	adapter := o.compatible
	finalCred := credential
	if model.Native() {
		adapter = o.native
		finalCred = "" // native family uses the process-wide key
	}

	parts := current
	var preCost float64
	if o.pre.NeedsAnalysis(current) {
		analysisCred := ""
		if model.Native() {
			analysisCred = credential
		}
		augmented, cost, err := o.pre.Analyze(ctx, current, analysisCred)
		if err != nil {
			// Degraded mode: the selected model gets the raw parts. Any
			// partially incurred analysis cost is not billed.
			log.Printf("[orchestrator] sensory pre-processing failed, falling back to direct request: %v", err)
		} else {
			parts = augmented
			preCost = cost
		}
	}

	result, err := adapter.Generate(ctx, modelID, history, parts, finalCred)
	if err != nil {
		return nil, err
	}
	result.Cost += preCost
	return result, nil
}
