package imagegen

import (
	"context"
	"fmt"

	"nanoedit/internal/domain"
	"nanoedit/internal/infra"
)

// Defaults used by RemoveInsert when the caller leaves a prompt empty.
const (
	DefaultRemovePrompt = "remove the male actor from the cube"
	DefaultInsertPrompt = "place the person naturally where the actor was, matching lighting and perspective"
)

// Orchestrator runs chain steps strictly in order, feeding each step's
// asset into the next step's base image.
type Orchestrator struct {
	runner Runner
	logger *infra.Logger
}

// NewOrchestrator wraps runner.
func NewOrchestrator(runner Runner, logger *infra.Logger) *Orchestrator {
	return &Orchestrator{runner: runner, logger: infra.OrDiscard(logger)}
}

// StepFunc observes each completed step, including the one that halts a
// chain. index is zero based.
type StepFunc func(index int, operation domain.Mode, res domain.Result)

// Run stops at the first step that errors or does not succeed and returns
// that step's outcome unchanged. Later steps never run.
func (o *Orchestrator) Run(ctx context.Context, steps []domain.ChainStep) (domain.Result, error) {
	return o.RunTraced(ctx, steps, nil)
}

// RunTraced is Run with onStep called after every step that returned a
// result.
func (o *Orchestrator) RunTraced(ctx context.Context, steps []domain.ChainStep, onStep StepFunc) (domain.Result, error) {
	if len(steps) == 0 {
		return domain.Result{}, domain.Validation(domain.CodeEmptyChain, "chain has no steps")
	}

	var prev domain.Result
	for i, step := range steps {
		req := step.Input
		req.Mode = step.Operation
		if i > 0 {
			req.Base = domain.DataURIRef(prev.Asset)
		}

		res, err := o.runner.Run(ctx, req)
		if err != nil {
			o.logger.Debug().Int("step", i).Str("operation", string(step.Operation)).Err(err).Msg("imagegen: chain step rejected")
			return domain.Result{}, fmt.Errorf("imagegen: chain step %d (%s): %w", i+1, step.Operation, err)
		}
		if onStep != nil {
			onStep(i, step.Operation, res)
		}
		if !res.OK() {
			o.logger.Info().
				Int("step", i).
				Str("operation", string(step.Operation)).
				Str("outcome", res.Kind.String()).
				Msg("imagegen: chain halted")
			return res, nil
		}
		prev = res
	}
	return prev, nil
}

// ChainInput is the caller side of a remove-then-insert job.
type ChainInput struct {
	Scene        domain.ImageRef
	Person       domain.ImageRef
	Target       string
	BoundingBox  *domain.BoundingBox
	RemovePrompt string
	InsertPrompt string
}

// RemoveInsert builds the two-step chain. The insert step's Base is filled
// in by the Orchestrator.
func RemoveInsert(in ChainInput) []domain.ChainStep {
	removePrompt := in.RemovePrompt
	if removePrompt == "" {
		removePrompt = DefaultRemovePrompt
	}
	insertPrompt := in.InsertPrompt
	if insertPrompt == "" {
		insertPrompt = DefaultInsertPrompt
	}
	person := in.Person
	return []domain.ChainStep{
		{
			Operation: domain.ModeRemove,
			Input: domain.EditRequest{
				Base:           in.Scene,
				Target:         in.Target,
				BoundingBox:    in.BoundingBox,
				PromptOverride: removePrompt,
			},
		},
		{
			Operation: domain.ModeInsert,
			Input: domain.EditRequest{
				Base:           in.Scene,
				Reference:      &person,
				Target:         in.Target,
				BoundingBox:    in.BoundingBox,
				PromptOverride: insertPrompt,
			},
		},
	}
}
