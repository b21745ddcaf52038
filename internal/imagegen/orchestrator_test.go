package imagegen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoedit/internal/domain"
)

type scriptedRunner struct {
	calls   []domain.EditRequest
	results []domain.Result
	errs    []error
}

func (s *scriptedRunner) Run(_ context.Context, req domain.EditRequest) (domain.Result, error) {
	i := len(s.calls)
	s.calls = append(s.calls, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.results[i], err
}

func TestOrchestratorFeedsOutputForward(t *testing.T) {
	removed := domain.InlineAsset{MimeType: "image/png", Data: "UkVNT1ZFRA=="}
	final := domain.InlineAsset{MimeType: "image/png", Data: "RklOQUw="}
	runner := &scriptedRunner{results: []domain.Result{domain.Succeeded(removed), domain.Succeeded(final)}}

	steps := RemoveInsert(ChainInput{
		Scene:  domain.ParseImageRef("https://example.com/scene.png"),
		Person: domain.ParseImageRef("https://example.com/person.png"),
	})
	res, err := NewOrchestrator(runner, nil).Run(context.Background(), steps)
	require.NoError(t, err)
	assert.Equal(t, final, res.Asset)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, domain.ModeRemove, runner.calls[0].Mode)
	assert.Equal(t, DefaultRemovePrompt, runner.calls[0].PromptOverride)
	assert.Equal(t, domain.ModeInsert, runner.calls[1].Mode)
	assert.Equal(t, domain.DataURIRef(removed), runner.calls[1].Base)
	assert.Equal(t, "https://example.com/person.png", runner.calls[1].Reference.Raw)
	assert.Equal(t, DefaultInsertPrompt, runner.calls[1].PromptOverride)
}

func TestOrchestratorHaltsOnFailedRemove(t *testing.T) {
	failure := domain.Result{Kind: domain.ResultTransportFailure, HTTPStatus: 503, Body: "busy", Attempts: 3}
	runner := &scriptedRunner{results: []domain.Result{failure, domain.Succeeded(domain.InlineAsset{})}}

	scene := domain.ParseImageRef("data:image/png;base64," + tinyPNG)
	person := domain.ParseImageRef(tinyPNG)
	steps := []domain.ChainStep{
		{Operation: domain.ModeRemove, Input: domain.EditRequest{Base: scene}},
		{Operation: domain.ModeInsert, Input: domain.EditRequest{Base: scene, Reference: &person}},
	}

	res, err := NewOrchestrator(runner, nil).Run(context.Background(), steps)
	require.NoError(t, err)
	assert.Equal(t, failure, res)
	assert.Len(t, runner.calls, 1, "insert must not run after a failed remove")
}

func TestOrchestratorHaltsOnNoAsset(t *testing.T) {
	runner := &scriptedRunner{results: []domain.Result{domain.NoAsset("cannot"), {}}}
	res, err := NewOrchestrator(runner, nil).Run(context.Background(), RemoveInsert(ChainInput{}))
	require.NoError(t, err)
	assert.Equal(t, domain.NoAsset("cannot"), res)
	assert.Len(t, runner.calls, 1)
}

func TestOrchestratorHaltsOnRequestFault(t *testing.T) {
	fault := domain.Validation(domain.CodeMissingImage, "image is required")
	runner := &scriptedRunner{results: []domain.Result{{}, {}}, errs: []error{fault}}

	_, err := NewOrchestrator(runner, nil).Run(context.Background(), RemoveInsert(ChainInput{}))
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeMissingImage, de.Code)
	assert.Len(t, runner.calls, 1)
}

func TestOrchestratorEmptyChain(t *testing.T) {
	_, err := NewOrchestrator(&scriptedRunner{}, nil).Run(context.Background(), nil)
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeEmptyChain, de.Code)
}

func TestOrchestratorWithPipeline(t *testing.T) {
	backend := &fakeBackend{result: domain.Result{Kind: domain.ResultTransportFailure, HTTPStatus: 500}}
	p := NewPipeline(PipelineOptions{Resolver: NewResolver(ResolverOptions{}), Backend: backend})

	res, err := NewOrchestrator(p, nil).Run(context.Background(), RemoveInsert(ChainInput{
		Scene:  domain.ParseImageRef(tinyPNG),
		Person: domain.ParseImageRef(tinyPNG),
	}))
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTransportFailure, res.Kind)
	assert.Equal(t, 1, backend.calls)
}

func TestOrchestratorTraceSeesEveryStep(t *testing.T) {
	removed := domain.InlineAsset{MimeType: "image/png", Data: "UkVNT1ZFRA=="}
	runner := &scriptedRunner{results: []domain.Result{domain.Succeeded(removed), domain.NoAsset("refused")}}

	var ops []domain.Mode
	var kinds []domain.ResultKind
	res, err := NewOrchestrator(runner, nil).RunTraced(context.Background(), RemoveInsert(ChainInput{}), func(i int, op domain.Mode, r domain.Result) {
		assert.Equal(t, len(ops), i)
		ops = append(ops, op)
		kinds = append(kinds, r.Kind)
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultNoAsset, res.Kind)
	assert.Equal(t, []domain.Mode{domain.ModeRemove, domain.ModeInsert}, ops)
	assert.Equal(t, []domain.ResultKind{domain.ResultSuccess, domain.ResultNoAsset}, kinds)
}
