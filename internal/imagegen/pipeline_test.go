package imagegen

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoedit/internal/domain"
	"nanoedit/internal/metrics"
	"nanoedit/internal/providers/genai"
)

type fakeBackend struct {
	calls    int
	payloads []genai.GenerateContentRequest
	result   domain.Result
	err      error
}

func (f *fakeBackend) Generate(_ context.Context, p genai.GenerateContentRequest) (domain.Result, error) {
	f.calls++
	f.payloads = append(f.payloads, p)
	return f.result, f.err
}

const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func TestPipelineRemove(t *testing.T) {
	backend := &fakeBackend{result: domain.Succeeded(domain.InlineAsset{MimeType: "image/png", Data: "AAAA"})}
	mc := metrics.NewCollector()
	p := NewPipeline(PipelineOptions{Resolver: NewResolver(ResolverOptions{}), Backend: backend, Metrics: mc})

	res, err := p.Run(context.Background(), domain.EditRequest{
		Mode:   domain.ModeRemove,
		Base:   domain.ParseImageRef("data:image/png;base64," + tinyPNG),
		Target: "the lamp",
	})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "AAAA", res.Asset.Data)

	require.Len(t, backend.payloads, 1)
	parts := backend.payloads[0].Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "Remove the lamp")
	assert.Equal(t, tinyPNG, parts[1].InlineData.Data)
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.PipelineCount("remove", "success")))
}

func TestPipelineInsertSendsReferenceThird(t *testing.T) {
	backend := &fakeBackend{result: domain.NoAsset("refused")}
	p := NewPipeline(PipelineOptions{Resolver: NewResolver(ResolverOptions{}), Backend: backend})

	ref := domain.ParseImageRef("data:image/jpeg;base64,/9j/")
	res, err := p.Run(context.Background(), domain.EditRequest{
		Mode:      domain.ModeInsert,
		Base:      domain.ParseImageRef(tinyPNG),
		Reference: &ref,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultNoAsset, res.Kind)
	assert.Equal(t, "refused", res.ModelNote)

	parts := backend.payloads[0].Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0].Text, "second image")
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	assert.Equal(t, "image/jpeg", parts[2].InlineData.MimeType)
}

func TestPipelineMissingConfigShortCircuits(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPipeline(PipelineOptions{
		Resolver:    NewResolver(ResolverOptions{}),
		Backend:     backend,
		MissingKeys: []string{"NANO_API_URL", "NANO_API_KEY"},
	})

	res, err := p.Run(context.Background(), domain.EditRequest{Mode: domain.ModeInsert})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultConfigMissing, res.Kind)
	assert.Equal(t, []string{"NANO_API_URL", "NANO_API_KEY"}, res.MissingKeys)
	assert.Zero(t, backend.calls)
}

func TestPipelineValidationBeforeBackend(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPipeline(PipelineOptions{Resolver: NewResolver(ResolverOptions{}), Backend: backend})

	_, err := p.Run(context.Background(), domain.EditRequest{
		Mode: domain.ModeReplace,
		Base: domain.ParseImageRef("https://example.com/scene.png"),
	})
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeMissingInsert, de.Code)
	assert.Zero(t, backend.calls)
}

func TestPipelineResolveFailure(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPipeline(PipelineOptions{Resolver: NewResolver(ResolverOptions{}), Backend: backend})

	_, err := p.Run(context.Background(), domain.EditRequest{Mode: domain.ModeRemove, Base: domain.ParseImageRef("%%%")})
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeUnsupportedInput, de.Code)
	assert.Zero(t, backend.calls)
}
