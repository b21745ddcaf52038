package imagegen

import (
	"bytes"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoedit/internal/domain"
)

func TestFallbackNeverStubsMissingConfig(t *testing.T) {
	for _, mode := range []FallbackMode{FallbackPropagate, FallbackStub} {
		d := NewFallbackPolicy(mode).Decide(domain.ConfigMissing([]string{"NANO_API_KEY"}))
		assert.Equal(t, ActionPropagate, d.Action, mode)
		assert.Equal(t, http.StatusInternalServerError, d.Status)
		assert.Equal(t, CodeMisconfig, d.Code)
		assert.Equal(t, []string{"NANO_API_KEY"}, d.Need)
	}
}

func TestFallbackStubsTransportFailure(t *testing.T) {
	p := NewFallbackPolicy(FallbackStub)
	d := p.Decide(domain.Result{Kind: domain.ResultTransportFailure, HTTPStatus: 503, Attempts: 3})

	assert.Equal(t, ActionStub, d.Action)
	assert.Equal(t, http.StatusOK, d.Status)
	assert.Contains(t, d.Note, "STUB_FALLBACK")
	assert.Contains(t, d.Note, "503")

	raw, err := d.Asset.Bytes()
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a)
}

func TestFallbackPropagatesTransportFailure(t *testing.T) {
	p := NewFallbackPolicy(FallbackPropagate)

	d := p.Decide(domain.Result{Kind: domain.ResultTransportFailure, HTTPStatus: 429, Body: "slow down"})
	assert.Equal(t, ActionPropagate, d.Action)
	assert.Equal(t, 429, d.Status)
	assert.Equal(t, CodeBackend, d.Code)
	assert.Equal(t, "slow down", d.Detail)

	d = p.Decide(domain.Result{Kind: domain.ResultTransportFailure})
	assert.Equal(t, http.StatusBadGateway, d.Status)
}

func TestFallbackParseFailureIsTerminal(t *testing.T) {
	d := NewFallbackPolicy(FallbackStub).Decide(domain.Result{Kind: domain.ResultParseFailure, Body: "<html>"})
	assert.Equal(t, ActionPropagate, d.Action)
	assert.Equal(t, http.StatusInternalServerError, d.Status)
	assert.Equal(t, CodeParse, d.Code)
	assert.Equal(t, "<html>", d.Detail)
}

func TestFallbackPassesSuccessAndNoAsset(t *testing.T) {
	p := NewFallbackPolicy(FallbackStub)
	assert.Equal(t, ActionPass, p.Decide(domain.Succeeded(domain.InlineAsset{})).Action)
	assert.Equal(t, ActionPass, p.Decide(domain.NoAsset("nope")).Action)
}

func TestFallbackUnknownModePropagates(t *testing.T) {
	assert.Equal(t, FallbackPropagate, NewFallbackPolicy("maybe").Mode())
}
