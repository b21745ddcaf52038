package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoedit/internal/domain"
	"nanoedit/internal/transport"
)

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func TestAssembleOrdersParts(t *testing.T) {
	base := domain.InlineAsset{MimeType: "image/png", Data: "QkFTRQ=="}
	ref := domain.InlineAsset{MimeType: "image/jpeg", Data: "UkVG"}

	p := Assemble("do it", base, &ref)
	require.Len(t, p.Contents, 1)
	parts := p.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "do it", parts[0].Text)
	assert.Nil(t, parts[0].InlineData)
	assert.Equal(t, "QkFTRQ==", parts[1].InlineData.Data)
	assert.Equal(t, "image/jpeg", parts[2].InlineData.MimeType)
	assert.Equal(t, []string{"TEXT", "IMAGE"}, p.GenerationConfig.ResponseModalities)

	p = Assemble("do it", base, nil)
	assert.Len(t, p.Contents[0].Parts, 2)
}

func TestAssembleWireShape(t *testing.T) {
	p := Assemble("x", domain.InlineAsset{MimeType: "image/png", Data: "AA=="}, nil)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"contents":[{"role":"user","parts":[{"text":"x"},{"inlineData":{"mimeType":"image/png","data":"AA=="}}]}],
		"generationConfig":{"responseModalities":["TEXT","IMAGE"]}
	}`, string(raw))
}

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind domain.ResultKind
		note string
		data string
		mime string
	}{
		{
			name: "camel inline data",
			body: `{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"iVBORw=="}}]}}]}`,
			kind: domain.ResultSuccess, data: "iVBORw==", mime: "image/png",
		},
		{
			name: "snake inline data",
			body: `{"candidates":[{"content":{"parts":[{"inline_data":{"mime_type":"image/jpg","data":"/9j/"}}]}}]}`,
			kind: domain.ResultSuccess, data: "/9j/", mime: "image/jpeg",
		},
		{
			name: "file data",
			body: `{"candidates":[{"content":{"parts":[{"file_data":{"data":"AAAA"}}]}}]}`,
			kind: domain.ResultSuccess, data: "AAAA", mime: "image/png",
		},
		{
			name: "non-image type sniffed as png",
			body: `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"application/octet-stream","data":"` + onePixelPNG + `"}}]}}]}`,
			kind: domain.ResultSuccess, data: onePixelPNG, mime: "image/png",
		},
		{
			name: "non-image type sniffed as jpeg",
			body: `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"text/plain","data":"/9j/4AAQSkZJRgABAQ=="}}]}}]}`,
			kind: domain.ResultSuccess, data: "/9j/4AAQSkZJRgABAQ==", mime: "image/jpeg",
		},
		{
			name: "unrecognisable bytes default to png",
			body: `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"application/octet-stream","data":"AAAA"}}]}}]}`,
			kind: domain.ResultSuccess, data: "AAAA", mime: "image/png",
		},
		{
			name: "text only",
			body: `{"candidates":[{"content":{"parts":[{"text":"I can't edit people."}]}}]}`,
			kind: domain.ResultNoAsset, note: "I can't edit people.",
		},
		{
			name: "no candidates",
			body: `{"candidates":[]}`,
			kind: domain.ResultNoAsset,
		},
		{
			name: "finish reason only",
			body: `{"candidates":[{"finishReason":"SAFETY"}]}`,
			kind: domain.ResultNoAsset, note: "SAFETY",
		},
		{
			name: "second candidate ignored",
			body: `{"candidates":[{"content":{"parts":[{"text":"no"}]}},{"content":{"parts":[{"inlineData":{"data":"AAAA"}}]}}]}`,
			kind: domain.ResultNoAsset, note: "no",
		},
		{
			name: "malformed json",
			body: `{"candidates":`,
			kind: domain.ResultParseFailure,
		},
		{
			name: "invalid base64",
			body: `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"!!!"}}]}}]}`,
			kind: domain.ResultParseFailure,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Extract([]byte(tc.body))
			assert.Equal(t, tc.kind, res.Kind)
			assert.Equal(t, tc.note, res.ModelNote)
			if tc.kind == domain.ResultSuccess {
				assert.Equal(t, tc.data, res.Asset.Data)
				assert.Equal(t, tc.mime, res.Asset.MimeType)
			}
			if tc.kind == domain.ResultParseFailure {
				assert.Equal(t, tc.body, res.Body)
			}
		})
	}
}

func TestExtractTruncatesParseFailureBody(t *testing.T) {
	res := Extract([]byte(strings.Repeat("x", 5000)))
	assert.Equal(t, domain.ResultParseFailure, res.Kind)
	assert.Len(t, res.Body, domain.DiagnosticLimit)
}

func TestClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k-123", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"text":"swap"`)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"AAAA"}}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, APIKey: "k-123"})
	res, err := c.Generate(context.Background(), Assemble("swap", domain.InlineAsset{MimeType: "image/png", Data: "AA=="}, nil))
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "AAAA", res.Asset.Data)
	assert.Equal(t, 1, res.Attempts)
}

func TestClientGenerateTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"denied"}}`))
	}))
	defer srv.Close()

	tr := transport.NewClient(transport.Options{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})
	c := NewClient(Options{Endpoint: srv.URL, APIKey: "k", Transport: tr})
	res, err := c.Generate(context.Background(), GenerateContentRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTransportFailure, res.Kind)
	assert.Equal(t, http.StatusForbidden, res.HTTPStatus)
	assert.Contains(t, res.Body, "denied")
	assert.Equal(t, 1, res.Attempts)
}
