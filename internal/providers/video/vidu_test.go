package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoedit/internal/domain"
	"nanoedit/internal/transport"
)

func TestViduGenerateUsesDefaults(t *testing.T) {
	var got viduRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token vk", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"task_id":"t-1","state":"created"}`))
	}))
	defer srv.Close()

	v := NewVidu(Options{Endpoint: srv.URL, APIKey: "vk", DurationSec: 4, FPS: 24})
	reply, err := v.Generate(context.Background(), GenerateRequest{
		Image:  domain.InlineAsset{MimeType: "image/png", Data: "AAAA"},
		Prompt: "wave",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, reply.Status)
	assert.JSONEq(t, `{"task_id":"t-1","state":"created"}`, string(reply.Body))
	assert.Equal(t, []string{"AAAA"}, got.Images)
	assert.Equal(t, "wave", got.Prompt)
	assert.Equal(t, 4.0, got.Duration)
	assert.Equal(t, 24, got.FPS)
}

func TestViduGenerateOverridesAndPassesThroughErrors(t *testing.T) {
	var got viduRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("image too small"))
	}))
	defer srv.Close()

	d, fps := 8.0, 30
	v := NewVidu(Options{Endpoint: srv.URL, APIKey: "vk"})
	reply, err := v.Generate(context.Background(), GenerateRequest{
		Image:    domain.InlineAsset{Data: "AAAA"},
		Duration: &d,
		FPS:      &fps,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, reply.Status)
	assert.JSONEq(t, `{"result":"image too small"}`, string(reply.Body))
	assert.Equal(t, 8.0, got.Duration)
	assert.Equal(t, 30, got.FPS)
}

func TestViduUnreachableIsBadGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := transport.NewClient(transport.Options{
		MaxAttempts: 2,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})
	v := NewVidu(Options{Endpoint: url, APIKey: "vk", Transport: tr})
	reply, err := v.Generate(context.Background(), GenerateRequest{Image: domain.InlineAsset{Data: "AAAA"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, reply.Status)
	assert.Equal(t, 2, reply.Attempts)
	assert.True(t, json.Valid(reply.Body))
}
