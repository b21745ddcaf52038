// Package service assembles the edit stack from configuration. Both the
// HTTP server and the CLI build their components here.
package service

import (
	"net/http"

	"nanoedit/internal/imagegen"
	"nanoedit/internal/infra"
	"nanoedit/internal/metrics"
	"nanoedit/internal/providers/genai"
	"nanoedit/internal/providers/video"
	"nanoedit/internal/transport"
)

// Service holds the wired, immutable components.
type Service struct {
	Resolver       *imagegen.Resolver
	Pipeline       *imagegen.Pipeline
	Orchestrator   *imagegen.Orchestrator
	Animator       *video.Vidu
	Fallback       *imagegen.FallbackPolicy
	Metrics        *metrics.Collector
	AnimateMissing []string
}

// New wires every component from cfg. Missing backend keys are not an
// error: they surface per request as a configuration failure.
func New(cfg *infra.Config, logger *infra.Logger, collector *metrics.Collector) *Service {
	logger = infra.OrDiscard(logger)

	resolver := imagegen.NewResolver(imagegen.ResolverOptions{
		Timeout:      cfg.FetchTimeout,
		AllowPrivate: cfg.FetchAllowPrivate,
		Logger:       logger,
	})

	editTransport := transport.NewClient(transport.Options{
		Target:      "genai",
		MaxAttempts: cfg.EditTuning.MaxAttempts,
		BaseDelay:   cfg.EditTuning.BaseDelay,
		Timeout:     cfg.EditTuning.Timeout,
		HTTPClient:  &http.Client{},
		Logger:      logger,
		Metrics:     collector,
	})
	pipeline := imagegen.NewPipeline(imagegen.PipelineOptions{
		Resolver: resolver,
		Backend: genai.NewClient(genai.Options{
			Endpoint:  cfg.EditURL,
			APIKey:    cfg.EditAPIKey,
			Transport: editTransport,
			Logger:    logger,
		}),
		MissingKeys: cfg.MissingEditKeys(),
		Logger:      logger,
		Metrics:     collector,
	})

	animateTransport := transport.NewClient(transport.Options{
		Target:      "video",
		MaxAttempts: cfg.AnimateTuning.MaxAttempts,
		BaseDelay:   cfg.AnimateTuning.BaseDelay,
		Timeout:     cfg.AnimateTuning.Timeout,
		HTTPClient:  &http.Client{},
		Logger:      logger,
		Metrics:     collector,
	})

	mode := imagegen.FallbackPropagate
	if cfg.StubOnFailure() {
		mode = imagegen.FallbackStub
	}

	return &Service{
		Resolver:     resolver,
		Pipeline:     pipeline,
		Orchestrator: imagegen.NewOrchestrator(pipeline, logger),
		Animator: video.NewVidu(video.Options{
			Endpoint:    cfg.AnimateURL,
			APIKey:      cfg.AnimateAPIKey,
			DurationSec: cfg.AnimateDurationSec,
			FPS:         cfg.AnimateFPS,
			Transport:   animateTransport,
			Logger:      logger,
		}),
		Fallback:       imagegen.NewFallbackPolicy(mode),
		Metrics:        collector,
		AnimateMissing: cfg.MissingAnimateKeys(),
	}
}
