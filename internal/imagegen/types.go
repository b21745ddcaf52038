package imagegen

import (
	"context"

	"nanoedit/internal/domain"
	"nanoedit/internal/providers/genai"
)

// ImageResolver turns a caller image into an inline asset.
type ImageResolver interface {
	Resolve(ctx context.Context, ref domain.ImageRef) (domain.InlineAsset, error)
}

// Backend sends an assembled payload and reads the answer back.
// *genai.Client satisfies it.
type Backend interface {
	Generate(ctx context.Context, payload genai.GenerateContentRequest) (domain.Result, error)
}

// Runner executes one edit pass. *Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req domain.EditRequest) (domain.Result, error)
}

var (
	_ ImageResolver = (*Resolver)(nil)
	_ Backend       = (*genai.Client)(nil)
	_ Runner        = (*Pipeline)(nil)
)
