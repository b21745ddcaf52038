package genai

import "nanoedit/internal/domain"

// GenerateContentRequest is the generateContent body. Parts order is text,
// base image, reference image.
type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// Assemble builds the multi-part payload. It never fails: inputs are
// validated and resolved before this point.
func Assemble(instruction string, base domain.InlineAsset, reference *domain.InlineAsset) GenerateContentRequest {
	parts := make([]Part, 0, 3)
	parts = append(parts, Part{Text: instruction}, inlinePart(base))
	if reference != nil {
		parts = append(parts, inlinePart(*reference))
	}
	return GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
}

func inlinePart(a domain.InlineAsset) Part {
	return Part{InlineData: &InlineData{MimeType: a.MimeType, Data: a.Data}}
}
