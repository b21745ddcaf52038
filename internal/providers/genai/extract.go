package genai

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"nanoedit/internal/domain"
)

// The backend has been seen answering with both the REST camelCase keys
// and the snake_case proto names, so both are decoded.
type responseBody struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      *responseContent `json:"content"`
	FinishReason string           `json:"finishReason"`
}

type responseContent struct {
	Parts []responsePart `json:"parts"`
}

type responsePart struct {
	Text        *string       `json:"text"`
	InlineData  *responseBlob `json:"inlineData"`
	InlineSnake *responseBlob `json:"inline_data"`
	FileData    *responseBlob `json:"fileData"`
	FileSnake   *responseBlob `json:"file_data"`
}

type responseBlob struct {
	MimeType      string `json:"mimeType"`
	MimeTypeSnake string `json:"mime_type"`
	Data          string `json:"data"`
}

func (b *responseBlob) mime() string {
	if b.MimeType != "" {
		return b.MimeType
	}
	return b.MimeTypeSnake
}

func (p responsePart) blob() *responseBlob {
	for _, b := range []*responseBlob{p.InlineData, p.InlineSnake, p.FileData, p.FileSnake} {
		if b != nil && strings.TrimSpace(b.Data) != "" {
			return b
		}
	}
	return nil
}

// Extract turns a raw generateContent body into a typed result. Only the
// first candidate is considered. It never returns an error: malformed input
// is a ResultParseFailure carrying a truncated copy of the body.
func Extract(raw []byte) domain.Result {
	var body responseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return parseFailure(raw, "invalid JSON: "+err.Error())
	}
	if len(body.Candidates) == 0 {
		return domain.NoAsset("")
	}

	first := body.Candidates[0]
	var parts []responsePart
	if first.Content != nil {
		parts = first.Content.Parts
	}

	for _, p := range parts {
		b := p.blob()
		if b == nil {
			continue
		}
		data := strings.TrimSpace(b.Data)
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return parseFailure(raw, "inline data is not valid base64")
		}
		return domain.Succeeded(domain.InlineAsset{MimeType: imageMIME(b.mime(), decoded), Data: data})
	}

	for _, p := range parts {
		if p.Text != nil && strings.TrimSpace(*p.Text) != "" {
			return domain.NoAsset(*p.Text)
		}
	}
	return domain.NoAsset(first.FinishReason)
}

// imageMIME keeps a declared image type. Anything else is replaced by the
// sniffed type of the bytes, or png when they are not recognisable.
func imageMIME(declared string, decoded []byte) string {
	if mime := domain.NormalizeMIME(declared); strings.HasPrefix(mime, "image/") {
		return mime
	}
	if sniffed := domain.NormalizeMIME(mimetype.Detect(decoded).String()); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return domain.DefaultRawMIME
}

func parseFailure(raw []byte, cause string) domain.Result {
	return domain.Result{
		Kind:  domain.ResultParseFailure,
		Body:  domain.Snippet(string(raw)),
		Cause: cause,
	}
}
