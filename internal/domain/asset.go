package domain

import (
	"encoding/base64"
	"strings"
)

// DefaultRawMIME is assumed for bare base64 input whose type cannot be sniffed.
const DefaultRawMIME = "image/png"

// DefaultRemoteMIME is assumed for fetched images with no usable type hint.
const DefaultRemoteMIME = "image/jpeg"

// RefKind enumerates the accepted encodings of an input image.
type RefKind int

const (
	RefRawBase64 RefKind = iota
	RefDataURI
	RefRemoteURL
)

func (k RefKind) String() string {
	switch k {
	case RefDataURI:
		return "data_uri"
	case RefRemoteURL:
		return "remote_url"
	default:
		return "raw_base64"
	}
}

// ImageRef is an input image as the caller sent it, tagged with the form
// it arrived in.
type ImageRef struct {
	Kind RefKind
	// Raw holds the caller's string unmodified.
	Raw string
}

// ParseImageRef classifies s. The order matters: a data URI is recognised
// first, then an http(s) URL, and anything else is treated as bare base64.
func ParseImageRef(s string) ImageRef {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return ImageRef{Kind: RefDataURI, Raw: s}
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return ImageRef{Kind: RefRemoteURL, Raw: s}
	default:
		return ImageRef{Kind: RefRawBase64, Raw: s}
	}
}

// DataURIRef builds an inline reference from an already resolved asset.
func DataURIRef(asset InlineAsset) ImageRef {
	return ImageRef{Kind: RefDataURI, Raw: asset.DataURI()}
}

// IsZero reports whether the reference carries no input at all.
func (r ImageRef) IsZero() bool {
	return strings.TrimSpace(r.Raw) == ""
}

// InlineAsset is a resolved image: a mime type plus base64-encoded bytes.
type InlineAsset struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// NewInlineAsset encodes raw bytes.
func NewInlineAsset(mimeType string, raw []byte) InlineAsset {
	return InlineAsset{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(raw)}
}

// Bytes decodes the asset payload.
func (a InlineAsset) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}

// DataURI renders the asset as a data URI.
func (a InlineAsset) DataURI() string {
	return "data:" + a.MimeType + ";base64," + a.Data
}

// Format returns the short format name used in response envelopes, e.g. "png".
func (a InlineAsset) Format() string {
	mime := strings.ToLower(a.MimeType)
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "":
		return "png"
	}
	if i := strings.IndexByte(mime, '/'); i >= 0 {
		return mime[i+1:]
	}
	return mime
}

// NormalizeMIME lower-cases a content type, drops parameters and folds the
// non-standard image/jpg spelling.
func NormalizeMIME(contentType string) string {
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "image/jpg" {
		return "image/jpeg"
	}
	return mime
}
