package domain

import (
	"math"
	"strings"
)

// Mode is the requested edit operation.
type Mode string

const (
	ModeRemove  Mode = "remove"
	ModeInsert  Mode = "insert"
	ModeReplace Mode = "replace"
)

// ParseMode accepts the mode names case-insensitively. An empty string is
// not a mode; callers pick their own default.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRemove, ModeInsert, ModeReplace:
		return m, true
	}
	return "", false
}

// NeedsReference reports whether the mode requires a second image.
func (m Mode) NeedsReference() bool {
	return m == ModeInsert || m == ModeReplace
}

// BoundingBox restricts an edit to a rectangle of the base image.
type BoundingBox struct {
	X, Y, W, H float64
}

// Finite reports whether all four fields are finite numbers.
func (b BoundingBox) Finite() bool {
	for _, v := range [...]float64{b.X, b.Y, b.W, b.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// EditRequest is one pass through the edit pipeline.
type EditRequest struct {
	Mode           Mode
	Base           ImageRef
	Reference      *ImageRef
	Target         string
	BoundingBox    *BoundingBox
	PromptOverride string
}

// HasReference reports whether a non-empty reference image was supplied.
func (r EditRequest) HasReference() bool {
	return r.Reference != nil && !r.Reference.IsZero()
}

// Validate checks the request shape. It does not touch the network.
func (r EditRequest) Validate() error {
	if _, ok := ParseMode(string(r.Mode)); !ok {
		return Validation(CodeInvalidMode, "mode must be one of remove, insert, replace")
	}
	if r.Base.IsZero() {
		return Validation(CodeMissingImage, "image is required")
	}
	if r.Mode.NeedsReference() && !r.HasReference() {
		return Validation(CodeMissingInsert, string(r.Mode)+" requires a reference image")
	}
	if r.BoundingBox != nil && !r.BoundingBox.Finite() {
		return Validation(CodeInvalidBBox, "boundingBox needs finite numeric x, y, w and h")
	}
	return nil
}

// ChainStep is one stage of a composite job. Steps after the first have
// their Base replaced by the previous step's output before they run.
type ChainStep struct {
	Operation Mode
	Input     EditRequest
}
