package imagegen

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"nanoedit/internal/domain"
)

// DefaultTarget stands in when the caller did not describe what to edit.
const DefaultTarget = "the target object"

var upper = cases.Upper(language.Und)

// BuildInstruction renders the edit intent as newline separated clauses in
// a fixed order: scope, mode, target, box constraint, mode guidance,
// preservation, caller prompt, output format. The box and caller prompt
// clauses are omitted when absent.
func BuildInstruction(mode domain.Mode, target string, box *domain.BoundingBox, extra string, hasReference bool) string {
	target = strings.TrimSpace(target)
	if target == "" {
		target = DefaultTarget
	}

	lines := make([]string, 0, 8)
	if hasReference {
		lines = append(lines, "Edit the first image only. The second image is a reference; never alter or return it.")
	} else {
		lines = append(lines, "Edit the first image only.")
	}
	lines = append(lines, fmt.Sprintf("Task: %s object.", upper.String(string(mode))))
	lines = append(lines, "Target: "+target+".")

	if box != nil && box.Finite() {
		lines = append(lines, fmt.Sprintf(
			"Target box: x=%s, y=%s, w=%s, h=%s. Change nothing outside this box.",
			num(box.X), num(box.Y), num(box.W), num(box.H),
		))
	}

	lines = append(lines, guidance(mode, target, hasReference))
	lines = append(lines, "Keep every other part of the first image unchanged, including other people, background and framing.")

	if extra = strings.TrimSpace(extra); extra != "" {
		lines = append(lines, "Extra: "+extra)
	}
	lines = append(lines, "Output a single edited image, PNG preferred, with no extra borders.")

	return strings.Join(lines, "\n")
}

func guidance(mode domain.Mode, target string, hasReference bool) string {
	switch {
	case mode == domain.ModeRemove:
		return fmt.Sprintf("Remove %s and inpaint the area cleanly from the surrounding background, leaving no artifacts, halos or smears.", target)
	case hasReference && mode == domain.ModeInsert:
		return "Insert the subject of the second image into the first image, using the second image for identity and appearance. Match perspective, lighting, color temperature and shadowing of the scene."
	case hasReference:
		return fmt.Sprintf("Replace %s with the subject of the second image, using the second image for identity and appearance. Match perspective, lighting, color temperature and shadowing of the scene.", target)
	case mode == domain.ModeInsert:
		return fmt.Sprintf("Insert %s as described, matching perspective, lighting, color temperature and shadowing of the scene.", target)
	default:
		return fmt.Sprintf("Replace %s as described, matching perspective, lighting, color temperature and shadowing of the scene.", target)
	}
}

// num keeps caller coordinates verbatim: 10 stays "10", 12.5 stays "12.5".
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
