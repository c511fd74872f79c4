// Package caption implements the template-substitution engine that turns a
// caption template plus per-image metadata into display text. Everything
// here is pure and deterministic.
package caption

import (
	"regexp"
	"strings"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
)

// AllTemplate dumps every metadata entry instead of substituting.
const AllTemplate = "{all}"

// NoMetadataText is rendered for {all} against empty metadata.
const NoMetadataText = "No metadata available"

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Process resolves a caption template against metadata. An empty template
// yields an empty string (no caption). The template {all} expands to
// "key: value" lines in metadata insertion order. Any other template gets
// one global replacement pass per metadata key, in insertion order; there is
// no re-expansion loop, so a value containing braces cannot recurse. After
// substitution, placeholders whose keys are absent from the metadata are
// rewritten as [name] rather than left as raw braces.
//
// Process is idempotent on fully resolved text: a string without "{" is
// returned unchanged.
func Process(template string, meta *display.Metadata) string {
	if template == "" {
		return ""
	}
	if template == AllTemplate {
		if meta.Len() == 0 {
			return NoMetadataText
		}
		lines := make([]string, 0, meta.Len())
		for _, k := range meta.Keys() {
			v, _ := meta.Get(k)
			lines = append(lines, k+": "+v)
		}
		return strings.Join(lines, "\n")
	}

	result := template
	for _, k := range meta.Keys() {
		v, _ := meta.Get(k)
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}

	// Unmatched references render deterministically as [name].
	return placeholderPattern.ReplaceAllString(result, "[$1]")
}
