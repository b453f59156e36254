// internal/prompt/renderer.go
package prompt

import (
	"fmt"
	"regexp"
)

// Render substitutes {{key}} placeholders in content with values from
// payload. Matching is exact on the key name and tolerates whitespace inside
// the braces ({{ key }}). Keys absent from the payload leave their
// placeholders in place; non-string values are replaced with their default
// textual form. There is no recursion, no dotted paths and no conditionals;
// this is deliberately not a template engine.
func Render(content string, payload map[string]interface{}) string {
	if len(payload) == 0 {
		return content
	}

	rendered := content
	for key, value := range payload {
		pattern := regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(key) + `\s*\}\}`)
		rendered = pattern.ReplaceAllLiteralString(rendered, stringify(value))
	}
	return rendered
}

func stringify(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
