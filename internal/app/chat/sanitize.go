package chat

import "strings"

var markupEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize escapes markup-significant characters and trims surrounding whitespace.
// It is applied exactly once per message, so an already escaped "&" is left alone.
func Sanitize(content string) string {
	return strings.TrimSpace(markupEscaper.Replace(content))
}
