package server

import "strings"

// htmlEscaper escapes the characters that could smuggle markup through the
// model transcript into downstream rendering. The replacement strings contain
// none of the escaped characters, so applying it twice changes nothing.
var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize HTML-escapes user-supplied text before it enters any
// model-visible transcript. Idempotent.
func Sanitize(s string) string {
	return htmlEscaper.Replace(s)
}
