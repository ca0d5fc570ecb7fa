package validation

import (
	"html"
	"regexp"
)

var scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>|<script\b[^>]*/?>`)

// StripScripts removes <script> elements from s.
func StripScripts(s string) string {
	return scriptBlock.ReplaceAllString(s, "")
}

// EscapeHTML renders s inert for display in markup.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}
