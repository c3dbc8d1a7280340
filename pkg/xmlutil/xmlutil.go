// Package xmlutil escapes conversation text for embedding inside the
// XML-delimited sections of classification prompts.
package xmlutil

import (
	"encoding/xml"
	"strings"
)

// Escape neutralizes XML metacharacters so utterance text placed between
// prompt tags cannot close the enclosing element or inject markup of its
// own. Input that is not valid UTF-8 comes back unchanged.
func Escape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
