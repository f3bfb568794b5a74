package htmlutil

import (
	"regexp"
	"strings"

	"github.com/k3a/html2text"
)

var (
	htmlTag    = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// ToText converts HTML to plain text using a proper HTML parser.
func ToText(s string) string {
	return html2text.HTML2TextWithOptions(s, html2text.WithUnixLineBreaks())
}

// ReplyText normalises a chatbot reply for display. Replies carrying markup
// are converted to text; trailing spaces are stripped and runs of blank
// lines collapse to one.
func ReplyText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if htmlTag.MatchString(s) {
		s = ToText(s)
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}
