package telegram

import (
	"html"
	"strings"
	"unicode/utf8"
)

// MaxTextRunes is the Bot API limit for sendMessage and editMessageText.
const MaxTextRunes = 4096

const ellipsis = "…"

// EscapeClipped HTML-escapes value and cuts it so the escaped result holds at
// most limit runes. A cut result ends with an ellipsis and never splits an entity.
func EscapeClipped(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	escaped := html.EscapeString(value)
	if utf8.RuneCountInString(escaped) <= limit {
		return escaped
	}

	var builder strings.Builder
	used := 0
	for _, r := range value {
		piece := html.EscapeString(string(r))
		width := utf8.RuneCountInString(piece)
		if used+width > limit-1 {
			break
		}
		builder.WriteString(piece)
		used += width
	}
	builder.WriteString(ellipsis)
	return builder.String()
}
