package telegram

import "strings"

var (
	markdownReplacer = newEscaper("\\_*[]()~`>#+-=|{}.!")
	linkURLReplacer  = newEscaper("\\)")
)

func newEscaper(chars string) *strings.Replacer {
	pairs := make([]string, 0, len(chars)*2)
	for _, c := range chars {
		pairs = append(pairs, string(c), "\\"+string(c))
	}
	return strings.NewReplacer(pairs...)
}

// Escape makes arbitrary text safe for MarkdownV2
func Escape(text string) string {
	return markdownReplacer.Replace(text)
}

// EscapeURL escapes the URL part of an inline link
func EscapeURL(url string) string {
	return linkURLReplacer.Replace(url)
}

// Bold renders escaped bold text
func Bold(text string) string {
	return "*" + Escape(text) + "*"
}

// Link renders an inline link with an escaped label
func Link(label, url string) string {
	return "[" + Escape(label) + "](" + EscapeURL(url) + ")"
}

// Code renders inline code; only backtick and backslash need escaping inside
func Code(text string) string {
	return "`" + strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text) + "`"
}
