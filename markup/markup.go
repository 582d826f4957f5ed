// Package markup converts between the two text dialects the bot deals with.
//
// Chat content reaches the game as a small rich-text subset (<b>, <i>, <code>,
// <strike>, HTML entities). Outgoing messages are written in chat markdown
// (**bold**, *italic*, `code`, ---strike---). Format goes rich text → markdown,
// Render goes markdown → rich text for transports that deliver raw markdown.
package markup

import (
	"html"
	"strings"
)

var escaper = strings.NewReplacer(`\`, `\\`, "*", `\*`)

var tagReplacer = strings.NewReplacer(
	"<b>", "**", "</b>", "**",
	"<i>", "*", "</i>", "*",
	"<strike>", "---", "</strike>", "---",
	"<code>", "`", "</code>", "`",
)

// Format rewrites rich text into chat markdown.
//
// Literal backslashes and asterisks are escaped before tags are substituted
// so they render as themselves rather than as escapes or emphasis. Entities
// are decoded last so decoding cannot produce characters that would then be
// escaped twice.
func Format(rich string) string {
	s := escaper.Replace(rich)
	s = tagReplacer.Replace(s)
	return html.UnescapeString(s)
}
