package markup

import (
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Chat messages carry inline formatting only. Paragraphs are the sole block
// construct, so "# x", "- x", "1. x", "> x" and "---" stay literal text.
var md = goldmark.New(
	goldmark.WithParser(parser.NewParser(
		parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 1000)),
		parser.WithInlineParsers(parser.DefaultInlineParsers()...),
	)),
	goldmark.WithExtensions(extension.Strikethrough),
)

// Render parses chat markdown and emits the rich-text subset understood by
// the command classifier. Raw HTML typed by users is escaped, never passed
// through, so nobody can forge a <b> wrapper by typing it. Paragraphs are
// separated by a newline.
func Render(src string) string {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Document:
		case *ast.Text:
			if !entering {
				return ast.WalkContinue, nil
			}
			v := node.Segment.Value(source)
			if !node.IsRaw() {
				v = util.UnescapePunctuations(v)
			}
			b.WriteString(html.EscapeString(string(v)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			if entering {
				b.WriteString(html.EscapeString(string(node.Value)))
			}
		case *ast.Emphasis:
			tag := "i"
			if node.Level >= 2 {
				tag = "b"
			}
			writeTag(&b, tag, entering)
		case *ast.CodeSpan:
			writeTag(&b, "code", entering)
		case *extast.Strikethrough:
			writeTag(&b, "strike", entering)
		case *ast.RawHTML:
			if entering {
				for i := 0; i < node.Segments.Len(); i++ {
					seg := node.Segments.At(i)
					b.WriteString(html.EscapeString(string(seg.Value(source))))
				}
			}
		case *ast.AutoLink:
			if entering {
				b.WriteString(html.EscapeString(string(node.Label(source))))
			}
			return ast.WalkSkipChildren, nil
		default:
			if entering && n.Type() == ast.TypeBlock {
				newline()
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimRight(b.String(), "\n")
}

func writeTag(b *strings.Builder, tag string, open bool) {
	if open {
		b.WriteString("<" + tag + ">")
		return
	}
	b.WriteString("</" + tag + ">")
}
