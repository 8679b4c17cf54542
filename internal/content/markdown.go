// Package content turns post bodies into HTML.
package content

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RenderMarkdown converts a markdown body to HTML. Raw HTML in the source is dropped.
func RenderMarkdown(body string) string {
	if body == "" {
		return ""
	}

	// parsers carry state and must not be reused
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse([]byte(body))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.SkipHTML | html.HrefTargetBlank | html.NofollowLinks,
	})
	return string(markdown.Render(doc, renderer))
}
