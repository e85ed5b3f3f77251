package render

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// mdConverter is safe for concurrent use.
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(
			commonmark.WithEmDelimiter("_"),
			commonmark.WithStrongDelimiter("**"),
			commonmark.WithBulletListMarker("-"),
			commonmark.WithCodeBlockFence("```"),
			commonmark.WithListEndComment(false),
		),
	),
)

// HTMLToMarkdown converts a Canvas rich-text description to Markdown.
// Links and images are kept; scripts and styles are dropped. Input the
// converter rejects is returned trimmed.
func HTMLToMarkdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	md, err := mdConverter.ConvertString(src)
	if err != nil {
		return strings.TrimSpace(src)
	}
	return tidy(md)
}

// tidy drops trailing spaces (hard-break markers included) and collapses
// blank runs so the output is stable across converter versions.
func tidy(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
