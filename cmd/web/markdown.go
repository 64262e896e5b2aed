package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// newMarkdown renders authored content. Raw HTML in the source is dropped because the renderer is left unsafe-off.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func (app *application) renderMarkdown(src string) (string, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := app.markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (app *application) renderMarkdownList(items []string) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		rendered, err := app.renderMarkdown(item)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}
