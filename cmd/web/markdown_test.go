package main

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func Test_application_renderMarkdown(t *testing.T) {
	app := newBareApplication()

	tests := []struct {
		name       string
		src        string
		selector   string
		wantText   string
		wantAbsent string
	}{
		{
			name:     "Emphasis",
			src:      "Keep a **neutral spine**",
			selector: "strong",
			wantText: "neutral spine",
		},
		{
			name:     "List",
			src:      "- one\n- two",
			selector: "ul > li:last-child",
			wantText: "two",
		},
		{
			name:       "Raw HTML is dropped",
			src:        "Hi <script>alert(1)</script>",
			selector:   "p",
			wantText:   "Hi alert(1)",
			wantAbsent: "script",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := app.renderMarkdown(tt.src)
			if err != nil {
				t.Fatalf("renderMarkdown() error = %v", err)
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
			if err != nil {
				t.Fatalf("Failed to parse HTML: %v", err)
			}
			if got := doc.Find(tt.selector).Text(); got != tt.wantText {
				t.Errorf("%s text = %q, want %q (html %s)", tt.selector, got, tt.wantText, html)
			}
			if tt.wantAbsent != "" && doc.Find(tt.wantAbsent).Length() != 0 {
				t.Errorf("Found %s in %s", tt.wantAbsent, html)
			}
		})
	}

	t.Run("Empty", func(t *testing.T) {
		html, err := app.renderMarkdown("")
		if err != nil || html != "" {
			t.Errorf("renderMarkdown(\"\") = %q, %v", html, err)
		}
	})
}
