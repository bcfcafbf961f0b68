package chat

import (
	"bytes"
	"html/template"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown converts agent replies to sanitized HTML.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewMarkdown creates a renderer with GitHub-flavoured extensions. Raw HTML
// in the source is kept by goldmark and then filtered by a UGC policy that
// additionally allows the collapsible <details> block used for error details.
func NewMarkdown() *Markdown {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("details", "summary")

	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithUnsafe(),
			),
		),
		policy: policy,
	}
}

// Render returns the sanitized HTML for src.
func (m *Markdown) Render(src string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		slog.Debug("markdown conversion failed, falling back to escaped text", "error", err)
		return template.HTML(template.HTMLEscapeString(src)) //nolint:gosec // escaped above
	}
	return template.HTML(m.policy.SanitizeBytes(buf.Bytes())) //nolint:gosec // sanitized by bluemonday
}
