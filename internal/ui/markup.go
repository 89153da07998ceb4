// Package ui renders the LiveDocs auth pages and their animated form kit as
// templ components.
package ui

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import (
	"context"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
)

// markup writes HTML and keeps the first write error.
type markup struct {
	ctx context.Context
	w   io.Writer
	err error
}

func newMarkup(ctx context.Context, w io.Writer) *markup {
	return &markup{ctx: ctx, w: w}
}

func (h *markup) raw(parts ...string) {
	for _, s := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *markup) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *markup) attr(name, value string) {
	h.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

func (h *markup) attrIf(ok bool, name, value string) {
	if ok {
		h.attr(name, value)
	}
}

func (h *markup) flag(ok bool, name string) {
	if ok {
		h.raw(" ", name)
	}
}

func (h *markup) render(c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(h.ctx, h.w)
}

func classes(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var messagePolicy = bluemonday.StrictPolicy()

// CleanMessage strips any markup from a message before it is shown. Provider
// messages are not trusted to be plain text. The result is unescaped again
// because rendering escapes it.
func CleanMessage(s string) string {
	return strings.TrimSpace(html.UnescapeString(messagePolicy.Sanitize(s)))
}
