// Package help implements the built-in command listing.
package help

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"strings"

	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/telegram"
)

//go:embed manifest.hcl
var ManifestSource []byte

func Register(f *module.Factories) {
	f.Register("help", func() module.Module { return &Help{} })
}

type Help struct {
	module.Base
}

func (h *Help) Declare() module.Declaration {
	return module.Declaration{
		Commands: []module.Command{
			{Name: "help", Run: h.help},
		},
	}
}

func (h *Help) help(ctx context.Context, msg *telegram.Message, args string) error {
	if name := strings.TrimSpace(args); name != "" {
		return h.helpModule(ctx, msg, name)
	}

	modules := h.Host().Modules()
	var b strings.Builder
	fmt.Fprintf(&b, "🌙 <b>%d modules loaded</b>\n\n", len(modules))
	for _, m := range modules {
		marker := "•"
		if m.Origin() == module.OriginCore {
			marker = "▪️"
		}
		fmt.Fprintf(&b, "%s <b>%s</b>", marker, html.EscapeString(m.Name()))
		var names []string
		for _, c := range m.CommandInfo() {
			names = append(names, c.Name)
		}
		if len(names) > 0 {
			fmt.Fprintf(&b, ": <code>%s</code>", strings.Join(names, "</code>, <code>"))
		}
		b.WriteString("\n")
	}
	_, err := telegram.Answer(ctx, h.Client(), msg, b.String())
	return err
}

func (h *Help) helpModule(ctx context.Context, msg *telegram.Message, name string) error {
	m, ok := h.Host().Lookup(name)
	if !ok {
		_, err := telegram.Answer(ctx, h.Client(), msg,
			fmt.Sprintf("Module <b>%s</b> is not loaded", html.EscapeString(name)))
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌙 <b>%s</b>", html.EscapeString(m.Name()))
	if d := m.Description(); d != "" {
		fmt.Fprintf(&b, " — %s", html.EscapeString(d))
	}
	b.WriteString("\n\n")
	for _, c := range m.CommandInfo() {
		fmt.Fprintf(&b, "• <code>%s</code>", c.Name)
		if len(c.Aliases) > 0 {
			fmt.Fprintf(&b, " (<code>%s</code>)", strings.Join(c.Aliases, "</code>, <code>"))
		}
		if c.Doc != "" {
			fmt.Fprintf(&b, " %s", html.EscapeString(c.Doc))
		}
		b.WriteString("\n")
	}
	_, err := telegram.Answer(ctx, h.Client(), msg, b.String())
	return err
}
