// Package terminal implements the built-in shell execution module.
package terminal

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"os/exec"
	"strings"
	"time"

	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/telegram"
)

//go:embed manifest.hcl
var ManifestSource []byte

func Register(f *module.Factories) {
	f.Register("terminal", func() module.Module { return &Terminal{} })
}

const maxOutput = 3500

type Config struct {
	Shell   string `hcl:"shell"`
	Timeout int    `hcl:"timeout"`
}

type Terminal struct {
	module.Base
	cfg Config
}

func (t *Terminal) Config() any { return &t.cfg }

func (t *Terminal) Declare() module.Declaration {
	return module.Declaration{
		Commands: []module.Command{
			{Name: "exec", Run: t.exec},
		},
	}
}

func (t *Terminal) exec(ctx context.Context, msg *telegram.Message, args string) error {
	command := strings.TrimSpace(args)
	if command == "" {
		_, err := telegram.Answer(ctx, t.Client(), msg, "Usage: <code>exec &lt;command&gt;</code>")
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(t.cfg.Timeout)*time.Second)
	defer cancel()

	start := time.Now()
	out, err := exec.CommandContext(runCtx, t.cfg.Shell, "-c", command).CombinedOutput()
	took := time.Since(start).Round(time.Millisecond)

	body := strings.TrimSpace(string(out))
	if len(body) > maxOutput {
		body = body[:maxOutput] + "\n… truncated"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💻 <code>%s</code>\n", html.EscapeString(command))
	if body != "" {
		fmt.Fprintf(&b, "<pre>%s</pre>\n", html.EscapeString(body))
	}
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		fmt.Fprintf(&b, "⏰ Timed out after <code>%ds</code>", t.cfg.Timeout)
	case err != nil:
		fmt.Fprintf(&b, "❌ <code>%s</code> in <code>%s</code>", html.EscapeString(err.Error()), took)
	default:
		fmt.Fprintf(&b, "✅ Done in <code>%s</code>", took)
	}

	_, aerr := telegram.Answer(ctx, t.Client(), msg, b.String())
	return aerr
}
