// Package info implements the built-in status module.
package info

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/telegram"
	"github.com/oolong-ub/oolong/internal/version"
)

//go:embed manifest.hcl
var ManifestSource []byte

func Register(f *module.Factories) {
	f.Register("info", func() module.Module { return &Info{started: time.Now()} })
}

type Config struct {
	ShowSystem bool `hcl:"show_system"`
}

type Info struct {
	module.Base
	cfg     Config
	started time.Time
}

func (i *Info) Config() any { return &i.cfg }

func (i *Info) Declare() module.Declaration {
	return module.Declaration{
		Commands: []module.Command{
			{Name: "ping", Run: i.ping},
			{Name: "info", Run: i.info},
		},
	}
}

func (i *Info) ping(ctx context.Context, msg *telegram.Message, args string) error {
	start := time.Now()
	sent, err := telegram.Answer(ctx, i.Client(), msg, "🏓 ...")
	if err != nil {
		return err
	}
	rtt := time.Since(start).Round(time.Millisecond)
	_, err = i.Client().EditMessage(ctx, sent.ChatID, sent.ID,
		fmt.Sprintf("🏓 <code>%s</code>", rtt),
		&telegram.SendOptions{ParseMode: telegram.ParseModeHTML})
	return err
}

func (i *Info) info(ctx context.Context, msg *telegram.Message, args string) error {
	me := i.Client().Me()

	var b strings.Builder
	fmt.Fprintf(&b, "🌙 <b>oolong</b> v%s\n", version.Current)
	fmt.Fprintf(&b, "👤 <b>%s</b>", html.EscapeString(me.FirstName))
	if me.Username != "" {
		fmt.Fprintf(&b, " (@%s)", html.EscapeString(me.Username))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "⏳ Uptime: <code>%s</code>\n", time.Since(i.started).Round(time.Second))
	fmt.Fprintf(&b, "📦 Modules: <code>%d</code>\n", len(i.Host().Modules()))

	if i.cfg.ShowSystem {
		b.WriteString("\n")
		i.appendSystem(ctx, &b)
	}

	_, err := telegram.Answer(ctx, i.Client(), msg, b.String())
	return err
}

// appendSystem gathers host statistics. Any probe failure drops that line,
// never the whole reply.
func (i *Info) appendSystem(ctx context.Context, b *strings.Builder) {
	if hi, err := host.InfoWithContext(ctx); err == nil {
		fmt.Fprintf(b, "🖥 <code>%s %s</code>, up <code>%s</code>\n",
			hi.Platform, hi.PlatformVersion, (time.Duration(hi.Uptime) * time.Second).Round(time.Second))
	}
	if c, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(c) > 0 {
		fmt.Fprintf(b, "⚙️ CPU: <code>%.1f%%</code>\n", c[0])
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fmt.Fprintf(b, "🧠 RAM: <code>%.1f%%</code> of <code>%s</code>\n",
			v.UsedPercent, formatBytes(v.Total))
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			fmt.Fprintf(b, "🔋 Process RSS: <code>%s</code>\n", formatBytes(mi.RSS))
		}
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
