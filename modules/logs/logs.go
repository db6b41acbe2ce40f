// Package logs implements the built-in log inspection module. The host
// records its log file location in the store at startup; this module reads
// it back.
package logs

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/telegram"
)

//go:embed manifest.hcl
var ManifestSource []byte

func Register(f *module.Factories) {
	f.Register("logs", func() module.Module { return &Logs{} })
}

const (
	storeNamespace = "oolong"
	logFileKey     = "log_file"

	// Telegram caps messages at 4096 chars; leave room for the wrapper.
	maxBody = 3800
)

type Config struct {
	Tail int `hcl:"tail"`
}

type Logs struct {
	module.Base
	cfg Config
}

func (l *Logs) Config() any { return &l.cfg }

func (l *Logs) Declare() module.Declaration {
	return module.Declaration{
		Commands: []module.Command{
			{Name: "logs", Run: l.logs},
			{Name: "clearlogs", Run: l.clearLogs},
		},
	}
}

func (l *Logs) path() string {
	return l.Store().GetString(storeNamespace, logFileKey, "")
}

// levelNames in ascending severity, matching the tokens slog writes in both
// text and JSON output.
var levelNames = []string{"DEBUG", "INFO", "WARN", "ERROR"}

func levelIndex(s string) int {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		s = "WARN"
	}
	for i, name := range levelNames {
		if s == name {
			return i
		}
	}
	return -1
}

func (l *Logs) logs(ctx context.Context, msg *telegram.Message, args string) error {
	path := l.path()
	if path == "" {
		_, err := telegram.Answer(ctx, l.Client(), msg, "File logging is disabled")
		return err
	}

	min := levelIndex("INFO")
	if s := strings.TrimSpace(args); s != "" {
		min = levelIndex(s)
		if min < 0 {
			_, err := telegram.Answer(ctx, l.Client(), msg,
				"Usage: <code>logs [DEBUG|INFO|WARN|ERROR]</code>")
			return err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	filtered := filterLevel(string(raw), min)
	tail := lastLines(filtered, l.cfg.Tail)
	if tail == "" {
		_, err := telegram.Answer(ctx, l.Client(), msg,
			fmt.Sprintf("No log records at level %s or higher", levelNames[min]))
		return err
	}
	if len(tail) > maxBody {
		tail = tail[len(tail)-maxBody:]
	}

	_, err = telegram.Answer(ctx, l.Client(), msg,
		fmt.Sprintf("📜 <b>Logs (%s and up)</b>\n<pre>%s</pre>", levelNames[min], html.EscapeString(tail)))
	return err
}

// filterLevel keeps lines carrying a level token at or above min.
func filterLevel(s string, min int) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		for _, name := range levelNames[min:] {
			if strings.Contains(line, name) {
				kept = append(kept, line)
				break
			}
		}
	}
	return strings.Join(kept, "\n")
}

func (l *Logs) clearLogs(ctx context.Context, msg *telegram.Message, args string) error {
	path := l.path()
	if path == "" {
		_, err := telegram.Answer(ctx, l.Client(), msg, "File logging is disabled")
		return err
	}
	if err := os.Truncate(path, 0); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	_, err := telegram.Answer(ctx, l.Client(), msg, "🗑 Log file cleared")
	return err
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
