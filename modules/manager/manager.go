// Package manager implements the built-in module administering the host:
// loading and unloading modules, the prefix set, per-module config, restart
// and shutdown.
package manager

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/telegram"
)

//go:embed manifest.hcl
var ManifestSource []byte

// Register installs the implementation under the key the manifest binds to.
func Register(f *module.Factories) {
	f.Register("manager", func() module.Module { return New() })
}

const (
	storeNamespace = "oolong"
	prefixKey      = "prefix"
	restartKey     = "restart_info"
)

// restartInfo survives the process boundary so the restart confirmation can
// be edited in place after the new process is up.
type restartInfo struct {
	ChatID    int64     `json:"chat_id"`
	MessageID int64     `json:"message_id"`
	StartedAt time.Time `json:"started_at"`
}

type Manager struct {
	module.Base

	// execRestart replaces the process image; overridable in tests.
	execRestart func() error
	// signalStop asks the host to shut down.
	signalStop func() error
}

func New() *Manager {
	return &Manager{
		execRestart: func() error {
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			return syscall.Exec(exe, os.Args, os.Environ())
		},
		signalStop: func() error {
			return syscall.Kill(os.Getpid(), syscall.SIGTERM)
		},
	}
}

func (m *Manager) Declare() module.Declaration {
	return module.Declaration{
		Commands: []module.Command{
			{Name: "loadmod", Run: m.loadMod},
			{Name: "unloadmod", Run: m.unloadMod},
			{Name: "addprefix", Run: m.addPrefix},
			{Name: "delprefix", Run: m.delPrefix},
			{Name: "setconfig", Run: m.setConfig},
			{Name: "getconfig", Run: m.getConfig},
			{Name: "restart", Run: m.restart},
			{Name: "stop", Run: m.stop},
		},
	}
}

// OnLoad finishes a pending restart by editing the confirmation message.
func (m *Manager) OnLoad(ctx context.Context) error {
	var info restartInfo
	ok, err := m.Store().Get(storeNamespace, restartKey, &info)
	if err != nil || !ok {
		return err
	}
	if err := m.Store().Pop(storeNamespace, restartKey); err != nil {
		return err
	}
	took := time.Since(info.StartedAt).Round(time.Millisecond)
	text := fmt.Sprintf("✅ Restarted in <code>%s</code>", took)
	if _, err := m.Client().EditMessage(ctx, info.ChatID, info.MessageID,
		text, &telegram.SendOptions{ParseMode: telegram.ParseModeHTML}); err != nil {
		m.Log().Warn("restart confirmation edit failed", "error", err)
	}
	return nil
}

func (m *Manager) loadMod(ctx context.Context, msg *telegram.Message, args string) error {
	src := strings.TrimSpace(args)
	if src == "" {
		_, err := telegram.Answer(ctx, m.Client(), msg, "Usage: <code>loadmod &lt;url or manifest source&gt;</code>")
		return err
	}
	if isURL(src) {
		fetched, err := fetchSource(ctx, src)
		if err != nil {
			return fmt.Errorf("fetch module source: %w", err)
		}
		src = fetched
	}
	name, err := m.Host().LoadSource(ctx, []byte(src), module.OriginString, true)
	if err != nil {
		return err
	}
	_, err = telegram.Answer(ctx, m.Client(), msg,
		fmt.Sprintf("✅ Module <b>%s</b> loaded", html.EscapeString(name)))
	return err
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// maxFetchSize caps a fetched manifest; anything larger is not a module
// source.
const maxFetchSize = 1 << 20

func fetchSource(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (m *Manager) unloadMod(ctx context.Context, msg *telegram.Message, args string) error {
	name := strings.TrimSpace(args)
	if name == "" {
		_, err := telegram.Answer(ctx, m.Client(), msg, "Usage: <code>unloadmod &lt;name&gt;</code>")
		return err
	}
	removed, err := m.Host().Unload(ctx, name)
	if err != nil {
		return err
	}
	if removed == "" {
		_, err = telegram.Answer(ctx, m.Client(), msg,
			fmt.Sprintf("Module <b>%s</b> is not loaded", html.EscapeString(name)))
		return err
	}
	_, err = telegram.Answer(ctx, m.Client(), msg,
		fmt.Sprintf("🗑 Module <b>%s</b> unloaded", html.EscapeString(removed)))
	return err
}

func (m *Manager) addPrefix(ctx context.Context, msg *telegram.Message, args string) error {
	prefix := strings.TrimSpace(args)
	if prefix == "" || strings.ContainsAny(prefix, " \t\n") {
		_, err := telegram.Answer(ctx, m.Client(), msg, "Usage: <code>addprefix &lt;prefix&gt;</code>")
		return err
	}
	prefixes := m.Store().GetStrings(storeNamespace, prefixKey, []string{"."})
	for _, p := range prefixes {
		if p == prefix {
			_, err := telegram.Answer(ctx, m.Client(), msg,
				fmt.Sprintf("Prefix <code>%s</code> is already active", html.EscapeString(prefix)))
			return err
		}
	}
	prefixes = append(prefixes, prefix)
	if err := m.Store().Set(storeNamespace, prefixKey, prefixes); err != nil {
		return err
	}
	_, err := telegram.Answer(ctx, m.Client(), msg,
		fmt.Sprintf("✅ Prefix <code>%s</code> added", html.EscapeString(prefix)))
	return err
}

func (m *Manager) delPrefix(ctx context.Context, msg *telegram.Message, args string) error {
	prefix := strings.TrimSpace(args)
	prefixes := m.Store().GetStrings(storeNamespace, prefixKey, []string{"."})
	kept := prefixes[:0]
	for _, p := range prefixes {
		if p != prefix {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(prefixes) {
		_, err := telegram.Answer(ctx, m.Client(), msg,
			fmt.Sprintf("Prefix <code>%s</code> is not active", html.EscapeString(prefix)))
		return err
	}
	// The last prefix cannot be removed or commands become unreachable.
	if len(kept) == 0 {
		kept = []string{"."}
	}
	if err := m.Store().Set(storeNamespace, prefixKey, kept); err != nil {
		return err
	}
	_, err := telegram.Answer(ctx, m.Client(), msg,
		fmt.Sprintf("🗑 Prefix <code>%s</code> removed", html.EscapeString(prefix)))
	return err
}

func (m *Manager) setConfig(ctx context.Context, msg *telegram.Message, args string) error {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 3)
	if len(parts) < 3 {
		_, err := telegram.Answer(ctx, m.Client(), msg,
			"Usage: <code>setconfig &lt;module&gt; &lt;field&gt; &lt;value&gt;</code>")
		return err
	}
	target, ok := m.Host().Lookup(parts[0])
	if !ok {
		_, err := telegram.Answer(ctx, m.Client(), msg,
			fmt.Sprintf("Module <b>%s</b> is not loaded", html.EscapeString(parts[0])))
		return err
	}
	if err := target.SetConfigValue(parts[1], parts[2]); err != nil {
		return err
	}
	_, err := telegram.Answer(ctx, m.Client(), msg,
		fmt.Sprintf("✅ <b>%s</b>.<code>%s</code> = <code>%s</code>",
			html.EscapeString(target.Name()), html.EscapeString(parts[1]), html.EscapeString(parts[2])))
	return err
}

func (m *Manager) getConfig(ctx context.Context, msg *telegram.Message, args string) error {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		_, err := telegram.Answer(ctx, m.Client(), msg,
			"Usage: <code>getconfig &lt;module&gt; [field]</code>")
		return err
	}
	target, ok := m.Host().Lookup(parts[0])
	if !ok {
		_, err := telegram.Answer(ctx, m.Client(), msg,
			fmt.Sprintf("Module <b>%s</b> is not loaded", html.EscapeString(parts[0])))
		return err
	}

	if len(parts) > 1 {
		value, ok := target.ConfigValue(parts[1])
		if !ok {
			_, err := telegram.Answer(ctx, m.Client(), msg,
				fmt.Sprintf("No config field <code>%s</code>", html.EscapeString(parts[1])))
			return err
		}
		_, err := telegram.Answer(ctx, m.Client(), msg,
			fmt.Sprintf("<b>%s</b>.<code>%s</code> = <code>%s</code>",
				html.EscapeString(target.Name()), html.EscapeString(parts[1]), html.EscapeString(value)))
		return err
	}

	fields := target.ConfigFields()
	if len(fields) == 0 {
		_, err := telegram.Answer(ctx, m.Client(), msg,
			fmt.Sprintf("Module <b>%s</b> has no config", html.EscapeString(target.Name())))
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚙️ <b>%s</b> config:\n", html.EscapeString(target.Name()))
	for _, f := range fields {
		fmt.Fprintf(&b, "• <code>%s</code> (%s) = <code>%s</code>",
			html.EscapeString(f.Name), f.Type, html.EscapeString(f.Value))
		if f.Description != "" {
			fmt.Fprintf(&b, " — %s", html.EscapeString(f.Description))
		}
		b.WriteString("\n")
	}
	_, err := telegram.Answer(ctx, m.Client(), msg, b.String())
	return err
}

func (m *Manager) restart(ctx context.Context, msg *telegram.Message, args string) error {
	sent, err := telegram.Answer(ctx, m.Client(), msg, "🔄 Restarting...")
	if err != nil {
		return err
	}
	info := restartInfo{ChatID: sent.ChatID, MessageID: sent.ID, StartedAt: time.Now()}
	if err := m.Store().Set(storeNamespace, restartKey, info); err != nil {
		return err
	}
	return m.execRestart()
}

func (m *Manager) stop(ctx context.Context, msg *telegram.Message, args string) error {
	if _, err := telegram.Answer(ctx, m.Client(), msg, "👋 Shutting down"); err != nil {
		return err
	}
	return m.signalStop()
}
