// Package inline runs the secondary bot-API surface: a parallel dispatch
// loop for inline queries, callback-query buttons and bot messages, plus the
// ephemeral form store modules render rich content through.
package inline

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"log/slog"
	"reflect"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/oolong-ub/oolong/internal/ctxlog"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/registry"
	"github.com/oolong-ub/oolong/internal/storage"
	"github.com/oolong-ub/oolong/internal/telegram"
)

const (
	storeNamespace = "oolong"
	tokenKey       = "inline_token"

	// formTTL matches the bot-API inline result cache window; a form older
	// than this can no longer be referenced by Telegram and is pruned.
	formTTL = 30 * time.Minute

	defaultRetryDelay = 10 * time.Second
)

// botAPI is the slice of tgbotapi.BotAPI the dispatcher uses, narrowed so
// tests can substitute a fake.
type botAPI interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// form is one ephemeral render record, keyed by a generated id that is never
// reused while active.
type form struct {
	spec    module.Form
	created time.Time
}

// callbackBinding is a Go callback captured from a rendered button, keyed by
// its synthetic callback id.
type callbackBinding struct {
	fn      module.CallbackFunc
	args    []string
	created time.Time
}

// Options configures the sub-dispatcher.
type Options struct {
	Client   telegram.Client
	Registry *registry.Registry
	Store    *storage.Store

	// Token is an explicit bot token taking precedence over the stored one.
	Token string

	// NewBot constructs the bot client; nil uses tgbotapi.NewBotAPI.
	NewBot func(token string) (botClient, error)

	// RetryDelay is the pause between token retries; zero means the default.
	RetryDelay time.Duration
}

// botClient couples the narrowed API surface with the bot's own identity.
type botClient interface {
	botAPI
	Username() string
}

// Dispatcher owns the bot connection, the polling task and the form store.
type Dispatcher struct {
	opts       Options
	retryDelay time.Duration

	mu        sync.Mutex
	bot       botClient
	forms     map[string]form
	callbacks map[string]callbackBinding

	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) *Dispatcher {
	if opts.NewBot == nil {
		opts.NewBot = newTgbot
	}
	delay := opts.RetryDelay
	if delay == 0 {
		delay = defaultRetryDelay
	}
	return &Dispatcher{
		opts:       opts,
		retryDelay: delay,
		forms:      make(map[string]form),
		callbacks:  make(map[string]callbackBinding),
	}
}

var _ module.InlineSender = (*Dispatcher)(nil)

// tgbot adapts *tgbotapi.BotAPI to botClient.
type tgbot struct {
	*tgbotapi.BotAPI
}

func (b *tgbot) Username() string { return b.Self.UserName }

func newTgbot(token string) (botClient, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &tgbot{BotAPI: api}, nil
}

// Start launches the token lifecycle and polling loop as a background task.
// Without any token source the inline surface stays disabled; the rest of
// the host is unaffected.
func (d *Dispatcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(runCtx)
}

// Stop cancels the polling task and waits for it to finish.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	log := ctxlog.FromContext(ctx)

	for {
		token, fromStore := d.tokenSource()
		if token == "" {
			log.Info("no bot token available, inline surface disabled")
			return
		}

		bot, err := d.opts.NewBot(token)
		if err != nil {
			// The rejected token is discarded so the next pass does not
			// replay it; a valid fallback from the other source survives.
			log.Error("bot token rejected, discarding and retrying",
				"error", err, "retry_in", d.retryDelay)
			d.discardToken(fromStore, log)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.retryDelay):
				continue
			}
		}

		// Clearing the webhook is the first authenticated call; a failure
		// here means the token does not actually work and re-enters
		// acquisition like a construction failure.
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
			log.Error("webhook clear failed, discarding token and retrying",
				"error", err, "retry_in", d.retryDelay)
			d.discardToken(fromStore, log)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.retryDelay):
			}
			continue
		}

		if err := d.storeToken(token); err != nil {
			log.Error("persist bot token failed", "error", err)
		}

		d.mu.Lock()
		d.bot = bot
		d.mu.Unlock()

		log.Info("inline surface up", "bot", bot.Username())
		d.poll(ctx, bot)
		return
	}
}

// discardToken drops the rejected token from the source it came from so the
// next acquisition pass does not replay it.
func (d *Dispatcher) discardToken(fromStore bool, log *slog.Logger) {
	if fromStore {
		if err := d.opts.Store.Pop(storeNamespace, tokenKey); err != nil {
			log.Error("discard stored token failed", "error", err)
		}
		return
	}
	d.opts.Token = ""
}

// poll consumes bot updates until the context is cancelled.
func (d *Dispatcher) poll(ctx context.Context, bot botAPI) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := bot.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			d.handleUpdate(ctx, u)
		}
	}
}

// tokenSource resolves the active bot token: an explicit configured token
// wins, otherwise the persisted one is used. Tokens rest base64-encoded.
func (d *Dispatcher) tokenSource() (token string, fromStore bool) {
	if d.opts.Token != "" {
		return d.opts.Token, false
	}
	encoded := d.opts.Store.GetString(storeNamespace, tokenKey, "")
	if encoded == "" {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (d *Dispatcher) storeToken(token string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(token))
	return d.opts.Store.Set(storeNamespace, tokenKey, encoded)
}

// AnswerForm implements module.InlineSender: stores the form under a fresh
// id, asks the bot to evaluate it as an inline query through the userbot
// account, and posts the first returned result into m's chat. Zero results
// is a fetch error, not a panic.
func (d *Dispatcher) AnswerForm(ctx context.Context, spec module.Form, m *telegram.Message) (*telegram.Message, error) {
	d.mu.Lock()
	bot := d.bot
	d.mu.Unlock()
	if bot == nil {
		return nil, fmt.Errorf("inline surface is not running")
	}

	id := d.putForm(spec)

	results, err := d.opts.Client.GetInlineResults(ctx, bot.Username(), id)
	if err != nil {
		d.popForm(id)
		return nil, fmt.Errorf("fetch inline results: %w", err)
	}
	if len(results.ResultIDs) == 0 {
		d.popForm(id)
		return nil, fmt.Errorf("bot returned no inline results for form")
	}

	sent, err := d.opts.Client.SendInlineResult(ctx, m.ChatID, results.QueryID, results.ResultIDs[0], m.ReplyToID)
	if err != nil {
		d.popForm(id)
		return nil, fmt.Errorf("send inline result: %w", err)
	}
	return sent, nil
}

// putForm stores a form under a fresh unique id and prunes expired entries.
func (d *Dispatcher) putForm(spec module.Form) string {
	id := uuid.NewString()
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	for k, f := range d.forms {
		if now.Sub(f.created) > formTTL {
			delete(d.forms, k)
		}
	}
	for k, c := range d.callbacks {
		if now.Sub(c.created) > formTTL {
			delete(d.callbacks, k)
		}
	}
	d.forms[id] = form{spec: spec, created: now}
	return id
}

func (d *Dispatcher) popForm(id string) (form, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.forms[id]
	if ok {
		delete(d.forms, id)
	}
	return f, ok
}

func (d *Dispatcher) getForm(id string) (form, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.forms[id]
	return f, ok
}

// bindCallback registers a button's Go callback under a synthetic id derived
// from the callback's identity and bound arguments. The id is stable, so
// re-rendering the same button refreshes one entry and buttons on older
// messages keep working.
func (d *Dispatcher) bindCallback(fn module.CallbackFunc, args []string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", reflect.ValueOf(fn).Pointer())
	for _, a := range args {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	id := strconv.FormatUint(h.Sum64(), 10)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[id] = callbackBinding{fn: fn, args: args, created: time.Now()}
	return id
}

func (d *Dispatcher) callback(id string) (callbackBinding, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.callbacks[id]
	return c, ok
}
