package inline

import (
	"context"
	"runtime/debug"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oolong-ub/oolong/internal/ctxlog"
	"github.com/oolong-ub/oolong/internal/module"
)

// handleUpdate classifies one bot update and routes it. Every branch is
// isolated: a handler failure is logged and never stops the polling loop.
func (d *Dispatcher) handleUpdate(ctx context.Context, u tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("inline handler panicked",
				"panic", r, "stack", string(debug.Stack()))
		}
	}()

	switch {
	case u.InlineQuery != nil:
		d.handleInlineQuery(ctx, u.InlineQuery)
	case u.CallbackQuery != nil:
		d.handleCallbackQuery(ctx, u.CallbackQuery)
	case u.ChosenInlineResult != nil:
		d.handleChosenResult(ctx, u.ChosenInlineResult)
	case u.Message != nil:
		d.handleBotMessage(ctx, u.Message)
	}
}

// isOwner is the default filter on every bot-side entry point: only the
// bound account may drive the inline surface.
func (d *Dispatcher) isOwner(from *tgbotapi.User) bool {
	return from != nil && from.ID == d.opts.Client.Me().ID
}

// handleInlineQuery answers a query whose text is either an active form id
// or a registered inline handler name followed by arguments.
func (d *Dispatcher) handleInlineQuery(ctx context.Context, q *tgbotapi.InlineQuery) {
	log := ctxlog.FromContext(ctx)

	if f, ok := d.getForm(strings.TrimSpace(q.Query)); ok {
		if !d.isOwner(q.From) {
			return
		}
		d.answerInline(ctx, q.ID, []module.Form{f.spec})
		return
	}

	name, args := splitQuery(q.Query)
	entry, ok := d.opts.Registry.InlineHandler(name)
	if !ok {
		return
	}
	h := entry.Handler
	if h.Filter != nil {
		if !h.Filter(q) {
			return
		}
	} else if !d.isOwner(q.From) {
		return
	}

	forms, err := h.Run(ctx, q, args)
	if err != nil {
		log.Error("inline handler failed", "handler", name, "module", entry.Module.Name(), "error", err)
		return
	}
	d.answerInline(ctx, q.ID, forms)
}

// handleCallbackQuery routes button presses in three stages: synthetic form
// callbacks first, then the handler whose name equals the callback data,
// then a broadcast to every remaining handler whose filter accepts the
// query. The named stage short-circuits only when its filter passes.
func (d *Dispatcher) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	log := ctxlog.FromContext(ctx)

	if b, ok := d.callback(cq.Data); ok {
		if !d.isOwner(cq.From) {
			return
		}
		if err := b.fn(ctx, cq, b.args...); err != nil {
			log.Error("form callback failed", "error", err)
		}
		d.ackCallback(ctx, cq.ID)
		return
	}

	handlers := d.opts.Registry.CallbackHandlers()

	for _, entry := range handlers {
		h := entry.Handler
		if !strings.EqualFold(h.Name, cq.Data) {
			continue
		}
		if !d.allowsCallback(h, cq) {
			break
		}
		if err := h.Run(ctx, cq); err != nil {
			log.Error("callback handler failed",
				"handler", h.Name, "module", entry.Module.Name(), "error", err)
		}
		d.ackCallback(ctx, cq.ID)
		return
	}

	acked := false
	for _, entry := range handlers {
		h := entry.Handler
		if !d.allowsCallback(h, cq) {
			continue
		}
		if err := h.Run(ctx, cq); err != nil {
			log.Error("callback handler failed",
				"handler", h.Name, "module", entry.Module.Name(), "error", err)
		}
		if !acked {
			d.ackCallback(ctx, cq.ID)
			acked = true
		}
	}
}

// allowsCallback applies a callback handler's filter, falling back to the
// owner-only rule when none is set.
func (d *Dispatcher) allowsCallback(h module.CallbackHandler, cq *tgbotapi.CallbackQuery) bool {
	if h.Filter != nil {
		return h.Filter(cq)
	}
	return d.isOwner(cq.From)
}

// handleChosenResult retires the form backing a delivered inline result.
func (d *Dispatcher) handleChosenResult(ctx context.Context, r *tgbotapi.ChosenInlineResult) {
	if _, ok := d.popForm(strings.TrimSpace(r.Query)); ok {
		ctxlog.FromContext(ctx).Debug("form delivered", "result_id", r.ResultID)
	}
}

// handleBotMessage feeds the secondary message stream to registered
// message handlers, each isolated.
func (d *Dispatcher) handleBotMessage(ctx context.Context, m *tgbotapi.Message) {
	log := ctxlog.FromContext(ctx)
	for _, entry := range d.opts.Registry.MessageHandlers() {
		h := entry.Handler
		if h.Filter != nil {
			if !h.Filter(m) {
				continue
			}
		} else if !d.isOwner(m.From) {
			continue
		}
		if err := h.Run(ctx, m); err != nil {
			log.Error("message handler failed", "module", entry.Module.Name(), "error", err)
		}
	}
}

func (d *Dispatcher) ackCallback(ctx context.Context, id string) {
	d.mu.Lock()
	bot := d.bot
	d.mu.Unlock()
	if bot == nil {
		return
	}
	if _, err := bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		ctxlog.FromContext(ctx).Debug("callback ack failed", "error", err)
	}
}

// splitQuery separates an inline query into handler name and argument text.
func splitQuery(query string) (name, args string) {
	query = strings.TrimSpace(query)
	if i := strings.IndexFunc(query, unicode.IsSpace); i >= 0 {
		return strings.ToLower(query[:i]), strings.TrimSpace(query[i:])
	}
	return strings.ToLower(query), ""
}
