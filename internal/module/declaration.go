package module

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oolong-ub/oolong/internal/telegram"
)

// MessageFilter decides whether a command or watcher applies to a message.
// A nil filter falls back to the dispatcher's default rule: only messages
// originating from the bound account are actionable.
type MessageFilter func(m *telegram.Message) bool

// Command is one invocable entry in the command table.
type Command struct {
	// Name is the lowercase command token, unique within the module.
	Name string
	// Aliases are alternative tokens resolved to Name before lookup.
	Aliases []string
	// Doc is a short usage line shown by the help module.
	Doc string
	Filter MessageFilter
	// Run receives the triggering message and the remainder of the message
	// text after the command token.
	Run func(ctx context.Context, m *telegram.Message, args string) error
}

// Watcher runs on every message, independent of command parsing.
type Watcher struct {
	Filter MessageFilter
	Run    func(ctx context.Context, m *telegram.Message) error
}

// RawHandler runs on every raw protocol update.
type RawHandler struct {
	Filter func(u telegram.RawUpdate) bool
	Run    func(ctx context.Context, u telegram.RawUpdate) error
}

// InlineHandler answers inline queries whose first token equals Name.
// Run returns the result specs the sub-dispatcher renders and answers with.
type InlineHandler struct {
	Name   string
	Filter func(q *tgbotapi.InlineQuery) bool
	Run    func(ctx context.Context, q *tgbotapi.InlineQuery, args string) ([]Form, error)
}

// CallbackHandler answers callback queries whose data equals Name exactly.
type CallbackHandler struct {
	Name   string
	Filter func(cq *tgbotapi.CallbackQuery) bool
	Run    func(ctx context.Context, cq *tgbotapi.CallbackQuery) error
}

// MessageHandler runs on messages arriving over the secondary bot-API stream.
type MessageHandler struct {
	Filter func(m *tgbotapi.Message) bool
	Run    func(ctx context.Context, m *tgbotapi.Message) error
}

// Declaration is the explicit registration list a module returns from
// Declare. Ordering of the list fields is preserved by the registry: watchers
// run in declaration order.
type Declaration struct {
	Commands         []Command
	Watchers         []Watcher
	RawHandlers      []RawHandler
	InlineHandlers   []InlineHandler
	CallbackHandlers []CallbackHandler
	MessageHandlers  []MessageHandler
}
