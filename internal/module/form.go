package module

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oolong-ub/oolong/internal/telegram"
)

// Form is an inline-rendered content spec. At most one of the media fields
// may be set; with none set the form renders as a plain article.
type Form struct {
	Text  string
	Title string

	Photo string
	GIF   string
	Video string
	File  string
	Audio string

	ParseMode string
	Markup    [][]Button
}

// CallbackFunc is a Go callback bound to a button at render time. It is
// registered under a synthetic callback id and invoked with the arguments
// captured when the button was built.
type CallbackFunc func(ctx context.Context, cq *tgbotapi.CallbackQuery, args ...string) error

// Button is one inline-keyboard button. Exactly one of URL, Data or Callback
// should be set.
type Button struct {
	Text     string
	URL      string
	Data     string
	Callback CallbackFunc
	Args     []string
}

// InlineSender is the handle modules use to render a Form into a chat via the
// secondary bot. The returned message is the one delivered into m's chat.
type InlineSender interface {
	AnswerForm(ctx context.Context, form Form, m *telegram.Message) (*telegram.Message, error)
}
