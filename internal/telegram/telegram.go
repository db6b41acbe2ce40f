// Package telegram defines the contract the module host requires from the
// external Telegram client library: connect, identify self, send/edit/reply,
// inline-bot result retrieval, and raw update delivery. Wire protocol handling
// lives entirely behind this interface; the gogram adapter in this package is
// the production binding.
package telegram

import "context"

// User identifies a Telegram account.
type User struct {
	ID        int64
	Username  string
	FirstName string
	Bot       bool
}

// Message is the host-side view of an incoming or sent message.
type Message struct {
	ID        int64
	ChatID    int64
	SenderID  int64
	Text      string
	Outgoing  bool
	Edited    bool
	ReplyToID int64
}

// RawUpdate is a low-level protocol update, passed through untyped. Raw
// handlers that care about a specific update type assert it themselves.
type RawUpdate any

// SendOptions controls formatting and reply linkage for outgoing messages.
type SendOptions struct {
	ParseMode string
	ReplyToID int64
}

// InlineResults is the answer-set a bot prepared for an inline query.
type InlineResults struct {
	QueryID   int64
	ResultIDs []string
}

// Client is the narrow surface the loader, dispatcher and inline
// sub-dispatcher need from the underlying Telegram client.
type Client interface {
	// Me returns the authenticated account identity.
	Me() User

	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string, opts *SendOptions) (*Message, error)

	// GetInlineResults asks botUsername to evaluate an inline query on behalf
	// of this account.
	GetInlineResults(ctx context.Context, botUsername, query string) (*InlineResults, error)
	// SendInlineResult posts one previously fetched inline result into a chat.
	SendInlineResult(ctx context.Context, chatID, queryID int64, resultID string, replyToID int64) (*Message, error)
}

// ParseModeHTML is the default rendering mode for host-produced replies.
const ParseModeHTML = "HTML"
