package telegram

import (
	"context"
	"fmt"
	"math/rand"

	tg "github.com/amarnathcjd/gogram/telegram"
)

// GogramConfig carries the credentials and session location for the MTProto
// client. TestMode points the client at Telegram's test data centers.
type GogramConfig struct {
	AppID       int32
	AppHash     string
	SessionFile string
	TestMode    bool
}

// Gogram adapts github.com/amarnathcjd/gogram to the Client contract.
type Gogram struct {
	c  *tg.Client
	me User
}

// NewGogram constructs the underlying client without connecting.
func NewGogram(cfg GogramConfig) (*Gogram, error) {
	client, err := tg.NewClient(tg.ClientConfig{
		AppID:    cfg.AppID,
		AppHash:  cfg.AppHash,
		Session:  cfg.SessionFile,
		TestMode: cfg.TestMode,
	})
	if err != nil {
		return nil, fmt.Errorf("gogram init: %w", err)
	}
	return &Gogram{c: client}, nil
}

// Start connects, runs the library's interactive auth flow when the session
// is not yet authorized, and caches the account identity.
func (g *Gogram) Start() error {
	if err := g.c.Start(); err != nil {
		return fmt.Errorf("gogram start: %w", err)
	}
	me, err := g.c.GetMe()
	if err != nil {
		return fmt.Errorf("gogram get me: %w", err)
	}
	g.me = User{
		ID:        me.ID,
		Username:  me.Username,
		FirstName: me.FirstName,
		Bot:       me.Bot,
	}
	return nil
}

// Idle blocks until the client disconnects.
func (g *Gogram) Idle() { g.c.Idle() }

// Stop disconnects the client.
func (g *Gogram) Stop() error { return g.c.Stop() }

// Me implements Client.
func (g *Gogram) Me() User { return g.me }

// OnMessage registers fn for every new message.
func (g *Gogram) OnMessage(fn func(m *Message)) {
	g.c.On(tg.OnMessage, func(nm *tg.NewMessage) error {
		fn(convertMessage(nm, false))
		return nil
	})
}

// OnEdited registers fn for every edited message.
func (g *Gogram) OnEdited(fn func(m *Message)) {
	g.c.On(tg.OnEdit, func(nm *tg.NewMessage) error {
		fn(convertMessage(nm, true))
		return nil
	})
}

// OnRaw registers fn for every raw protocol update.
func (g *Gogram) OnRaw(fn func(u RawUpdate)) {
	g.c.AddRawHandler(nil, func(u tg.Update, _ *tg.Client) error {
		fn(u)
		return nil
	})
}

// SendMessage implements Client.
func (g *Gogram) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	sent, err := g.c.SendMessage(chatID, text, sendOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return convertMessage(sent, false), nil
}

// EditMessage implements Client.
func (g *Gogram) EditMessage(ctx context.Context, chatID, messageID int64, text string, opts *SendOptions) (*Message, error) {
	edited, err := g.c.EditMessage(chatID, int32(messageID), text, sendOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	return convertMessage(edited, false), nil
}

// GetInlineResults implements Client.
func (g *Gogram) GetInlineResults(ctx context.Context, botUsername, query string) (*InlineResults, error) {
	res, err := g.c.InlineQuery(botUsername, &tg.InlineOptions{Query: query})
	if err != nil {
		return nil, fmt.Errorf("inline query @%s: %w", botUsername, err)
	}
	out := &InlineResults{QueryID: res.QueryID}
	for _, r := range res.Results {
		switch v := r.(type) {
		case *tg.BotInlineResultObj:
			out.ResultIDs = append(out.ResultIDs, v.ID)
		case *tg.BotInlineMediaResult:
			out.ResultIDs = append(out.ResultIDs, v.ID)
		}
	}
	return out, nil
}

// SendInlineResult implements Client.
func (g *Gogram) SendInlineResult(ctx context.Context, chatID, queryID int64, resultID string, replyToID int64) (*Message, error) {
	peer, err := g.c.ResolvePeer(chatID)
	if err != nil {
		return nil, fmt.Errorf("resolve peer %d: %w", chatID, err)
	}
	params := &tg.MessagesSendInlineBotResultParams{
		Peer:     peer,
		RandomID: rand.Int63(),
		QueryID:  queryID,
		ID:       resultID,
	}
	if replyToID != 0 {
		params.ReplyTo = &tg.InputReplyToMessage{ReplyToMsgID: int32(replyToID)}
	}
	if _, err := g.c.MessagesSendInlineBotResult(params); err != nil {
		return nil, fmt.Errorf("send inline result: %w", err)
	}
	return &Message{ChatID: chatID}, nil
}

func sendOptions(opts *SendOptions) *tg.SendOptions {
	if opts == nil {
		return &tg.SendOptions{ParseMode: ParseModeHTML}
	}
	out := &tg.SendOptions{ParseMode: opts.ParseMode}
	if opts.ReplyToID != 0 {
		out.ReplyID = int32(opts.ReplyToID)
	}
	return out
}

func convertMessage(nm *tg.NewMessage, edited bool) *Message {
	if nm == nil {
		return nil
	}
	m := &Message{
		ID:       int64(nm.ID),
		ChatID:   nm.ChatID(),
		SenderID: nm.SenderID(),
		Text:     nm.Text(),
		Edited:   edited,
	}
	if nm.Message != nil {
		m.Outgoing = nm.Message.Out
	}
	if nm.IsReply() {
		m.ReplyToID = int64(nm.ReplyToMsgID())
	}
	return m
}
