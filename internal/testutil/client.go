// Package testutil provides shared fakes for package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/oolong-ub/oolong/internal/telegram"
)

// Sent records one outgoing send or edit performed through the fake client.
type Sent struct {
	ChatID    int64
	MessageID int64
	Text      string
	Opts      telegram.SendOptions
	Edit      bool
}

// FakeClient is an in-memory telegram.Client. All fields are safe for
// concurrent use; errors can be injected per call site.
type FakeClient struct {
	mu sync.Mutex

	Self telegram.User

	SendErr   error
	EditErr   error
	InlineErr error

	// InlineAnswers maps query text to the result set GetInlineResults returns.
	InlineAnswers map[string]*telegram.InlineResults

	sent   []Sent
	nextID int64
}

var _ telegram.Client = (*FakeClient)(nil)

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Self:          telegram.User{ID: 1000, Username: "self"},
		InlineAnswers: make(map[string]*telegram.InlineResults),
	}
}

func (f *FakeClient) Me() telegram.User { return f.Self }

func (f *FakeClient) SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	var o telegram.SendOptions
	if opts != nil {
		o = *opts
	}
	f.sent = append(f.sent, Sent{ChatID: chatID, MessageID: f.nextID, Text: text, Opts: o})
	return &telegram.Message{ID: f.nextID, ChatID: chatID, SenderID: f.Self.ID, Text: text, Outgoing: true}, nil
}

func (f *FakeClient) EditMessage(ctx context.Context, chatID, messageID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	if f.EditErr != nil {
		return nil, f.EditErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var o telegram.SendOptions
	if opts != nil {
		o = *opts
	}
	f.sent = append(f.sent, Sent{ChatID: chatID, MessageID: messageID, Text: text, Opts: o, Edit: true})
	return &telegram.Message{ID: messageID, ChatID: chatID, SenderID: f.Self.ID, Text: text, Outgoing: true, Edited: true}, nil
}

func (f *FakeClient) GetInlineResults(ctx context.Context, botUsername, query string) (*telegram.InlineResults, error) {
	if f.InlineErr != nil {
		return nil, f.InlineErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.InlineAnswers[query]; ok {
		return r, nil
	}
	return &telegram.InlineResults{}, nil
}

func (f *FakeClient) SendInlineResult(ctx context.Context, chatID, queryID int64, resultID string, replyToID int64) (*telegram.Message, error) {
	if f.InlineErr != nil {
		return nil, f.InlineErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	text := fmt.Sprintf("inline:%d:%s", queryID, resultID)
	f.sent = append(f.sent, Sent{ChatID: chatID, MessageID: f.nextID, Text: text, Opts: telegram.SendOptions{ReplyToID: replyToID}})
	return &telegram.Message{ID: f.nextID, ChatID: chatID, SenderID: f.Self.ID, Text: text, Outgoing: true}, nil
}

// Sent returns a copy of everything sent or edited so far.
func (f *FakeClient) SentMessages() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sent, len(f.sent))
	copy(out, f.sent)
	return out
}

// LastSent returns the most recent send or edit, or false when none happened.
func (f *FakeClient) LastSent() (Sent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return Sent{}, false
	}
	return f.sent[len(f.sent)-1], true
}
