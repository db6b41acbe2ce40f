package telegram

import "context"

// Answer sends text in response to m: self-originated messages are edited in
// place, anything else gets a reply. This is the single response primitive
// handlers use, so a command invoked as your own message mutates into its
// result instead of stacking a second message.
func Answer(ctx context.Context, c Client, m *Message, text string) (*Message, error) {
	opts := &SendOptions{ParseMode: ParseModeHTML}
	if m.Outgoing {
		return c.EditMessage(ctx, m.ChatID, m.ID, text, opts)
	}
	opts.ReplyToID = m.ID
	return c.SendMessage(ctx, m.ChatID, text, opts)
}
