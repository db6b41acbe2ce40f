package inline

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oolong-ub/oolong/internal/ctxlog"
	"github.com/oolong-ub/oolong/internal/module"
	"github.com/oolong-ub/oolong/internal/telegram"
)

// answerInline renders the given forms as inline results and answers the
// query. The result cache time is zero so edited forms are never served
// stale.
func (d *Dispatcher) answerInline(ctx context.Context, queryID string, forms []module.Form) {
	d.mu.Lock()
	bot := d.bot
	d.mu.Unlock()
	if bot == nil || len(forms) == 0 {
		return
	}

	results := make([]any, 0, len(forms))
	for i, f := range forms {
		results = append(results, d.renderResult(strconv.Itoa(i), f))
	}

	cfg := tgbotapi.InlineConfig{
		InlineQueryID: queryID,
		Results:       results,
		CacheTime:     0,
		IsPersonal:    true,
	}
	if _, err := bot.Request(cfg); err != nil {
		ctxlog.FromContext(ctx).Error("answer inline query failed", "error", err)
	}
}

// renderResult converts one form into the bot-API result type matching its
// media field. With no media set the form renders as a plain article.
func (d *Dispatcher) renderResult(id string, f module.Form) any {
	parseMode := f.ParseMode
	if parseMode == "" {
		parseMode = telegram.ParseModeHTML
	}
	title := f.Title
	if title == "" {
		title = "oolong"
	}
	markup := d.renderMarkup(f.Markup)

	switch {
	case f.Photo != "":
		r := tgbotapi.NewInlineQueryResultPhotoWithThumb(id, f.Photo, f.Photo)
		r.Caption = f.Text
		r.ParseMode = parseMode
		r.ReplyMarkup = markup
		return r
	case f.GIF != "":
		r := tgbotapi.NewInlineQueryResultGIF(id, f.GIF)
		r.Caption = f.Text
		r.ParseMode = parseMode
		r.ReplyMarkup = markup
		return r
	case f.Video != "":
		// The bot API carries no parse_mode on video and document results;
		// their captions go out as written.
		r := tgbotapi.NewInlineQueryResultVideo(id, f.Video)
		r.Title = title
		r.Caption = f.Text
		r.ReplyMarkup = markup
		return r
	case f.Audio != "":
		r := tgbotapi.NewInlineQueryResultAudio(id, f.Audio, title)
		r.Caption = f.Text
		r.ParseMode = parseMode
		r.ReplyMarkup = markup
		return r
	case f.File != "":
		r := tgbotapi.NewInlineQueryResultDocument(id, f.File, title, "application/octet-stream")
		r.Caption = f.Text
		r.ReplyMarkup = markup
		return r
	default:
		r := tgbotapi.NewInlineQueryResultArticleHTML(id, title, f.Text)
		r.ReplyMarkup = markup
		return r
	}
}

// renderMarkup normalizes a form's button rows into an inline keyboard.
// Buttons carrying a Go callback get a synthetic callback id bound in the
// dispatcher's table; buttons without any action are dropped.
func (d *Dispatcher) renderMarkup(rows [][]module.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var line []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			switch {
			case b.URL != "":
				line = append(line, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			case b.Callback != nil:
				id := d.bindCallback(b.Callback, b.Args)
				line = append(line, tgbotapi.NewInlineKeyboardButtonData(b.Text, id))
			case b.Data != "":
				line = append(line, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		if len(line) > 0 {
			keyboard = append(keyboard, line)
		}
	}
	if len(keyboard) == 0 {
		return nil
	}
	m := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	return &m
}
