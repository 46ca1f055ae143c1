// Package bot is the Telegram front end: reply menus, inline keyboards and
// the capture of free-text answers to prompts.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf16"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/service"
	"github.com/tgienger/reportbot/internal/session"
)

// Sender is the part of the Bot API the handlers use. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Options tune presentation
type Options struct {
	Messages *Messages
	Location *time.Location // dates are shown in this timezone
	Sessions *session.Store
	Deadline string // HH:MM quoted in the rules, in Location
}

// Bot routes Telegram updates to the service
type Bot struct {
	api      Sender
	svc      *service.Service
	msgs     *Messages
	sessions *session.Store
	loc      *time.Location
	deadline string
	log      *slog.Logger
}

// New creates a bot. Zero options take defaults.
func New(api Sender, svc *service.Service, log *slog.Logger, opts Options) *Bot {
	if opts.Messages == nil {
		opts.Messages = DefaultMessages()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewStore(session.DefaultTTL)
	}
	if opts.Deadline == "" {
		opts.Deadline = "18:00"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bot{
		api:      api,
		svc:      svc,
		msgs:     opts.Messages,
		sessions: opts.Sessions,
		loc:      opts.Location,
		deadline: opts.Deadline,
		log:      log.With("component", "bot"),
	}
}

// Connect authorizes against the Bot API, retrying transient failures with
// exponential backoff until ctx is done. An invalid token fails immediately.
func Connect(ctx context.Context, token string, debug bool, log *slog.Logger) (*tgbotapi.BotAPI, error) {
	var api *tgbotapi.BotAPI
	op := func() error {
		var err error
		api, err = tgbotapi.NewBotAPI(token)
		if err == nil {
			return nil
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 401 || apiErr.Code == 404) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("telegram connection failed, retrying", "error", err, "retry_in", wait)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, errors.Wrap(err, "connect to telegram")
	}

	api.Debug = debug
	log.Info("bot authorized", "username", api.Self.UserName)
	return api, nil
}

// Poll receives updates until ctx is cancelled and handles them one at a time
func (b *Bot) Poll(ctx context.Context, api *tgbotapi.BotAPI, timeout int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()

	b.log.Info("bot is running")
	return b.Serve(ctx, updates)
}

// Serve handles updates from the channel until it closes or ctx is cancelled
func (b *Bot) Serve(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single update. A panic in a handler is logged and
// does not stop the loop.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panicked", "update_id", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// Notify sends a plain message to a user. The reminder scheduler delivers through it.
func (b *Bot) Notify(_ context.Context, userID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

// ReminderText renders the daily reminder for a user
func (b *Bot) ReminderText(u models.UserRef, at, timezone string) string {
	return fmt.Sprintf(b.msgs.Reminder, u.DisplayName(), at, timezone, b.msgs.Buttons.SubmitReport)
}

// rules renders the rules with the configured deadline
func (b *Bot) rules() string {
	return fmt.Sprintf(b.msgs.Rules, b.deadline, b.loc.String())
}

// maxMessageLen is the Bot API limit on message text, in UTF-16 code units
// after entity parsing
const maxMessageLen = 4096

// fitBody cuts body so that it fits into one message next to frame, the rest
// of the text. Cut before HTML escaping so no entity is split; frame may
// contain markup, which only makes the estimate safer.
func fitBody(body, frame string) string {
	room := maxMessageLen - utf16Len(frame)
	if utf16Len(body) <= room {
		return body
	}
	if room <= 1 {
		return ""
	}
	room-- // the ellipsis
	n := 0
	for i, r := range body {
		w := utf16.RuneLen(r)
		if n+w > room {
			return body[:i] + "…"
		}
		n += w
	}
	return body
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func (b *Bot) date(t time.Time) string {
	return t.In(b.loc).Format("02.01.2006")
}

func (b *Bot) dateTime(t time.Time) string {
	return t.In(b.loc).Format("02.01.2006 15:04")
}

// send delivers a message and logs failures; handlers have no caller to report to
func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, bool) {
	msg, err := b.api.Send(c)
	if err != nil {
		b.log.Error("failed to send message", "error", err)
		return msg, false
	}
	return msg, true
}

func (b *Bot) reply(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	b.send(msg)
}

// edit replaces the text and keyboard of a message the bot sent earlier
func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	var cfg tgbotapi.EditMessageTextConfig
	if markup != nil && len(markup.InlineKeyboard) > 0 {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	cfg.ParseMode = tgbotapi.ModeHTML
	b.send(cfg)
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Warn("failed to answer callback", "error", err)
	}
}

// failure maps a service error to the text shown to the user. Unexpected
// errors are logged.
func (b *Bot) failure(err error, op string, attrs ...any) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return b.msgs.NotFound
	case errors.Is(err, service.ErrPermissionDenied):
		return b.msgs.Denied
	case errors.Is(err, service.ErrEmptyText):
		return b.msgs.EmptyText
	}
	b.log.Error(op+" failed", append(attrs, "error", err)...)
	return b.msgs.Failed
}
