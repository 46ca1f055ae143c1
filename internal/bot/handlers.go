package bot

import (
	"context"
	"fmt"
	"html"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/service"
	"github.com/tgienger/reportbot/internal/session"
)

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || m.Chat == nil {
		return
	}
	userID, chatID := m.From.ID, m.Chat.ID

	// Everyone who writes to the bot gets reminders, not only those who sent /start
	if err := b.svc.RegisterUser(ctx, userID, m.From.FirstName, m.From.UserName); err != nil {
		b.log.Error("failed to register user", "user_id", userID, "error", err)
	}

	if m.IsCommand() {
		hadPending := b.sessions.Clear(chatID)
		switch m.Command() {
		case "start":
			b.handleStart(m)
		case "help":
			b.reply(chatID, b.msgs.Help, b.mainKeyboard(b.svc.IsAdmin(userID)))
		case "cancel":
			b.handleCancel(m, hadPending)
		default:
			b.reply(chatID, b.msgs.UseMenu, b.mainKeyboard(b.svc.IsAdmin(userID)))
		}
		return
	}

	if b.handleMenu(ctx, m) {
		return
	}

	if p, ok := b.sessions.Take(chatID); ok {
		b.handleCapture(ctx, m, p)
		return
	}

	b.reply(chatID, b.msgs.UseMenu, b.mainKeyboard(b.svc.IsAdmin(userID)))
}

// handleMenu dispatches reply keyboard buttons. Pressing one abandons any prompt.
func (b *Bot) handleMenu(ctx context.Context, m *tgbotapi.Message) bool {
	btn := b.msgs.Buttons
	userID, chatID := m.From.ID, m.Chat.ID

	switch m.Text {
	case btn.SubmitReport:
		b.sessions.Clear(chatID)
		b.prompt(chatID, b.msgs.AskReport, session.Pending{Kind: session.SubmitReport})
	case btn.MyReports:
		b.sessions.Clear(chatID)
		b.showMyReports(ctx, userID, chatID, 0)
	case btn.AddPlan:
		b.sessions.Clear(chatID)
		b.prompt(chatID, b.msgs.AskTask, session.Pending{Kind: session.SubmitTask})
	case btn.MyPlans:
		b.sessions.Clear(chatID)
		b.showMyTasks(ctx, userID, chatID, 0)
	case btn.Rules:
		b.sessions.Clear(chatID)
		b.reply(chatID, b.rules(), b.mainKeyboard(b.svc.IsAdmin(userID)))
	case btn.ViewReports:
		if !b.svc.IsAdmin(userID) {
			return false
		}
		b.sessions.Clear(chatID)
		b.showUsers(ctx, userID, chatID, 0)
	default:
		return false
	}
	return true
}

func (b *Bot) handleStart(m *tgbotapi.Message) {
	admin := b.svc.IsAdmin(m.From.ID)
	text := fmt.Sprintf(b.msgs.Start, html.EscapeString(m.From.FirstName))
	if admin {
		text = fmt.Sprintf(b.msgs.StartAdmin, html.EscapeString(m.From.FirstName))
	}
	b.reply(m.Chat.ID, text, b.mainKeyboard(admin))
}

func (b *Bot) handleCancel(m *tgbotapi.Message, hadPending bool) {
	text := b.msgs.NothingToCancel
	if hadPending {
		text = b.msgs.Cancelled
	}
	b.reply(m.Chat.ID, text, b.mainKeyboard(b.svc.IsAdmin(m.From.ID)))
}

// prompt asks for free text and remembers what the answer is for
func (b *Bot) prompt(chatID int64, text string, p session.Pending) (tgbotapi.Message, bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	sent, ok := b.send(msg)
	if !ok {
		return sent, false
	}
	p.PromptID = sent.MessageID
	b.sessions.Set(chatID, p)
	return sent, true
}

// handleCapture consumes the answer to a prompt
func (b *Bot) handleCapture(ctx context.Context, m *tgbotapi.Message, p session.Pending) {
	userID, chatID := m.From.ID, m.Chat.ID
	keyboard := b.mainKeyboard(b.svc.IsAdmin(userID))

	var (
		done   string
		report *models.Report
		err    error
	)
	switch p.Kind {
	case session.SubmitReport:
		report, err = b.svc.SubmitReport(ctx, userID, m.Text)
		done = b.msgs.ReportSaved
	case session.EditReport:
		_, err = b.svc.EditReport(ctx, userID, p.TargetID, m.Text)
		done = b.msgs.ReportUpdated
	case session.SubmitTask:
		_, err = b.svc.SubmitTask(ctx, userID, m.Text)
		done = b.msgs.TaskSaved
	case session.EditTask:
		_, err = b.svc.EditTask(ctx, userID, p.TargetID, m.Text)
		done = b.msgs.TaskUpdated
	default:
		b.log.Warn("unknown pending operation", "kind", p.Kind)
		return
	}

	if errors.Is(err, service.ErrEmptyText) {
		// Ask again; the prompt stays open
		p.CreatedAt = time.Time{}
		b.prompt(chatID, b.msgs.EmptyText, p)
		return
	}
	if err != nil {
		b.reply(chatID, b.failure(err, string(p.Kind), "user_id", userID, "target_id", p.TargetID), keyboard)
		return
	}
	b.reply(chatID, done, keyboard)

	if report != nil {
		b.notifyAdmins(ctx, m.From, report)
	}
}

// notifyAdmins forwards a new report to every administrator except its author.
// Delivery is best-effort.
func (b *Bot) notifyAdmins(ctx context.Context, from *tgbotapi.User, r *models.Report) {
	name := from.FirstName
	if u, err := b.svc.User(ctx, from.ID); err == nil {
		name = models.UserRef{ID: u.ID, FirstName: u.FirstName}.DisplayName()
	}
	frame := fmt.Sprintf(b.msgs.NewReportNotice, html.EscapeString(name), "")
	text := fmt.Sprintf(b.msgs.NewReportNotice, html.EscapeString(name), html.EscapeString(fitBody(r.Text, frame)))

	for _, adminID := range b.svc.Policy().Admins() {
		if adminID == r.UserID {
			continue
		}
		msg := tgbotapi.NewMessage(adminID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(msg); err != nil {
			b.log.Warn("failed to notify administrator", "admin_id", adminID, "report_id", r.ID, "error", err)
		}
	}
}

// showMyReports lists the user's reports. messageID > 0 edits that message
// instead of sending a new one.
func (b *Bot) showMyReports(ctx context.Context, userID, chatID int64, messageID int) {
	reports, err := b.svc.MyReports(ctx, userID)
	if err != nil {
		b.show(chatID, messageID, b.failure(err, "list reports", "user_id", userID), nil)
		return
	}
	if len(reports) == 0 {
		b.show(chatID, messageID, b.msgs.NoReports, nil)
		return
	}
	kb := b.myReportsKeyboard(reports)
	b.show(chatID, messageID, b.msgs.ChooseReport, &kb)
}

func (b *Bot) showMyTasks(ctx context.Context, userID, chatID int64, messageID int) {
	tasks, err := b.svc.MyTasks(ctx, userID)
	if err != nil {
		b.show(chatID, messageID, b.failure(err, "list tasks", "user_id", userID), nil)
		return
	}
	if len(tasks) == 0 {
		b.show(chatID, messageID, b.msgs.NoTasks, nil)
		return
	}
	kb := b.myTasksKeyboard(tasks)
	b.show(chatID, messageID, b.msgs.ChooseTask, &kb)
}

func (b *Bot) showUsers(ctx context.Context, actor, chatID int64, messageID int) {
	users, err := b.svc.UsersWithReports(ctx, actor)
	if err != nil {
		b.show(chatID, messageID, b.failure(err, "list users", "actor_id", actor), nil)
		return
	}
	if len(users) == 0 {
		b.show(chatID, messageID, b.msgs.NoUsers, nil)
		return
	}
	kb := b.usersKeyboard(users)
	b.show(chatID, messageID, b.msgs.ChooseUser, &kb)
}

// show sends a new message or edits an existing one
func (b *Bot) show(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if messageID > 0 {
		b.edit(chatID, messageID, text, markup)
		return
	}
	if markup != nil {
		b.reply(chatID, text, *markup)
		return
	}
	b.reply(chatID, text, nil)
}
