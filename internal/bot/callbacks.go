package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/session"
)

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		b.answer(q.ID, "")
		return
	}
	c := callback{
		id:        q.ID,
		actor:     q.From.ID,
		chatID:    q.Message.Chat.ID,
		messageID: q.Message.MessageID,
	}

	action, arg := parseCallback(q.Data)
	if action == actBack {
		b.handleBack(ctx, c, arg)
		return
	}

	id, ok := parseID(arg)
	if !ok {
		b.log.Warn("malformed callback data", "data", q.Data, "user_id", c.actor)
		b.answer(c.id, b.msgs.NotFound)
		return
	}

	switch action {
	case actMyReport:
		b.openReport(ctx, c, id, false)
	case actReport:
		b.openReport(ctx, c, id, true)
	case actEdit:
		b.startEditReport(ctx, c, id)
	case actDelete:
		b.deleteReport(ctx, c, id)
	case actHistory:
		b.showHistory(ctx, c, id)
	case actUser:
		b.openUser(ctx, c, id)
	case actMyTask:
		b.openTask(ctx, c, id)
	case actEditTask:
		b.startEditTask(ctx, c, id)
	case actToggleTask:
		b.toggleTask(ctx, c, id)
	case actDeleteTask:
		b.deleteTask(ctx, c, id)
	default:
		b.log.Warn("unknown callback action", "data", q.Data, "user_id", c.actor)
		b.answer(c.id, "")
	}
}

// callback identifies the inline keyboard message a button was pressed on
type callback struct {
	id        string
	actor     int64
	chatID    int64
	messageID int
}

func (b *Bot) handleBack(ctx context.Context, c callback, target string) {
	switch target {
	case backMyReports:
		b.showMyReports(ctx, c.actor, c.chatID, c.messageID)
	case backMyTasks:
		b.showMyTasks(ctx, c.actor, c.chatID, c.messageID)
	case backUsers:
		b.showUsers(ctx, c.actor, c.chatID, c.messageID)
	}
	b.answer(c.id, "")
}

// openReport shows one report with its actions. asAdmin selects the
// administrator layout, which names the author and leads back to their list.
func (b *Bot) openReport(ctx context.Context, c callback, id int64, asAdmin bool) {
	r, err := b.svc.Report(ctx, c.actor, id)
	if err != nil {
		b.answer(c.id, b.failure(err, "open report", "report_id", id, "user_id", c.actor))
		return
	}

	text, kb := b.renderReport(ctx, r, asAdmin)
	b.edit(c.chatID, c.messageID, text, &kb)
	b.answer(c.id, "")
}

func (b *Bot) renderReport(ctx context.Context, r *models.Report, asAdmin bool) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	if asAdmin {
		name := models.UserRef{ID: r.UserID}.DisplayName()
		if u, err := b.svc.User(ctx, r.UserID); err == nil {
			name = models.UserRef{ID: u.ID, FirstName: u.FirstName}.DisplayName()
		}
		fmt.Fprintf(&sb, b.msgs.AdminReportHeader, html.EscapeString(name), b.date(r.ReportDate))
	} else {
		fmt.Fprintf(&sb, b.msgs.ReportHeader, b.date(r.ReportDate))
	}
	if r.EditedAt != nil {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, b.msgs.EditedAt, b.dateTime(*r.EditedAt))
	}
	sb.WriteString("\n\n")
	sb.WriteString(html.EscapeString(fitBody(r.Text, sb.String())))

	if asAdmin {
		return sb.String(), b.reportActionsKeyboard(r.ID, callbackData(actUser, r.UserID), b.msgs.Inline.BackToReports)
	}
	return sb.String(), b.reportActionsKeyboard(r.ID, callbackData(actBack, backMyReports), b.msgs.Inline.BackToList)
}

func (b *Bot) currentText(text string) string {
	return fmt.Sprintf(b.msgs.CurrentText, fitBody(text, fmt.Sprintf(b.msgs.CurrentText, "")))
}

func (b *Bot) startEditReport(ctx context.Context, c callback, id int64) {
	ok, err := b.svc.Policy().CanEditReport(ctx, c.actor, id)
	if err != nil {
		b.answer(c.id, b.failure(err, "authorize edit", "report_id", id, "user_id", c.actor))
		return
	}
	if !ok {
		b.answer(c.id, b.msgs.Denied)
		return
	}
	r, err := b.svc.Report(ctx, c.actor, id)
	if err != nil {
		b.answer(c.id, b.failure(err, "open report", "report_id", id, "user_id", c.actor))
		return
	}

	prompt, sent := b.prompt(c.chatID, b.msgs.AskEditReport, session.Pending{Kind: session.EditReport, TargetID: id})
	if sent {
		current := tgbotapi.NewMessage(c.chatID, b.currentText(r.Text))
		current.ReplyToMessageID = prompt.MessageID
		b.send(current)
	}
	b.answer(c.id, "")
}

func (b *Bot) deleteReport(ctx context.Context, c callback, id int64) {
	r, err := b.svc.Report(ctx, c.actor, id)
	if err == nil {
		err = b.svc.DeleteReport(ctx, c.actor, id)
	}
	if err != nil {
		b.answer(c.id, b.failure(err, "delete report", "report_id", id, "user_id", c.actor))
		return
	}
	b.answer(c.id, b.msgs.ReportDeleted)

	if r.UserID == c.actor {
		b.showMyReports(ctx, c.actor, c.chatID, c.messageID)
		return
	}
	b.showUserReports(ctx, c, r.UserID)
}

func (b *Bot) showHistory(ctx context.Context, c callback, id int64) {
	history, err := b.svc.ReportHistory(ctx, c.actor, id)
	if err != nil {
		b.answer(c.id, b.failure(err, "report history", "report_id", id, "user_id", c.actor))
		return
	}

	back := callbackData(actMyReport, id)
	r, err := b.svc.Report(ctx, c.actor, id)
	if err == nil && r.UserID != c.actor {
		back = callbackData(actReport, id)
	}
	kb := singleButton(b.msgs.Inline.BackToReport, back)

	if len(history) == 0 {
		b.edit(c.chatID, c.messageID, b.msgs.NoHistory, &kb)
		b.answer(c.id, "")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, b.msgs.HistoryHeader, b.date(history[0].ReportDate))
	// The latest versions matter most; a message has limited room
	start := 0
	if len(history) > listLimit {
		start = len(history) - listLimit
	}
	for i := start; i < len(history); i++ {
		h := history[i]
		entry := "\n\n" + fmt.Sprintf(b.msgs.HistoryEntry, i+1, b.dateTime(h.ArchivedAt)) + "\n"
		if utf16Len(sb.String())+utf16Len(entry)+1 >= maxMessageLen {
			break
		}
		sb.WriteString(entry)
		sb.WriteString(html.EscapeString(fitBody(h.Text, sb.String())))
	}
	b.edit(c.chatID, c.messageID, sb.String(), &kb)
	b.answer(c.id, "")
}

func (b *Bot) openUser(ctx context.Context, c callback, userID int64) {
	b.showUserReports(ctx, c, userID)
	b.answer(c.id, "")
}

func (b *Bot) showUserReports(ctx context.Context, c callback, userID int64) {
	reports, err := b.svc.ReportsForUser(ctx, c.actor, userID)
	if err != nil {
		b.edit(c.chatID, c.messageID, b.failure(err, "list user reports", "user_id", userID, "actor_id", c.actor), nil)
		return
	}
	if len(reports) == 0 {
		kb := singleButton(b.msgs.Inline.BackToUsers, callbackData(actBack, backUsers))
		b.edit(c.chatID, c.messageID, b.msgs.NoReports, &kb)
		return
	}

	name := models.UserRef{ID: userID}.DisplayName()
	if u, err := b.svc.User(ctx, userID); err == nil {
		name = models.UserRef{ID: u.ID, FirstName: u.FirstName}.DisplayName()
	}
	kb := b.userReportsKeyboard(reports)
	b.edit(c.chatID, c.messageID, fmt.Sprintf(b.msgs.ChooseUserReport, html.EscapeString(name)), &kb)
}

func (b *Bot) openTask(ctx context.Context, c callback, id int64) {
	t, err := b.svc.Task(ctx, c.actor, id)
	if err != nil {
		b.answer(c.id, b.failure(err, "open task", "task_id", id, "user_id", c.actor))
		return
	}
	b.renderTask(c, t)
	b.answer(c.id, "")
}

func (b *Bot) renderTask(c callback, t *models.Task) {
	text := fmt.Sprintf(b.msgs.TaskHeader, b.msgs.status(t.Completed), b.date(t.TaskDate)) +
		"\n\n" + html.EscapeString(t.Text)
	kb := b.taskActionsKeyboard(t.ID)
	b.edit(c.chatID, c.messageID, text, &kb)
}

func (b *Bot) startEditTask(ctx context.Context, c callback, id int64) {
	ok, err := b.svc.Policy().CanEditTask(ctx, c.actor, id)
	if err != nil {
		b.answer(c.id, b.failure(err, "authorize edit", "task_id", id, "user_id", c.actor))
		return
	}
	if !ok {
		b.answer(c.id, b.msgs.Denied)
		return
	}
	t, err := b.svc.Task(ctx, c.actor, id)
	if err != nil {
		b.answer(c.id, b.failure(err, "open task", "task_id", id, "user_id", c.actor))
		return
	}
	prompt, sent := b.prompt(c.chatID, b.msgs.AskEditTask, session.Pending{Kind: session.EditTask, TargetID: id})
	if sent {
		current := tgbotapi.NewMessage(c.chatID, b.currentText(t.Text))
		current.ReplyToMessageID = prompt.MessageID
		b.send(current)
	}
	b.answer(c.id, "")
}

func (b *Bot) toggleTask(ctx context.Context, c callback, id int64) {
	completed, err := b.svc.ToggleTask(ctx, c.actor, id)
	if err != nil {
		b.answer(c.id, b.failure(err, "toggle task", "task_id", id, "user_id", c.actor))
		return
	}
	if t, err := b.svc.Task(ctx, c.actor, id); err == nil {
		b.renderTask(c, t)
	}
	b.answer(c.id, fmt.Sprintf(b.msgs.TaskToggled, b.msgs.status(completed)))
}

func (b *Bot) deleteTask(ctx context.Context, c callback, id int64) {
	if err := b.svc.DeleteTask(ctx, c.actor, id); err != nil {
		b.answer(c.id, b.failure(err, "delete task", "task_id", id, "user_id", c.actor))
		return
	}
	b.answer(c.id, b.msgs.TaskDeleted)
	b.showMyTasks(ctx, c.actor, c.chatID, c.messageID)
}
