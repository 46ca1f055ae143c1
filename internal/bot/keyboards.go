package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tgienger/reportbot/internal/models"
)

// listLimit caps how many entries an inline list shows
const listLimit = 10

// Callback actions. Callback data is "<action>_<argument>".
const (
	actMyReport   = "myreport"
	actEdit       = "edit"
	actDelete     = "delete"
	actHistory    = "history"
	actUser       = "user"
	actReport     = "report"
	actMyTask     = "mytask"
	actEditTask   = "edittask"
	actToggleTask = "toggletask"
	actDeleteTask = "deletetask"
	actBack       = "back"

	backMyReports = "myreports"
	backUsers     = "users"
	backMyTasks   = "mytasks"
)

func callbackData(action string, arg any) string {
	return fmt.Sprintf("%s_%v", action, arg)
}

// parseCallback splits callback data into its action and argument
func parseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, "_")
	return action, arg
}

func parseID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(arg, 10, 64)
	return id, err == nil && id > 0
}

func (b *Bot) mainKeyboard(admin bool) tgbotapi.ReplyKeyboardMarkup {
	btn := b.msgs.Buttons
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btn.SubmitReport), tgbotapi.NewKeyboardButton(btn.MyReports)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btn.AddPlan), tgbotapi.NewKeyboardButton(btn.MyPlans)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btn.Rules)),
	}
	if admin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btn.ViewReports)))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func (b *Bot) myReportsKeyboard(reports []models.Report) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range head(reports) {
		label := b.date(r.ReportDate)
		if r.Edited() {
			label += " ✏️"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(actMyReport, r.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// reportActionsKeyboard is shown under a single report. back is the callback
// data of the list the report was opened from.
func (b *Bot) reportActionsKeyboard(reportID int64, back, backLabel string) tgbotapi.InlineKeyboardMarkup {
	in := b.msgs.Inline
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(in.Edit, callbackData(actEdit, reportID)),
			tgbotapi.NewInlineKeyboardButtonData(in.Delete, callbackData(actDelete, reportID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(in.History, callbackData(actHistory, reportID)),
			tgbotapi.NewInlineKeyboardButtonData(backLabel, back),
		),
	)
}

func (b *Bot) usersKeyboard(users []models.UserRef) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, u := range users {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(u.DisplayName(), callbackData(actUser, u.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) userReportsKeyboard(reports []models.Report) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range head(reports) {
		label := b.date(r.ReportDate)
		if r.Edited() {
			label += " ✏️"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(actReport, r.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.msgs.Inline.BackToUsers, callbackData(actBack, backUsers)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) myTasksKeyboard(tasks []models.Task) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, t := range head(tasks) {
		label := fmt.Sprintf("%s %s %s", b.msgs.status(t.Completed), b.date(t.TaskDate), truncate(t.Text, 24))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(actMyTask, t.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) taskActionsKeyboard(taskID int64) tgbotapi.InlineKeyboardMarkup {
	in := b.msgs.Inline
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(in.Edit, callbackData(actEditTask, taskID)),
			tgbotapi.NewInlineKeyboardButtonData(in.Toggle, callbackData(actToggleTask, taskID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(in.Delete, callbackData(actDeleteTask, taskID)),
			tgbotapi.NewInlineKeyboardButtonData(in.BackToList, callbackData(actBack, backMyTasks)),
		),
	)
}

func singleButton(label, data string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(label, data),
	))
}

func head[T any](items []T) []T {
	if len(items) > listLimit {
		return items[:listLimit]
	}
	return items
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
