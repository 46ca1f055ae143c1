package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/service"
	"github.com/tgienger/reportbot/internal/ui/keys"
	"github.com/tgienger/reportbot/internal/ui/styles"
)

func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// ReportListView shows one user's reports, newest first, and lets an admin
// read, edit and delete them
type ReportListView struct {
	svc     *service.Service
	actor   int64
	user    models.UserRef
	loc     *time.Location
	styles  *styles.Styles
	keys    keys.KeyMap
	width   int
	height  int
	loaded  bool
	reports []models.Report
	cursor  int
	scrollY int

	// Status line under the list
	status    string
	statusErr bool

	// View mode; history is loaded on demand
	viewing     bool
	showHistory bool
	history     []models.ReportHistory

	// Edit mode
	editing      bool
	editTargetID int64
	editText     textarea.Model

	// Delete confirmation
	confirmingDelete bool
	deleteTargetID   int64

	showHelpPopup bool
}

func NewReportListView(svc *service.Service, actor int64, user models.UserRef, loc *time.Location) *ReportListView {
	if loc == nil {
		loc = time.Local
	}

	editText := textarea.New()
	editText.Placeholder = "Report text"
	editText.CharLimit = 4096
	editText.SetWidth(50)
	editText.SetHeight(8)
	editText.ShowLineNumbers = false

	return &ReportListView{
		svc:      svc,
		actor:    actor,
		user:     user,
		loc:      loc,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		editText: editText,
	}
}

// BackToUsers signals to go back to the user list
type BackToUsers struct{}

type reportsLoadedMsg struct {
	reports []models.Report
}

type historyLoadedMsg struct {
	reportID int64
	history  []models.ReportHistory
}

type reportSavedMsg struct {
	report *models.Report
}

type reportDeletedMsg struct {
	id int64
}

type errMsg struct {
	err error
}

func (v *ReportListView) Init() tea.Cmd {
	return v.loadReports
}

func (v *ReportListView) loadReports() tea.Msg {
	reports, err := v.svc.ReportsForUser(context.Background(), v.actor, v.user.ID)
	if err != nil {
		return errMsg{err: err}
	}
	return reportsLoadedMsg{reports: reports}
}

func (v *ReportListView) loadHistory(id int64) tea.Cmd {
	return func() tea.Msg {
		history, err := v.svc.ReportHistory(context.Background(), v.actor, id)
		if err != nil {
			return errMsg{err: err}
		}
		return historyLoadedMsg{reportID: id, history: history}
	}
}

func (v *ReportListView) saveReport() tea.Cmd {
	id, text := v.editTargetID, v.editText.Value()
	return func() tea.Msg {
		report, err := v.svc.EditReport(context.Background(), v.actor, id, text)
		if err != nil {
			return errMsg{err: err}
		}
		return reportSavedMsg{report: report}
	}
}

func (v *ReportListView) deleteReport(id int64) tea.Cmd {
	return func() tea.Msg {
		if err := v.svc.DeleteReport(context.Background(), v.actor, id); err != nil {
			return errMsg{err: err}
		}
		return reportDeletedMsg{id: id}
	}
}

func (v *ReportListView) selected() (models.Report, bool) {
	if v.cursor < 0 || v.cursor >= len(v.reports) {
		return models.Report{}, false
	}
	return v.reports[v.cursor], true
}

func (v *ReportListView) setStatus(text string, isErr bool) {
	v.status = text
	v.statusErr = isErr
}

func (v *ReportListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.editText.SetWidth(clamp(contentWidth-10, 20, 70))
		return v, nil

	case reportsLoadedMsg:
		v.reports = msg.reports
		v.loaded = true
		if v.cursor >= len(v.reports) {
			v.cursor = max(0, len(v.reports)-1)
		}
		v.ensureVisible()
		if len(v.reports) == 0 {
			v.viewing = false
		}
		return v, nil

	case historyLoadedMsg:
		if r, ok := v.selected(); ok && r.ID == msg.reportID {
			v.history = msg.history
		}
		return v, nil

	case reportSavedMsg:
		v.editing = false
		v.editText.Blur()
		v.setStatus(fmt.Sprintf("Report #%d saved", msg.report.ID), false)
		cmds := []tea.Cmd{v.loadReports}
		if v.viewing && v.showHistory {
			cmds = append(cmds, v.loadHistory(msg.report.ID))
		}
		return v, tea.Batch(cmds...)

	case reportDeletedMsg:
		v.viewing = false
		v.showHistory = false
		v.history = nil
		v.setStatus(fmt.Sprintf("Report #%d deleted", msg.id), false)
		return v, v.loadReports

	case errMsg:
		v.loaded = true
		v.setStatus(msg.err.Error(), true)
		return v, nil

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}

		if v.editing {
			return v.updateEditing(msg)
		}

		if v.viewing {
			return v.updateViewing(msg)
		}

		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *ReportListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg { return BackToUsers{} }

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.reports)-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if _, ok := v.selected(); ok {
			v.viewing = true
			v.showHistory = false
			v.history = nil
		}
		return v, nil

	case key.Matches(msg, v.keys.Edit):
		if r, ok := v.selected(); ok {
			v.startEdit(r)
			return v, textarea.Blink
		}
		return v, nil

	case key.Matches(msg, v.keys.Delete):
		if r, ok := v.selected(); ok {
			v.confirmingDelete = true
			v.deleteTargetID = r.ID
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		v.setStatus("", false)
		return v, v.loadReports

	case msg.String() == "?":
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *ReportListView) updateViewing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.viewing = false
		v.showHistory = false
		v.history = nil
		return v, nil
	case key.Matches(msg, v.keys.History):
		v.showHistory = !v.showHistory
		if r, ok := v.selected(); ok && v.showHistory {
			return v, v.loadHistory(r.ID)
		}
	case key.Matches(msg, v.keys.Edit):
		if r, ok := v.selected(); ok {
			v.startEdit(r)
			return v, textarea.Blink
		}
	case key.Matches(msg, v.keys.Delete):
		if r, ok := v.selected(); ok {
			v.confirmingDelete = true
			v.deleteTargetID = r.ID
		}
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

func (v *ReportListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.editing = false
		v.editText.Blur()
		return v, nil
	case key.Matches(msg, v.keys.Save):
		return v, v.saveReport()
	}

	var cmd tea.Cmd
	v.editText, cmd = v.editText.Update(msg)
	return v, cmd
}

func (v *ReportListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.confirmingDelete = false
		return v, v.deleteReport(v.deleteTargetID)
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *ReportListView) startEdit(r models.Report) {
	v.editing = true
	v.editTargetID = r.ID
	v.editText.SetValue(r.Text)
	v.editText.Focus()
	v.setStatus("", false)
}

func (v *ReportListView) visibleItems() int {
	// Each report is 2 lines + 1 margin
	availableHeight := max(v.height-10, 3)
	return max(availableHeight/3, 1)
}

func (v *ReportListView) ensureVisible() {
	visible := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	}
	if v.cursor >= v.scrollY+visible {
		v.scrollY = v.cursor - visible + 1
	}
	if v.scrollY < 0 {
		v.scrollY = 0
	}
}

func (v *ReportListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}

	if v.editing {
		return v.renderEditForm()
	}

	if v.viewing {
		return v.renderReportView()
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Reports · " + v.user.DisplayName()))
	b.WriteString("\n\n")
	b.WriteString(v.renderReportList())
	b.WriteString("\n")
	b.WriteString(v.renderStatus())
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *ReportListView) renderStatus() string {
	if v.status == "" {
		return ""
	}
	if v.statusErr {
		return v.styles.StatusError.Render(v.status) + "\n"
	}
	return v.styles.Status.Render(v.status) + "\n"
}

func (v *ReportListView) renderReportList() string {
	s := v.styles

	if !v.loaded {
		return s.TitleMuted.Render("Loading...")
	}
	if len(v.reports) == 0 {
		return s.TitleMuted.Render("No reports.")
	}

	var items []string
	endIdx := min(v.scrollY+v.visibleItems(), len(v.reports))
	for i := v.scrollY; i < endIdx; i++ {
		items = append(items, v.renderReportItem(v.reports[i], i == v.cursor))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *ReportListView) renderReportItem(r models.Report, selected bool) string {
	s := v.styles
	width := max(styles.ContentWidth(v.width)-4, 20)

	header := fmt.Sprintf("#%d  %s", r.ID, r.ReportDate.In(v.loc).Format("02.01.2006 15:04"))
	if r.Edited() {
		header += "  " + s.EditedBadge.Render("edited")
	}
	preview := firstLine(r.Text, width-4)

	lineStyle := s.ListItem
	if selected {
		lineStyle = s.ListSelected
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lineStyle.Width(width).Render(header),
		lineStyle.Width(width).Foreground(styles.Current.ForegroundDim).Render(preview),
	) + "\n"
}

func (v *ReportListView) renderReportView() string {
	r, ok := v.selected()
	if !ok {
		return ""
	}

	s := v.styles
	textWidth := clamp(styles.ContentWidth(v.width)-10, 20, 70)
	labelStyle := s.TitleMuted

	meta := "Submitted " + r.ReportDate.In(v.loc).Format("02.01.2006 15:04")
	if r.Edited() {
		editor := "unknown"
		if r.EditedBy != nil {
			editor = fmt.Sprint(*r.EditedBy)
		}
		meta += fmt.Sprintf(" · edited %s by %s", r.EditedAt.In(v.loc).Format("02.01.2006 15:04"), editor)
	}

	var historyContent string
	switch {
	case !v.showHistory:
		historyContent = s.TitleMuted.Render("Press h to show earlier versions")
	case len(v.history) == 0:
		historyContent = s.TitleMuted.Render("No earlier versions")
	default:
		entries := make([]string, 0, len(v.history))
		for _, h := range v.history {
			entries = append(entries, s.HistoryEntry.Width(textWidth).Render(
				lipgloss.JoinVertical(lipgloss.Left,
					s.ReportMeta.Render("archived "+h.ArchivedAt.In(v.loc).Format("02.01.2006 15:04")),
					h.Text,
				),
			))
		}
		historyContent = lipgloss.JoinVertical(lipgloss.Left, entries...)
	}

	helpText := s.Help.Render(
		fmt.Sprintf("%s edit • %s history • %s delete • %s back",
			s.HelpKey.Render("e"),
			s.HelpKey.Render("h"),
			s.HelpKey.Render("d"),
			s.HelpKey.Render("esc"),
		),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.MarginBottom(1).Render(fmt.Sprintf("Report #%d · %s", r.ID, v.user.DisplayName())),
		s.ReportMeta.Render(meta),
		"",
		s.ReportText.Width(textWidth).Render(r.Text),
		"",
		labelStyle.Render("History"),
		historyContent,
		"",
		v.renderStatus()+helpText,
	)

	padded := lipgloss.NewStyle().Padding(1, 2).Render(content)
	return styles.CenterView(padded, v.width, v.height)
}

func (v *ReportListView) renderEditForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(fmt.Sprintf("Edit Report #%d", v.editTargetID)),
		"",
		s.InputFocused.Render(v.editText.View()),
		"",
		v.renderStatus()+s.TitleMuted.Render("Ctrl+S: save • Esc: cancel"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ReportListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render(fmt.Sprintf("Delete Report #%d?", v.deleteTargetID)),
		"",
		s.TitleMuted.Render("Earlier versions stay in the history."),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *ReportListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s view • %s edit • %s del • %s refresh • %s back • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("e"),
			v.styles.HelpKey.Render("d"),
			v.styles.HelpKey.Render("r"),
			v.styles.HelpKey.Render("esc"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *ReportListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      view report",
		s.HelpKey.Render("h") + "      toggle history in report view",
		s.HelpKey.Render("e") + "      edit report",
		s.HelpKey.Render("d") + "      delete report",
		s.HelpKey.Render("r") + "      refresh",
		s.HelpKey.Render("esc") + "    back to users",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

// firstLine returns the first line of text cut to width runes
func firstLine(text string, width int) string {
	line, _, more := strings.Cut(text, "\n")
	runes := []rune(line)
	if len(runes) > width && width > 1 {
		return string(runes[:width-1]) + "…"
	}
	if more {
		return line + " …"
	}
	return line
}
