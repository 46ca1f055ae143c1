package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/service"
	"github.com/tgienger/reportbot/internal/ui/keys"
	"github.com/tgienger/reportbot/internal/ui/styles"
)

type userItem struct {
	user models.UserRef
}

func (i userItem) Title() string       { return i.user.DisplayName() }
func (i userItem) Description() string { return "ID " + strconv.FormatInt(i.user.ID, 10) }
func (i userItem) FilterValue() string { return i.user.DisplayName() }

type userDelegate struct {
	styles *styles.Styles
	width  int
}

func (d userDelegate) Height() int                               { return 2 }
func (d userDelegate) Spacing() int                              { return 1 }
func (d userDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d userDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	u, ok := item.(userItem)
	if !ok {
		return
	}

	width := max(d.width-4, 20)

	titleStyle := d.styles.ListItem
	if index == m.Index() {
		titleStyle = d.styles.ListSelected
	}
	descStyle := titleStyle.Foreground(styles.Current.ForegroundDim)

	fmt.Fprintf(w, "%s\n%s",
		titleStyle.Width(width).Render(u.Title()),
		descStyle.Width(width).Render(u.Description()),
	)
}

// UserListView lists everyone who has submitted at least one report
type UserListView struct {
	svc      *service.Service
	actor    int64
	list     list.Model
	delegate *userDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int
	loaded   bool
	err      error

	showHelpPopup bool
}

func NewUserListView(svc *service.Service, actor int64) *UserListView {
	s := styles.NewStyles()
	delegate := &userDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Users"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &UserListView{
		svc:      svc,
		actor:    actor,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
	}
}

func (v *UserListView) Init() tea.Cmd {
	return v.loadUsers
}

func (v *UserListView) loadUsers() tea.Msg {
	users, err := v.svc.UsersWithReports(context.Background(), v.actor)
	if err != nil {
		return errMsg{err: err}
	}
	return usersLoadedMsg{users: users}
}

type usersLoadedMsg struct {
	users []models.UserRef
}

// SelectedUser is emitted when a user is picked from the list
type SelectedUser struct {
	User models.UserRef
}

func (v *UserListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-6)
		return v, nil

	case usersLoadedMsg:
		items := make([]list.Item, len(msg.users))
		for i, u := range msg.users {
			items[i] = userItem{user: u}
		}
		v.list.SetItems(items)
		v.loaded = true
		v.err = nil
		return v, nil

	case errMsg:
		v.loaded = true
		v.err = msg.err
		return v, nil

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		// Keys belong to the filter input while typing
		if v.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Refresh):
			return v, v.loadUsers
		case msg.String() == "?":
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			if item, ok := v.list.SelectedItem().(userItem); ok {
				return v, func() tea.Msg {
					return SelectedUser{User: item.user}
				}
			}
			return v, nil
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

func (v *UserListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	if v.err != nil {
		return styles.CenterView(v.styles.StatusError.Render(v.err.Error()), v.width, v.height)
	}

	if len(v.list.Items()) == 0 {
		return v.renderEmpty()
	}

	content := v.list.View() + "\n" + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *UserListView) renderEmpty() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render("No Reports Yet"),
		"",
		s.TitleMuted.Render("Nobody has submitted a report"),
		"",
		s.TitleMuted.Render("r: refresh • q: quit"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *UserListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}
	return v.styles.Help.Render(
		fmt.Sprintf("%s open • %s filter • %s refresh • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("/"),
			v.styles.HelpKey.Render("r"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *UserListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	helpItems := []string{
		s.HelpKey.Render("↵") + "      open reports",
		s.HelpKey.Render("/") + "      filter by name",
		s.HelpKey.Render("r") + "      refresh",
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
