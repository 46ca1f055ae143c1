package ui

import (
	"context"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/service"
	"github.com/tgienger/reportbot/internal/ui/views"
)

// LastUserKey remembers which user's reports were open when the console closed
const LastUserKey = "console.last_user_id"

// Currently active view
type View int

const (
	ViewUsers View = iota
	ViewReports
)

// Settings persists small console preferences
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type App struct {
	svc         *service.Service
	settings    Settings
	actor       int64
	loc         *time.Location
	currentView View
	userList    *views.UserListView
	reportList  *views.ReportListView
	width       int
	height      int
}

// NewApp creates the admin console acting on behalf of actor
func NewApp(svc *service.Service, settings Settings, actor int64, loc *time.Location) *App {
	return &App{
		svc:         svc,
		settings:    settings,
		actor:       actor,
		loc:         loc,
		currentView: ViewUsers,
		userList:    views.NewUserListView(svc, actor),
	}
}

// CurrentView reports which screen is active
func (a *App) CurrentView() View {
	return a.currentView
}

func (a *App) Init() tea.Cmd {
	ctx := context.Background()
	lastUserID, err := a.settings.GetSetting(ctx, LastUserKey)
	if err == nil && lastUserID != "" {
		id, err := strconv.ParseInt(lastUserID, 10, 64)
		if err == nil {
			user, err := a.svc.User(ctx, id)
			if err == nil {
				return a.openUser(models.UserRef{ID: user.ID, FirstName: user.FirstName})
			}
		}
	}

	return a.userList.Init()
}

func (a *App) openUser(user models.UserRef) tea.Cmd {
	a.currentView = ViewReports
	a.reportList = views.NewReportListView(a.svc, a.actor, user, a.loc)

	_ = a.settings.SetSetting(context.Background(), LastUserKey, strconv.FormatInt(user.ID, 10))

	return tea.Batch(
		a.reportList.Init(),
		func() tea.Msg {
			return tea.WindowSizeMsg{Width: a.width, Height: a.height}
		},
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// The user list persists across views
		a.userList.Update(msg)

	case views.SelectedUser:
		return a, a.openUser(msg.User)

	case views.BackToUsers:
		a.currentView = ViewUsers
		_ = a.settings.SetSetting(context.Background(), LastUserKey, "")
		return a, tea.Batch(
			a.userList.Init(),
			func() tea.Msg {
				return tea.WindowSizeMsg{Width: a.width, Height: a.height}
			},
		)
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewUsers:
		_, cmd = a.userList.Update(msg)
	case ViewReports:
		_, cmd = a.reportList.Update(msg)
	}

	return a, cmd
}

func (a *App) View() string {
	switch a.currentView {
	case ViewReports:
		if a.reportList != nil {
			return a.reportList.View()
		}
	}
	return a.userList.View()
}
