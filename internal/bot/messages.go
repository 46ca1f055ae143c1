package bot

import (
	_ "embed"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultMessages []byte

// Buttons are the reply keyboard labels. Incoming text is matched against them.
type Buttons struct {
	SubmitReport string `yaml:"submit_report"`
	MyReports    string `yaml:"my_reports"`
	AddPlan      string `yaml:"add_plan"`
	MyPlans      string `yaml:"my_plans"`
	Rules        string `yaml:"rules"`
	ViewReports  string `yaml:"view_reports"`
}

// InlineButtons are the labels of inline keyboard buttons
type InlineButtons struct {
	Edit          string `yaml:"edit"`
	Delete        string `yaml:"delete"`
	History       string `yaml:"history"`
	Toggle        string `yaml:"toggle"`
	BackToList    string `yaml:"back_to_list"`
	BackToUsers   string `yaml:"back_to_users"`
	BackToReports string `yaml:"back_to_reports"`
	BackToReport  string `yaml:"back_to_report"`
}

// Messages is the text catalogue of the bot
type Messages struct {
	Buttons Buttons       `yaml:"buttons"`
	Inline  InlineButtons `yaml:"inline"`

	Start           string `yaml:"start"`
	StartAdmin      string `yaml:"start_admin"`
	Help            string `yaml:"help"`
	Rules           string `yaml:"rules"`
	Cancelled       string `yaml:"cancelled"`
	NothingToCancel string `yaml:"nothing_to_cancel"`
	UseMenu         string `yaml:"use_menu"`

	AskReport         string `yaml:"ask_report"`
	ReportSaved       string `yaml:"report_saved"`
	NewReportNotice   string `yaml:"new_report_notice"`
	AskEditReport     string `yaml:"ask_edit_report"`
	CurrentText       string `yaml:"current_text"`
	ReportUpdated     string `yaml:"report_updated"`
	ReportDeleted     string `yaml:"report_deleted"`
	NoReports         string `yaml:"no_reports"`
	ChooseReport      string `yaml:"choose_report"`
	ReportHeader      string `yaml:"report_header"`
	EditedAt          string `yaml:"edited_at"`
	AdminReportHeader string `yaml:"admin_report_header"`
	NoHistory         string `yaml:"no_history"`
	HistoryHeader     string `yaml:"history_header"`
	HistoryEntry      string `yaml:"history_entry"`

	AskTask     string `yaml:"ask_task"`
	TaskSaved   string `yaml:"task_saved"`
	AskEditTask string `yaml:"ask_edit_task"`
	TaskUpdated string `yaml:"task_updated"`
	TaskDeleted string `yaml:"task_deleted"`
	NoTasks     string `yaml:"no_tasks"`
	ChooseTask  string `yaml:"choose_task"`
	TaskHeader  string `yaml:"task_header"`
	TaskDone    string `yaml:"task_done"`
	TaskOpen    string `yaml:"task_open"`
	TaskToggled string `yaml:"task_toggled"`

	NoUsers          string `yaml:"no_users"`
	ChooseUser       string `yaml:"choose_user"`
	ChooseUserReport string `yaml:"choose_user_report"`

	Reminder string `yaml:"reminder"`

	NotFound  string `yaml:"not_found"`
	Denied    string `yaml:"denied"`
	EmptyText string `yaml:"empty_text"`
	Failed    string `yaml:"failed"`
}

// DefaultMessages returns the built-in catalogue
func DefaultMessages() *Messages {
	m := &Messages{}
	if err := yaml.Unmarshal(defaultMessages, m); err != nil {
		panic("bot: invalid built-in messages: " + err.Error())
	}
	return m
}

// LoadMessages returns the built-in catalogue with the entries of path laid
// over it. An empty path returns the defaults.
func LoadMessages(path string) (*Messages, error) {
	m := DefaultMessages()
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read messages")
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, "parse messages %s", path)
	}
	return m, nil
}

func (m *Messages) status(completed bool) string {
	if completed {
		return m.TaskDone
	}
	return m.TaskOpen
}
