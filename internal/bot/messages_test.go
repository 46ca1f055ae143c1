package bot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/reportbot/internal/models"
)

func modelsRef(id int64, name string) models.UserRef {
	return models.UserRef{ID: id, FirstName: name}
}

func TestDefaultMessagesAreComplete(t *testing.T) {
	m := DefaultMessages()
	assert.NotEmpty(t, m.Buttons.SubmitReport)
	assert.NotEmpty(t, m.Buttons.ViewReports)
	assert.NotEmpty(t, m.Inline.BackToUsers)
	assert.NotEmpty(t, m.Rules)
	assert.NotEmpty(t, m.Reminder)
	assert.NotEmpty(t, m.Failed)
}

func TestLoadMessagesOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
buttons:
  submit_report: "Заполнить отчет"
report_saved: "Отчет успешно сохранен!"
`), 0o644))

	m, err := LoadMessages(path)
	require.NoError(t, err)
	assert.Equal(t, "Заполнить отчет", m.Buttons.SubmitReport)
	assert.Equal(t, "Отчет успешно сохранен!", m.ReportSaved)
	assert.Equal(t, DefaultMessages().Buttons.MyReports, m.Buttons.MyReports)

	_, err = LoadMessages(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
