package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/reportbot/internal/models"
)

type fakeStore struct {
	reports map[int64]*models.Report
	tasks   map[int64]*models.Task
	err     error
}

func (f *fakeStore) GetReport(_ context.Context, id int64) (*models.Report, error) {
	return f.reports[id], f.err
}

func (f *fakeStore) GetTask(_ context.Context, id int64) (*models.Task, error) {
	return f.tasks[id], f.err
}

func newStore() *fakeStore {
	return &fakeStore{
		reports: map[int64]*models.Report{
			10: {ID: 10, UserID: 1, Text: "alice"},
			11: {ID: 11, UserID: 2, Text: "bob"},
		},
		tasks: map[int64]*models.Task{
			20: {ID: 20, UserID: 2, Text: "plan"},
		},
	}
}

func TestCanEditReport(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	p := NewPolicy([]int64{999}, store, store)

	tests := []struct {
		name   string
		actor  int64
		report int64
		want   bool
	}{
		{"owner", 1, 10, true},
		{"other user", 2, 10, false},
		{"admin on foreign report", 999, 10, true},
		{"admin on another report", 999, 11, true},
		{"missing report", 1, 404, false},
		{"admin on missing report", 999, 404, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.CanEditReport(ctx, tt.actor, tt.report)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEditRuleMatchesOwnershipOrAdmin(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	admins := []int64{999, 1000}
	p := NewPolicy(admins, store, store)

	for _, r := range store.reports {
		for _, actor := range []int64{0, 1, 2, 3, 999, 1000} {
			got, err := p.CanEditReport(ctx, actor, r.ID)
			require.NoError(t, err)
			want := actor == r.UserID || actor == 999 || actor == 1000
			assert.Equal(t, want, got, "actor %d report %d", actor, r.ID)
		}
	}
}

func TestOwnerOnlyReports(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	p := NewPolicy([]int64{999}, store, store, OwnerOnlyReports())

	ok, err := p.CanEditReport(ctx, 999, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.CanEditReport(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, p.CanBrowseReports(999), "browsing is not affected")
}

func TestCanEditTaskOwnerOnly(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	p := NewPolicy([]int64{999}, store, store)

	ok, err := p.CanEditTask(ctx, 2, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.CanEditTask(ctx, 999, 20)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.CanEditTask(ctx, 2, 404)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadAndTaskRulesOnLoadedRows(t *testing.T) {
	store := newStore()
	p := NewPolicy([]int64{999}, store, store, OwnerOnlyReports())

	assert.True(t, p.CanReadReport(1, 1))
	assert.True(t, p.CanReadReport(999, 1), "administrators read every report, also in owner-only mode")
	assert.False(t, p.CanReadReport(2, 1))

	task := store.tasks[20]
	assert.True(t, p.CanChangeTask(2, task))
	assert.False(t, p.CanChangeTask(999, task))
	assert.False(t, p.CanChangeTask(1, task))
}

func TestStorageErrorPropagates(t *testing.T) {
	store := newStore()
	store.err = errors.New("disk gone")
	p := NewPolicy(nil, store, store)

	ok, err := p.CanEditReport(context.Background(), 1, 10)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestAdmins(t *testing.T) {
	p := NewPolicy([]int64{30, 10, 20, 10}, nil, nil)
	assert.Equal(t, []int64{10, 20, 30}, p.Admins())
	assert.True(t, p.IsAdmin(20))
	assert.False(t, p.IsAdmin(2))
	assert.False(t, p.CanBrowseReports(2))
}
