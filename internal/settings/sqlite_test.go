package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kipmarine/kipdash/internal/dashboard"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDashboards() []dashboard.Dashboard {
	return []dashboard.Dashboard{
		{
			ID: "A", Name: "Nav", Icon: "dashboard-nav",
			Configuration: []dashboard.Widget{{
				"id": "w1", "x": float64(0), "y": float64(0),
				"input": map[string]any{"widgetProperties": map[string]any{"uuid": "w1"}},
			}},
		},
		{ID: "B", Name: "Empty", Configuration: []dashboard.Widget{}},
		{ID: "C"},
	}
}

func TestOpen_CreatesFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.db")

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, path, s.Path())
	assert.FileExists(t, path)

	v, err := s.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
}

func TestStore_DashboardConfig_Empty(t *testing.T) {
	s := setupTestStore(t)

	ds, err := s.DashboardConfig(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestStore_SaveAndLoadDashboards(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.SaveDashboards(ctx, sampleDashboards()))

	got, err := s.DashboardConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDashboards(), got)

	// Full replace keeps order and drops removed rows.
	require.NoError(t, s.SaveDashboards(ctx, []dashboard.Dashboard{{ID: "C"}, {ID: "A", Name: "Nav"}}))
	got, err = s.DashboardConfig(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].ID)
	assert.Equal(t, "A", got[1].ID)
}

func TestStore_SaveDashboards_DuplicateIDRollsBack(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.SaveDashboards(ctx, sampleDashboards()))

	err := s.SaveDashboards(ctx, []dashboard.Dashboard{{ID: "X"}, {ID: "X"}})
	require.Error(t, err)

	got, err := s.DashboardConfig(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3, "previous collection survives a failed save")
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveDashboards(ctx, sampleDashboards()))
	id, err := s.InstanceID(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.DashboardConfig(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	again, err := s.InstanceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestStore_InstanceID_Stable(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	first, err := s.InstanceID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := s.InstanceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStore_ConnectionConfig(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	cc, err := s.ConnectionConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, ConnectionConfig{}, cc)

	want := ConnectionConfig{LoginName: "skipper", URL: "ws://boat.local:3000"}
	require.NoError(t, s.SaveConnectionConfig(ctx, want))
	require.NoError(t, s.SaveConnectionConfig(ctx, want))

	cc, err = s.ConnectionConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, cc)
}

// --- Error paths against a mocked driver ---

func TestStore_ErrorPaths(t *testing.T) {
	boom := errors.New("disk I/O error")

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		run       func(s *Store) error
		wantErr   string
	}{
		{
			name: "begin fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(boom)
			},
			run:     func(s *Store) error { return s.SaveDashboards(context.Background(), sampleDashboards()) },
			wantErr: "failed to begin transaction",
		},
		{
			name: "insert fails and rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM dashboards").WillReturnResult(sqlmock.NewResult(0, 3))
				mock.ExpectExec("INSERT INTO dashboards").WillReturnError(boom)
				mock.ExpectRollback()
			},
			run:     func(s *Store) error { return s.SaveDashboards(context.Background(), sampleDashboards()) },
			wantErr: "failed to insert dashboard A",
		},
		{
			name: "commit fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM dashboards").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("INSERT INTO dashboards").WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit().WillReturnError(boom)
			},
			run: func(s *Store) error {
				return s.SaveDashboards(context.Background(), []dashboard.Dashboard{{ID: "A"}})
			},
			wantErr: "failed to commit dashboards",
		},
		{
			name: "query fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, name, icon, configuration FROM dashboards").WillReturnError(boom)
			},
			run: func(s *Store) error {
				_, err := s.DashboardConfig(context.Background())
				return err
			},
			wantErr: "failed to query dashboards",
		},
		{
			name: "corrupt configuration",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "name", "icon", "configuration"}).
					AddRow("A", "Nav", "", "{not json")
				mock.ExpectQuery("SELECT id, name, icon, configuration FROM dashboards").WillReturnRows(rows)
			},
			run: func(s *Store) error {
				_, err := s.DashboardConfig(context.Background())
				return err
			},
			wantErr: "failed to decode configuration of dashboard A",
		},
		{
			name: "instance id read fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT value FROM kv").WithArgs(keyInstanceID).WillReturnError(boom)
			},
			run: func(s *Store) error {
				_, err := s.InstanceID(context.Background())
				return err
			},
			wantErr: "failed to read setting instance_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.setupMock(mock)
			err = tt.run(NewWithDB(db))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
