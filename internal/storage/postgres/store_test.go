package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	rtdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/domain"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return New(db), mock, db
}

var deploymentCols = []string{"id", "project_id", "slug", "bundle_location", "public_url", "status", "created_at", "updated_at"}

func TestStore_CreateStep(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()

	t.Run("appends after the last sibling", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM projects WHERE id = \$1 FOR UPDATE`).
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))
		mock.ExpectQuery(`INSERT INTO steps`).
			WithArgs(sqlmock.AnyArg(), "p1", "intro", "Intro", "", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(3))
		mock.ExpectCommit()

		st := &defdomain.Step{ProjectID: "p1", Name: "intro", Title: "Intro"}
		require.NoError(t, store.CreateStep(context.Background(), st))
		assert.Equal(t, 3, st.Position)
		assert.NotEmpty(t, st.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown project is not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM projects`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := store.CreateStep(context.Background(), &defdomain.Step{ProjectID: "missing"})
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_DeleteStepCompacts(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM steps WHERE id = \$1 RETURNING project_id`).
		WithArgs("s2").
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow("p1"))
	mock.ExpectExec(`UPDATE steps t SET position = r.rn`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteStep(context.Background(), "s2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReorderRejectsPartialList(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM steps WHERE project_id = \$1 ORDER BY position FOR UPDATE`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))
	mock.ExpectRollback()

	err := store.ReorderSteps(context.Background(), "p1", []string{"b"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateFieldDuplicateName(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT project_id FROM steps`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow("p1"))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), 0\) \+ 1 FROM fields`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"pos"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO fields`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "fields_name_uniq"})
	mock.ExpectRollback()

	err := store.CreateField(context.Background(), &defdomain.Field{StepID: "s1", Name: "topic", Type: defdomain.FieldText}, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Activate(t *testing.T) {
	params := deploydomain.ActivateParams{ProjectID: "p1", Slug: "resume-builder", PublicURL: "https://resume-builder.tool.example.com/"}

	t.Run("claims slug and commits", func(t *testing.T) {
		store, mock, db := setupStore(t)
		defer db.Close()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT project_id FROM slug_reservations`).
			WithArgs("resume-builder", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"project_id"}))
		mock.ExpectQuery(`INSERT INTO deployments`).
			WithArgs(sqlmock.AnyArg(), "p1", "resume-builder", "", params.PublicURL, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(deploymentCols).
				AddRow("d1", "p1", "resume-builder", "", params.PublicURL, "active", now, now))
		mock.ExpectExec(`UPDATE projects SET subdomain = \$2, deployed = TRUE`).
			WithArgs("p1", "resume-builder", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM slug_reservations`).
			WithArgs("resume-builder").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		materialized := false
		dep, err := store.Activate(context.Background(), params, func(context.Context) error {
			materialized = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, materialized)
		assert.Equal(t, "d1", dep.ID)
		assert.True(t, dep.Active())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("active slug collision is a conflict", func(t *testing.T) {
		store, mock, db := setupStore(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT project_id FROM slug_reservations`).
			WillReturnRows(sqlmock.NewRows([]string{"project_id"}))
		mock.ExpectQuery(`INSERT INTO deployments`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "deployments_active_slug_uniq"})
		mock.ExpectRollback()

		_, err := store.Activate(context.Background(), params, nil)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reserved slug held by another project is a conflict", func(t *testing.T) {
		store, mock, db := setupStore(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT project_id FROM slug_reservations`).
			WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow("p-other"))
		mock.ExpectRollback()

		_, err := store.Activate(context.Background(), params, nil)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("materialize failure rolls back", func(t *testing.T) {
		store, mock, db := setupStore(t)
		defer db.Close()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT project_id FROM slug_reservations`).
			WillReturnRows(sqlmock.NewRows([]string{"project_id"}))
		mock.ExpectQuery(`INSERT INTO deployments`).
			WillReturnRows(sqlmock.NewRows(deploymentCols).
				AddRow("d1", "p1", "resume-builder", "", "", "active", now, now))
		mock.ExpectExec(`UPDATE projects`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM slug_reservations`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := store.Activate(context.Background(), params, func(context.Context) error {
			return apperr.Materialization("write bundle", errors.New("disk full"))
		})
		assert.Equal(t, apperr.KindMaterialization, apperr.KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_DeactivateWithoutActiveDeployment(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE deployments SET status = 'inactive'`).
		WithArgs("p1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(deploymentCols))
	mock.ExpectRollback()

	_, err := store.Deactivate(context.Background(), deploydomain.DeactivateParams{ProjectID: "p1"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AvailableSlugs(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT slug FROM deployments`).
		WithArgs(sqlmock.AnyArg(), "p1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow("taken"))

	got, err := store.AvailableSlugs(context.Background(), []string{"taken", "free"}, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"taken": false, "free": true}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateSessionFailureIsPersistence(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO sessions`).WillReturnError(errors.New("connection reset"))

	err := store.CreateSession(context.Background(), &rtdomain.Session{ProjectID: "p1", Token: "t"})
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetSessionByToken(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()
	started := time.Now()

	mock.ExpectQuery(`SELECT .* FROM sessions WHERE token = \$1`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "token", "origin_address", "subject_id",
			"unattributed", "started_at", "completed_at", "ai_response", "generation_error"}).
			AddRow("s1", "p1", "tok", "10.0.0.1", "", []byte(`{"Nickname":"Al"}`), started, nil, nil, "timeout"))

	sess, err := store.GetSessionByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, sess.Completed())
	assert.Equal(t, "Al", sess.Unattributed["Nickname"])
	require.NotNil(t, sess.GenerationError)
	assert.Equal(t, "timeout", *sess.GenerationError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ActiveProvider(t *testing.T) {
	store, mock, db := setupStore(t)
	defer db.Close()

	t.Run("none configured", func(t *testing.T) {
		mock.ExpectQuery(`FROM completion_providers`).
			WillReturnRows(sqlmock.NewRows([]string{"name", "version", "base_url", "model", "api_key", "timeout_ms"}))
		p, err := store.ActiveProvider(context.Background())
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("highest version", func(t *testing.T) {
		mock.ExpectQuery(`FROM completion_providers`).
			WillReturnRows(sqlmock.NewRows([]string{"name", "version", "base_url", "model", "api_key", "timeout_ms"}).
				AddRow("openai", 3, "https://api.example.com/v1", "gpt-4o", "k", 15000))
		p, err := store.ActiveProvider(context.Background())
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, 3, p.Version)
		assert.Equal(t, 15*time.Second, p.Timeout)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
