package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	rtdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/domain"
)

// setupTestPostgres connects to a real database and applies migrations.
// Skips test if TEST_DB_DSN is not set. You can set TEST_DB_DSN directly, or
// use TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER, TEST_DB_PASSWORD, TEST_DB_NAME.
func setupTestPostgres(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		host := os.Getenv("TEST_DB_HOST")
		port := os.Getenv("TEST_DB_PORT")
		user := os.Getenv("TEST_DB_USER")
		dbname := os.Getenv("TEST_DB_NAME")
		if host == "" || port == "" || user == "" || dbname == "" {
			t.Skip("TEST_DB_DSN or TEST_DB_* environment variables not set, skipping PostgreSQL integration test")
		}
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, os.Getenv("TEST_DB_PASSWORD"), dbname)
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func createTestTree(t *testing.T, s *Store, name string) *defdomain.Tree {
	t.Helper()
	tree := &defdomain.Tree{
		Project: defdomain.Project{OwnerID: "it-" + uuid.NewString(), Name: name, Tier: defdomain.TierPublic, Enabled: true},
		Steps: []defdomain.StepNode{{
			Step: defdomain.Step{Name: "basics", Title: "Basics", Position: 1},
			Fields: []defdomain.FieldNode{{Field: defdomain.Field{
				Name: "topic", Label: "Topic", Type: defdomain.FieldText, Required: true, Position: 1,
			}}},
		}},
	}
	require.NoError(t, s.CreateTree(context.Background(), tree))
	t.Cleanup(func() { _ = s.DeleteProject(context.Background(), tree.Project.ID) })
	return tree
}

func TestIntegration_ConcurrentActivateOneWinner(t *testing.T) {
	s := setupTestPostgres(t)
	ctx := context.Background()
	slug := "race-" + uuid.NewString()[:8]

	a := createTestTree(t, s, "Race A")
	b := createTestTree(t, s, "Race B")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, tree := range []*defdomain.Tree{a, b} {
		wg.Add(1)
		go func(i int, projectID string) {
			defer wg.Done()
			_, errs[i] = s.Activate(ctx, deploydomain.ActivateParams{ProjectID: projectID, Slug: slug}, func(context.Context) error { return nil })
		}(i, tree.Project.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, wins)

	dep, err := s.GetActiveDeploymentBySlug(ctx, slug)
	require.NoError(t, err)
	assert.True(t, dep.Active())
}

func TestIntegration_FailedMaterializeRollsBack(t *testing.T) {
	s := setupTestPostgres(t)
	ctx := context.Background()
	tree := createTestTree(t, s, "Rollback")
	slug := "rb-" + uuid.NewString()[:8]

	_, err := s.Activate(ctx, deploydomain.ActivateParams{ProjectID: tree.Project.ID, Slug: slug}, func(context.Context) error {
		return apperr.Materialization("write bundle", fmt.Errorf("disk full"))
	})
	require.Error(t, err)

	p, err := s.GetProject(ctx, tree.Project.ID)
	require.NoError(t, err)
	assert.False(t, p.Deployed)
	assert.Nil(t, p.Subdomain)
	_, err = s.GetDeployment(ctx, tree.Project.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	s := setupTestPostgres(t)
	ctx := context.Background()
	tree := createTestTree(t, s, "Sessions")
	field := tree.Steps[0].Fields[0]

	sess := &rtdomain.Session{ProjectID: tree.Project.ID, Token: uuid.NewString(), OriginAddress: "198.51.100.4"}
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NoError(t, s.SaveResponses(ctx, sess.ID,
		[]rtdomain.Response{{StepID: tree.Steps[0].ID, FieldID: field.ID, Value: "volcanoes"}},
		map[string]string{"utm": "mail"}))
	require.NoError(t, s.FailSession(ctx, sess.ID, "timeout"))

	got, err := s.GetSessionByToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, got.Completed())
	assert.Equal(t, map[string]string{"utm": "mail"}, got.Unattributed)

	responses, err := s.ListResponses(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "volcanoes", responses[0].Value)
}
