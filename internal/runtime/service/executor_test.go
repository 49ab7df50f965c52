package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/toolsmith-backend/config"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/access"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	defservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/bundle"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	deployservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/service"
	rtdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage/memory"
)

const owner = "owner-1"

type fakeCompleter struct {
	reply    string
	err      error
	calls    int
	last     completion.Request
	canceled bool
}

func (f *fakeCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	f.calls++
	f.last = req
	f.canceled = ctx.Err() != nil
	return f.reply, f.err
}

type fixture struct {
	store *memory.Store
	defs  *defservice.Service
	llm   *fakeCompleter
	exec  *Executor
	slug  string
	tree  *defdomain.Tree
}

func setup(t *testing.T, in defservice.ProjectInput) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	defs := defservice.New(store)
	host, err := bundle.NewFSHost(t.TempDir())
	require.NoError(t, err)
	deploy := deployservice.New(store, host, config.DeployConfig{BaseDomain: "example.com"}, nil)

	if in.Name == "" {
		in.Name = "Cover Letter"
	}
	if in.SystemPrompt == "" {
		in.SystemPrompt = "Write a cover letter."
	}
	p, err := defs.CreateProject(ctx, owner, in)
	require.NoError(t, err)

	s1, err := defs.CreateStep(ctx, owner, p.ID, defservice.StepInput{Title: "About you"})
	require.NoError(t, err)
	_, err = defs.CreateField(ctx, owner, s1.ID, defservice.FieldInput{Label: "Full Name", Type: defdomain.FieldText, Required: true})
	require.NoError(t, err)
	_, err = defs.CreateField(ctx, owner, s1.ID, defservice.FieldInput{Label: "Email", Type: defdomain.FieldEmail})
	require.NoError(t, err)

	s2, err := defs.CreateStep(ctx, owner, p.ID, defservice.StepInput{Title: "The job"})
	require.NoError(t, err)
	_, err = defs.CreateField(ctx, owner, s2.ID, defservice.FieldInput{
		Label: "Seniority", Type: defdomain.FieldSelect,
		Choices: []defservice.ChoiceInput{{Label: "Junior", Value: "junior"}, {Label: "Senior", Value: "senior"}},
	})
	require.NoError(t, err)
	maxLen := 20
	_, err = defs.CreateField(ctx, owner, s2.ID, defservice.FieldInput{Label: "Company", Type: defdomain.FieldText, MaxLength: &maxLen})
	require.NoError(t, err)

	out, err := deploy.Publish(ctx, owner, p.ID)
	require.NoError(t, err)
	tree, err := store.GetTree(ctx, p.ID)
	require.NoError(t, err)

	llm := &fakeCompleter{reply: "Dear hiring manager"}
	exec := NewExecutor(store, access.NewEvaluator(store, nil, 0), llm, nil, time.Second)
	return &fixture{store: store, defs: defs, llm: llm, exec: exec, slug: out.Slug, tree: tree}
}

func TestSubmitCompletes(t *testing.T) {
	f := setup(t, defservice.ProjectInput{})
	ctx := context.Background()

	res, err := f.exec.Submit(ctx, Submission{
		Slug:   f.slug,
		Origin: "203.0.113.7",
		Answers: map[string]any{
			"full_name": "Ada Lovelace",
			"Company":   "Analytical Engines",
			"seniority": "senior",
			"referrer":  "newsletter",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear hiring manager", res.AIResponse)
	assert.Equal(t, 1, f.llm.calls)
	assert.Equal(t, "Write a cover letter.", f.llm.last.System)
	assert.Equal(t, "Full Name: Ada Lovelace\nSeniority: senior\nCompany: Analytical Engines", f.llm.last.User)

	view, err := f.exec.Session(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.True(t, view.Completed)
	assert.Equal(t, "203.0.113.7", view.Session.OriginAddress)
	assert.Len(t, view.Responses, 3)
	assert.Equal(t, map[string]string{"referrer": "newsletter"}, view.Session.Unattributed)
}

func TestSubmitRequiredMissing(t *testing.T) {
	f := setup(t, defservice.ProjectInput{})
	_, err := f.exec.Submit(context.Background(), Submission{Slug: f.slug, Answers: map[string]any{"email": "a@b.co"}})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "full_name", e.Details["field"])
	assert.Zero(t, f.llm.calls)
}

func TestSubmitRules(t *testing.T) {
	f := setup(t, defservice.ProjectInput{})
	for name, answers := range map[string]map[string]any{
		"bad email":      {"full_name": "A", "email": "not-an-email"},
		"unknown choice": {"full_name": "A", "seniority": "principal"},
		"too long":       {"full_name": "A", "company": "An extremely long company name"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.exec.Submit(context.Background(), Submission{Slug: f.slug, Answers: answers})
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
	assert.Zero(t, f.llm.calls)
}

func TestSubmitCompletionFailureKeepsSession(t *testing.T) {
	f := setup(t, defservice.ProjectInput{})
	f.llm.err = apperr.UpstreamGeneration(completion.FailureTimeout, errors.New("deadline exceeded"))

	res, err := f.exec.Submit(context.Background(), Submission{Slug: f.slug, Answers: map[string]any{"full_name": "Ada"}})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUpstreamGeneration, e.Kind)
	require.NotNil(t, res)
	assert.Equal(t, res.Session.Token, e.Details["session_token"])

	view, err := f.exec.Session(context.Background(), res.Session.Token)
	require.NoError(t, err)
	assert.False(t, view.Completed)
	assert.Nil(t, view.Session.AIResponse)
	require.NotNil(t, view.Session.GenerationError)
	assert.Equal(t, completion.FailureTimeout, *view.Session.GenerationError)
	assert.Len(t, view.Responses, 1)
}

func TestSubmitSurvivesClientCancel(t *testing.T) {
	f := setup(t, defservice.ProjectInput{})
	ctx, cancel := context.WithCancel(context.Background())
	f.llm.err = nil
	cancelling := &cancelOnCreate{Store: f.store, cancel: cancel}
	f.exec.store = cancelling

	res, err := f.exec.Submit(ctx, Submission{Slug: f.slug, Answers: map[string]any{"full_name": "Ada"}})
	require.NoError(t, err)
	assert.False(t, f.llm.canceled)
	assert.True(t, res.Session.Completed())
}

// cancelOnCreate simulates the client going away right after the session
// is committed.
type cancelOnCreate struct {
	*memory.Store
	cancel context.CancelFunc
}

func (c *cancelOnCreate) CreateSession(ctx context.Context, s *rtdomain.Session) error {
	err := c.Store.CreateSession(ctx, s)
	c.cancel()
	return err
}

func TestSubmitAccess(t *testing.T) {
	f := setup(t, defservice.ProjectInput{Tier: defdomain.TierPremium})
	ctx := context.Background()
	answers := map[string]any{"full_name": "Ada"}

	_, err := f.exec.Submit(ctx, Submission{Slug: f.slug, Answers: answers})
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	_, err = f.exec.Submit(ctx, Submission{Slug: f.slug, Answers: answers, SubjectID: "u1"})
	assert.Equal(t, apperr.KindEntitlement, apperr.KindOf(err))
	assert.Zero(t, f.llm.calls)

	f.store.PutPackage(access.Package{ID: "pro", Name: "Pro", Tier: defdomain.TierPremium})
	f.store.Grant("u1", "pro", nil)
	_, err = f.exec.Submit(ctx, Submission{Slug: f.slug, Answers: answers, SubjectID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.llm.calls)
}

func TestSubmitDisabledOrUnknown(t *testing.T) {
	f := setup(t, defservice.ProjectInput{})
	ctx := context.Background()

	_, err := f.exec.Submit(ctx, Submission{Slug: "nope", Answers: map[string]any{}})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	off := false
	_, err = f.defs.UpdateProject(ctx, owner, f.tree.Project.ID, defservice.ProjectPatch{Enabled: &off})
	require.NoError(t, err)
	_, err = f.exec.Submit(ctx, Submission{Slug: f.slug, Answers: map[string]any{"full_name": "Ada"}})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.exec.Manifest(ctx, f.slug)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

type mapCache map[string]*deploydomain.Manifest

func (m mapCache) Get(_ context.Context, slug string) (*deploydomain.Manifest, error) {
	return m[slug], nil
}

func (m mapCache) Set(_ context.Context, mf *deploydomain.Manifest) error {
	m[mf.Slug] = mf
	return nil
}

func TestManifestCached(t *testing.T) {
	f := setup(t, defservice.ProjectInput{})
	cache := mapCache{}
	f.exec.SetManifestCache(cache)
	f.exec.SetSubmitURL(func(slug string) string { return "https://api.example.com/api/v1/runtime/" + slug + "/submit" })

	m, err := f.exec.Manifest(context.Background(), f.slug)
	require.NoError(t, err)
	assert.Equal(t, "Write a cover letter.", m.SystemPrompt)
	assert.Len(t, m.Steps, 2)
	assert.Contains(t, m.SubmitURL, f.slug)
	assert.Same(t, m, cache[f.slug])

	again, err := f.exec.Manifest(context.Background(), f.slug)
	require.NoError(t, err)
	assert.Same(t, m, again)
}
