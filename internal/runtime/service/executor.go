// Package service runs end-user submissions against deployed projects.
//
// A submission moves through received, validated, session created, prompt
// assembled, completion invoked, responses persisted and completed. The
// session is committed before the completion call, so a failed or slow call
// leaves an incomplete session rather than no record at all.
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/access"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/analytics"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/metrics"
	rtdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/storage"
)

const (
	defaultCompletionTimeout = 60 * time.Second
	maxAnswers               = 200
)

// Store is the persistence the executor reads and appends to.
type Store interface {
	GetProject(ctx context.Context, id string) (*defdomain.Project, error)
	GetTree(ctx context.Context, projectID string) (*defdomain.Tree, error)
	GetActiveDeploymentBySlug(ctx context.Context, slug string) (*deploydomain.Deployment, error)
	storage.SessionStore
}

// Policy admits or denies a caller for a project.
type Policy interface {
	Evaluate(ctx context.Context, project *defdomain.Project, subjectID string) (*access.Decision, error)
}

type ManifestCache interface {
	Get(ctx context.Context, slug string) (*deploydomain.Manifest, error)
	Set(ctx context.Context, m *deploydomain.Manifest) error
}

// Submission is one end-user post to a deployed tool.
type Submission struct {
	Slug      string
	Answers   map[string]any
	SubjectID string
	Origin    string
}

type Result struct {
	Session    *rtdomain.Session `json:"session"`
	AIResponse string            `json:"ai_response"`
	Decision   *access.Decision  `json:"-"`
}

// SessionView is what the end user can see of a past submission.
type SessionView struct {
	Session   *rtdomain.Session   `json:"session"`
	Responses []rtdomain.Response `json:"responses"`
	Completed bool                `json:"completed"`
}

type Executor struct {
	store     Store
	policy    Policy
	completer completion.Completer
	events    analytics.EventWriter
	manifests ManifestCache
	submitURL func(slug string) string
	timeout   time.Duration
	now       func() time.Time
}

// NewExecutor wires an executor. timeout bounds the completion call; events
// may be nil.
func NewExecutor(store Store, policy Policy, completer completion.Completer, events analytics.EventWriter, timeout time.Duration) *Executor {
	if events == nil {
		events = analytics.Discard{}
	}
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}
	return &Executor{
		store:     store,
		policy:    policy,
		completer: completer,
		events:    events,
		submitURL: func(string) string { return "" },
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetManifestCache enables the Redis manifest cache.
func (e *Executor) SetManifestCache(c ManifestCache) {
	e.manifests = c
}

// SetSubmitURL sets how manifests built here address the submit endpoint.
func (e *Executor) SetSubmitURL(fn func(slug string) string) {
	if fn != nil {
		e.submitURL = fn
	}
}

// resolve finds the live project behind a slug. Disabled and undeployed
// projects look the same as unknown ones.
func (e *Executor) resolve(ctx context.Context, slug string) (*deploydomain.Deployment, *defdomain.Tree, error) {
	dep, err := e.store.GetActiveDeploymentBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	tree, err := e.store.GetTree(ctx, dep.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if !tree.Project.Deployed || !tree.Project.Enabled {
		return nil, nil, apperr.NotFound("tool", slug)
	}
	return dep, tree, nil
}

// Manifest returns the public manifest of a deployed tool.
func (e *Executor) Manifest(ctx context.Context, slug string) (*deploydomain.Manifest, error) {
	log := logging.FromContext(ctx)
	if e.manifests != nil {
		m, err := e.manifests.Get(ctx, slug)
		if err != nil {
			log.Warn("manifest cache read failed", zap.String("slug", slug), zap.Error(err))
		} else if m != nil {
			return m, nil
		}
	}

	dep, tree, err := e.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}
	m := deploydomain.BuildManifest(tree, dep.Slug, e.submitURL(dep.Slug))
	if e.manifests != nil {
		if err := e.manifests.Set(ctx, m); err != nil {
			log.Warn("manifest cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return m, nil
}

// Submit runs one submission to completion. When the completion call fails
// the returned error is upstream_generation and carries the session id and
// token, and the session stays incomplete.
func (e *Executor) Submit(ctx context.Context, sub Submission) (*Result, error) {
	res, err := e.submit(ctx, sub)
	switch {
	case err == nil:
		metrics.RecordSubmission("completed")
	case apperr.KindOf(err) == apperr.KindUpstreamGeneration:
		metrics.RecordSubmission("generation_failed")
	case res != nil:
		metrics.RecordSubmission("persistence_failed")
	default:
		metrics.RecordSubmission("rejected")
	}
	return res, err
}

func (e *Executor) submit(ctx context.Context, sub Submission) (*Result, error) {
	log := logging.FromContext(ctx).With(zap.String("slug", sub.Slug))

	// received
	dep, tree, err := e.resolve(ctx, sub.Slug)
	if err != nil {
		return nil, err
	}
	decision, err := e.policy.Evaluate(ctx, &tree.Project, sub.SubjectID)
	if err != nil {
		return nil, err
	}

	// validated
	answers, responses, unattributed, err := e.validate(tree, sub.Answers)
	if err != nil {
		return nil, err
	}

	// session created
	sess := &rtdomain.Session{
		ProjectID:     tree.Project.ID,
		Token:         uuid.NewString(),
		OriginAddress: sub.Origin,
		SubjectID:     sub.SubjectID,
		StartedAt:     e.now().UTC(),
	}
	if err := e.store.CreateSession(ctx, sess); err != nil {
		return nil, asPersistence("failed to create session", err)
	}
	res := &Result{Session: sess, Decision: decision}
	log = log.With(zap.String("session_id", sess.ID))
	e.emit(analytics.EventSessionStarted, dep, sess, "", 0)

	// The rest runs detached from the client: a disconnect must not lose
	// the outcome.
	ctx = context.WithoutCancel(ctx)

	if err := e.store.SaveResponses(ctx, sess.ID, responses, unattributed); err != nil {
		return res, asPersistence("failed to record responses", err)
	}
	if len(unattributed) > 0 {
		sess.Unattributed = unattributed
		log.Info("submission has unattributed keys", zap.Int("count", len(unattributed)))
	}

	// prompt assembled
	system, user := assemblePrompt(tree, answers)

	// completion invoked
	start := e.now()
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	text, err := e.completer.Complete(callCtx, completion.Request{
		Caller: "runtime.submit",
		System: system,
		User:   user,
	})
	cancel()
	elapsed := e.now().Sub(start)
	if err != nil {
		reason := completion.Reason(err)
		if ferr := e.store.FailSession(ctx, sess.ID, reason); ferr != nil {
			log.Error("failed to mark session failed", zap.Error(ferr))
		}
		sess.GenerationError = &reason
		e.emit(analytics.EventSessionFailed, dep, sess, reason, elapsed)
		return res, upstream(err).
			WithDetail("session_id", sess.ID).
			WithDetail("session_token", sess.Token)
	}

	// completed
	at := e.now().UTC()
	if err := e.store.CompleteSession(ctx, sess.ID, text, at); err != nil {
		return res, asPersistence("failed to record ai response", err)
	}
	sess.AIResponse = &text
	sess.CompletedAt = &at
	res.AIResponse = text
	e.emit(analytics.EventSessionCompleted, dep, sess, "", elapsed)
	log.Info("submission completed", zap.Duration("completion", elapsed))
	return res, nil
}

// validate attributes submitted keys, checks required fields and rules, and
// builds the response rows. answers is keyed by field id.
func (e *Executor) validate(tree *defdomain.Tree, raw map[string]any) (map[string]value, []rtdomain.Response, map[string]string, error) {
	if len(raw) > maxAnswers {
		return nil, nil, nil, apperr.Validation("responses", "too many answers")
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attr := attribute(tree, keys)
	byField := attr.byField()

	answers := map[string]value{}
	var responses []rtdomain.Response
	for _, st := range tree.Steps {
		for i := range st.Fields {
			f := &st.Fields[i]
			key, submitted := byField[f.ID]
			var v value
			if submitted {
				v = toValue(raw[key])
			}
			if v.empty() {
				if f.Required {
					return nil, nil, nil, apperr.Validation(f.Name, f.Label+" is required")
				}
				continue
			}
			if err := checkValue(f, v); err != nil {
				return nil, nil, nil, err
			}
			answers[f.ID] = v
			responses = append(responses, rtdomain.Response{StepID: st.ID, FieldID: f.ID, Value: v.String()})
		}
	}

	var unattributed map[string]string
	for _, k := range attr.unattributed {
		if unattributed == nil {
			unattributed = map[string]string{}
		}
		unattributed[k] = toValue(raw[k]).String()
	}
	return answers, responses, unattributed, nil
}

// Session returns a past submission by its token.
func (e *Executor) Session(ctx context.Context, token string) (*SessionView, error) {
	sess, err := e.store.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	responses, err := e.store.ListResponses(ctx, sess.ID)
	if err != nil {
		return nil, asPersistence("failed to load responses", err)
	}
	return &SessionView{Session: sess, Responses: responses, Completed: sess.Completed()}, nil
}

func (e *Executor) emit(t analytics.EventType, dep *deploydomain.Deployment, sess *rtdomain.Session, reason string, elapsed time.Duration) {
	ev := analytics.NewEvent(t, sess.ProjectID)
	ev.Slug = dep.Slug
	ev.SessionID = sess.ID
	ev.SubjectID = sess.SubjectID
	ev.Reason = reason
	ev.DurationMs = uint32(elapsed.Milliseconds())
	e.events.Write(ev)
}

func asPersistence(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Persistence(op, err)
}

func upstream(err error) *apperr.Error {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.KindUpstreamGeneration {
		return ae
	}
	return apperr.UpstreamGeneration("error", err)
}
