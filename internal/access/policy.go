package access

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/apperr"
	defdomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/domain"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
)

// Decision is the outcome of an admitted evaluation.
type Decision struct {
	SubjectID string         `json:"subject_id,omitempty"`
	Tier      defdomain.Tier `json:"tier"`
	PackageID string         `json:"package_id,omitempty"`
	Limit     int64          `json:"limit"`
	Usage     int64          `json:"usage"`
}

// Evaluator gates runtime invocations on a Project's declared tier.
type Evaluator struct {
	grants          GrantSource
	quota           Quota
	registeredLimit int64
	now             func() time.Time
}

// NewEvaluator builds an evaluator. A nil quota disables usage limits.
func NewEvaluator(grants GrantSource, quota Quota, registeredLimit int64) *Evaluator {
	return &Evaluator{grants: grants, quota: quota, registeredLimit: registeredLimit, now: time.Now}
}

// Evaluate admits or denies subjectID ("" when anonymous) for project.
// Checks run in order: tier, identity, entitlement, quota.
func (e *Evaluator) Evaluate(ctx context.Context, project *defdomain.Project, subjectID string) (*Decision, error) {
	need := project.Tier
	if need == "" {
		need = defdomain.TierPublic
	}
	if need == defdomain.TierPublic {
		return &Decision{SubjectID: subjectID, Tier: defdomain.TierPublic}, nil
	}
	if subjectID == "" {
		return nil, apperr.Auth("sign in to use this tool")
	}

	now := e.now()
	grants, err := e.grants.ActiveGrants(ctx, subjectID, now)
	if err != nil {
		return nil, apperr.Persistence("failed to load entitlements", err)
	}

	d, err := e.entitle(ctx, project, need, subjectID, grants)
	if err != nil {
		return nil, err
	}
	if d.Limit == 0 || e.quota == nil {
		return d, nil
	}

	usage, allowed, err := e.quota.Consume(ctx, subjectID, d.Limit, now)
	if err != nil {
		// soft limit: admit when the counter is unavailable
		logging.FromContext(ctx).Warn("quota check failed; admitting",
			zap.String("subject_id", subjectID), zap.Error(err))
		return d, nil
	}
	if !allowed {
		return nil, apperr.QuotaExceeded(d.Limit, usage)
	}
	d.Usage = usage
	return d, nil
}

func (e *Evaluator) entitle(ctx context.Context, project *defdomain.Project, need defdomain.Tier, subjectID string, grants []Grant) (*Decision, error) {
	if project.RequiredPackage != "" {
		for _, g := range grants {
			if g.PackageID == project.RequiredPackage && g.Tier.Covers(need) {
				return &Decision{SubjectID: subjectID, Tier: g.Tier, PackageID: g.PackageID, Limit: g.DailyLimit}, nil
			}
		}
		return nil, e.denied(ctx, need, project.RequiredPackage)
	}

	g, ok := best(grants)
	if !ok || !g.Tier.Covers(defdomain.TierRegistered) {
		// any verified identity holds the registered tier
		g = Grant{Tier: defdomain.TierRegistered, DailyLimit: e.registeredLimit}
	}
	if !g.Tier.Covers(need) {
		return nil, e.denied(ctx, need, "")
	}
	return &Decision{SubjectID: subjectID, Tier: g.Tier, PackageID: g.PackageID, Limit: g.DailyLimit}, nil
}

func (e *Evaluator) denied(ctx context.Context, need defdomain.Tier, packageID string) error {
	desc := fmt.Sprintf("a %s package or higher is required", need)
	if packageID != "" {
		pkg, err := e.grants.GetPackage(ctx, packageID)
		switch {
		case err == nil:
			desc = pkg.Name
			if pkg.Description != "" {
				desc = pkg.Name + ": " + pkg.Description
			}
		case apperr.KindOf(err) == apperr.KindNotFound:
			desc = fmt.Sprintf("package %s is required", packageID)
		default:
			return apperr.Persistence("failed to load package", err)
		}
	}
	return apperr.Entitlement(string(need), packageID, desc)
}
