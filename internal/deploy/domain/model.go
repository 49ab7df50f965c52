package domain

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Deployment points a Project at its public address. A Project has at most
// one Deployment row; republishing updates it in place.
type Deployment struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Slug           string    `json:"slug"`
	BundleLocation string    `json:"bundle_location"`
	PublicURL      string    `json:"public_url"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (d *Deployment) Active() bool { return d != nil && d.Status == StatusActive }

// Reservation holds a released slug for its previous Project until ExpiresAt.
type Reservation struct {
	Slug      string    `json:"slug"`
	ProjectID string    `json:"project_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ActivateParams describes the claim made by a publish.
type ActivateParams struct {
	ProjectID      string
	Slug           string
	BundleLocation string
	PublicURL      string
}

// DeactivateParams describes an undeploy.
type DeactivateParams struct {
	ProjectID      string
	ClearSubdomain bool
	// Reservation is written when a grace period is configured.
	Reservation *Reservation
}
