package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EntityTypeExperience = "Experience"
	EntityTypeAudience   = "Audience"

	ExperienceStatusEnabled = "Enabled"
)

var (
	ErrNoProcurementPolicy = errors.New("experience has no procurement policy")
	ErrInvalidDetails      = errors.New("invalid entity details")
)

// An Entity is a catalog entity with its raw details document.
type Entity struct {
	ID      string
	Type    string
	Details []byte
}

// An Experience is a Private Marketplace storefront.
type Experience struct {
	ID                  string   `json:"-"`
	AdminStatus         string   `json:"AdminStatus"`
	Status              string   `json:"Status"`
	ProcurementPolicies []string `json:"ProcurementPolicies"`
}

// ParseExperience decodes the details document of an experience entity.
func ParseExperience(e Entity) (Experience, error) {
	var x Experience
	if err := json.Unmarshal(e.Details, &x); err != nil {
		return Experience{}, fmt.Errorf("%w: experience %q: %w", ErrInvalidDetails, e.ID, err)
	}
	x.ID = e.ID
	return x, nil
}

// ProcurementPolicy returns the first attached procurement policy.
func (x Experience) ProcurementPolicy() (string, error) {
	if len(x.ProcurementPolicies) == 0 || x.ProcurementPolicies[0] == "" {
		return "", fmt.Errorf("experience %q: %w", x.ID, ErrNoProcurementPolicy)
	}
	return x.ProcurementPolicies[0], nil
}

// Syncable reports whether the experience takes part in a sync: no admin
// override, enabled and bound to a procurement policy.
func (x Experience) Syncable() bool {
	_, err := x.ProcurementPolicy()
	return x.AdminStatus == "" && x.Status == ExperienceStatusEnabled && err == nil
}

// An Audience binds principals to an experience.
type Audience struct {
	ID           string   `json:"-"`
	ExperienceID string   `json:"ExperienceId"`
	Principals   []string `json:"Principals"`
}

func ParseAudience(e Entity) (Audience, error) {
	var a Audience
	if err := json.Unmarshal(e.Details, &a); err != nil {
		return Audience{}, fmt.Errorf("%w: audience %q: %w", ErrInvalidDetails, e.ID, err)
	}
	a.ID = e.ID
	return a, nil
}

type EntityFilter struct {
	Name   string
	Values []string
}

// An EntityQuery selects one page of catalog entities.
type EntityQuery struct {
	EntityType string
	Filters    []EntityFilter
	NextToken  string
}

// An EntityPage is one page of entity identifiers. NextToken is empty on
// the last page.
type EntityPage struct {
	EntityIDs []string
	NextToken string
}
