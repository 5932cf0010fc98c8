package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/mixtape/internal/shared"
)

// Tier is a subscription plan.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// ParseTier converts s into a [Tier], rejecting unknown plans.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierPremium:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown tier %q", shared.ErrInvalidInput, s)
	}
}

func (t Tier) String() string { return string(t) }

// User is a local account. ExternalID is the account's user ID on the playlist hosting service.
type User struct {
	entity
	email      string
	name       string
	externalID string
	tier       Tier
}

// NewUser creates a free-tier [User].
func NewUser(sequence int, email, name string) *User {
	return &User{
		entity: newEntity(sequence),
		email:  email,
		name:   name,
		tier:   TierFree,
	}
}

func (u *User) Email() string      { return u.email }
func (u *User) Name() string       { return u.name }
func (u *User) ExternalID() string { return u.externalID }
func (u *User) Tier() Tier         { return u.tier }

func (u *User) SetEmail(email string)     { u.email = email }
func (u *User) SetName(name string)       { u.name = name }
func (u *User) SetExternalID(id string)   { u.externalID = id }
func (u *User) SetTier(tier Tier)         { u.tier = tier }

// Validate implements [Model].
func (u *User) Validate() error {
	if u.email == "" || !strings.Contains(u.email, "@") {
		return fmt.Errorf("%w: invalid email %q", shared.ErrInvalidInput, u.email)
	}
	if u.name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrInvalidInput)
	}
	if _, err := ParseTier(string(u.tier)); err != nil {
		return err
	}
	return nil
}
