package domain

import (
	"time"

	"github.com/google/uuid"
)

// Actor is the authenticated caller context supplied by the identity provider.
// Every operation takes it explicitly; the core never reads tenant from ambient state.
type Actor struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role,omitempty"`
}

// Validate checks that the actor carries both a user and an organization.
func (a Actor) Validate() error {
	if a.OrganizationID == "" {
		return ErrValidation("organization id is required")
	}
	if a.UserID == "" {
		return ErrValidation("actor user id is required")
	}
	return nil
}

// Player represents a players row.
//
// Balance is a read model: it always equals the sum of the player's pending fine
// amounts and is written only by the ledger's transition primitive.
type Player struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID string    `json:"organization_id"`
	LinkedUserID   *string   `json:"linked_user_id,omitempty"`
	Name           string    `json:"name"`
	Email          *string   `json:"email,omitempty"`
	Active         bool      `json:"active"`
	Balance        int64     `json:"balance"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PlayerPatch is a caller-supplied field update. Nil fields are left unchanged.
// Balance exists only so that attempts to set it can be rejected explicitly.
type PlayerPatch struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Active       *bool   `json:"active,omitempty"`
	LinkedUserID *string `json:"linked_user_id,omitempty"`
	Balance      *int64  `json:"balance,omitempty"`
}

// Validate rejects malformed patches, including any attempt to write balance.
func (p PlayerPatch) Validate() error {
	if p.Balance != nil {
		return ErrValidation("balance is derived from fines and cannot be set")
	}
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return ErrValidation(err.Error())
		}
	}
	if p.Email != nil && *p.Email != "" {
		if err := ValidateEmail(*p.Email); err != nil {
			return ErrValidation(err.Error())
		}
	}
	if p.LinkedUserID != nil && *p.LinkedUserID == "" {
		return ErrValidation("linked user id must not be empty")
	}
	return nil
}

// Apply returns a copy of player with the patch applied and the audit changes it produced.
// An empty Changes means the patch was a no-op.
func (p PlayerPatch) Apply(player Player) (Player, Changes) {
	next := player
	changes := Changes{}
	if p.Name != nil && *p.Name != player.Name {
		changes.Set("name", player.Name, *p.Name)
		next.Name = *p.Name
	}
	if p.Email != nil {
		var email *string
		if *p.Email != "" {
			e := *p.Email
			email = &e
		}
		if !equalStrPtr(player.Email, email) {
			changes.Set("email", player.Email, email)
			next.Email = email
		}
	}
	if p.Active != nil && *p.Active != player.Active {
		changes.Set("active", player.Active, *p.Active)
		next.Active = *p.Active
	}
	if p.LinkedUserID != nil && !equalStrPtr(player.LinkedUserID, p.LinkedUserID) {
		id := *p.LinkedUserID
		changes.Set("linked_user_id", player.LinkedUserID, id)
		next.LinkedUserID = &id
	}
	return next, changes
}

// BalanceCheck compares a player's stored balance with the sum of pending fines.
type BalanceCheck struct {
	PlayerID      uuid.UUID `json:"player_id"`
	StoredBalance int64     `json:"stored_balance"`
	PendingTotal  int64     `json:"pending_total"`
}

// Drift is stored minus expected; zero when the balance invariant holds.
func (c BalanceCheck) Drift() int64 { return c.StoredBalance - c.PendingTotal }

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
