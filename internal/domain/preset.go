package domain

import (
	"time"

	"github.com/google/uuid"
)

// FinePreset is a reusable (amount, reason) template. Fines issued from it are
// independent copies.
type FinePreset struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Amount         int64     `json:"amount"`
	Description    *string   `json:"description,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// PresetPatch updates a preset. Nil fields are left unchanged.
type PresetPatch struct {
	Name        *string `json:"name,omitempty"`
	Amount      *int64  `json:"amount,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

func (p PresetPatch) Validate() error {
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return ErrValidation(err.Error())
		}
	}
	if p.Amount != nil {
		if err := ValidatePositiveAmount(*p.Amount); err != nil {
			return ErrValidation(err.Error())
		}
	}
	return nil
}

// Apply returns the patched preset and the fields that changed.
func (p PresetPatch) Apply(preset FinePreset) (FinePreset, Changes) {
	next := preset
	changes := Changes{}
	if p.Name != nil && *p.Name != preset.Name {
		changes.Set("name", preset.Name, *p.Name)
		next.Name = *p.Name
	}
	if p.Amount != nil && *p.Amount != preset.Amount {
		changes.Set("amount", preset.Amount, *p.Amount)
		next.Amount = *p.Amount
	}
	if p.Description != nil {
		var desc *string
		if *p.Description != "" {
			d := *p.Description
			desc = &d
		}
		if !equalStrPtr(preset.Description, desc) {
			changes.Set("description", preset.Description, desc)
			next.Description = desc
		}
	}
	if p.Active != nil && *p.Active != preset.Active {
		changes.Set("active", preset.Active, *p.Active)
		next.Active = *p.Active
	}
	return next, changes
}
