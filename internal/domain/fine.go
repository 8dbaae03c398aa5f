package domain

import (
	"time"

	"github.com/google/uuid"
)

// FineStatus is the closed set of fine states.
type FineStatus string

const (
	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"

	// fineUnissued is the implicit state before a fine row exists.
	fineUnissued FineStatus = ""
)

// Valid reports whether s is a known persisted status.
func (s FineStatus) Valid() bool {
	switch s {
	case FinePending, FinePaid:
		return true
	}
	return false
}

// ParseFineStatus converts user input to a FineStatus.
func ParseFineStatus(s string) (FineStatus, error) {
	st := FineStatus(s)
	if !st.Valid() {
		return "", ErrValidation("unknown fine status: " + s)
	}
	return st, nil
}

// outstanding is the amount a fine in state s contributes to its player's balance.
func (s FineStatus) outstanding(amount int64) int64 {
	if s == FinePending {
		return amount
	}
	return 0
}

// Fine represents a fines row.
type Fine struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID string     `json:"organization_id"`
	PlayerID       uuid.UUID  `json:"player_id"`
	Amount         int64      `json:"amount"`
	Reason         string     `json:"reason"`
	Status         FineStatus `json:"status"`
	IssuedByUserID string     `json:"issued_by_user_id"`
	IssuedAt       time.Time  `json:"issued_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FineTransition is the outcome of moving a fine between states: the fine as it
// must be persisted, the balance delta for its player, and the audit snapshot.
type FineTransition struct {
	From         FineStatus
	To           FineStatus
	Fine         Fine
	BalanceDelta int64
	Action       AuditAction
	Changes      Changes
}

// NewFine builds a pending fine and the transition that issues it.
func NewFine(org string, playerID uuid.UUID, amount int64, reason, issuedBy string, now time.Time) (FineTransition, error) {
	if err := ValidatePositiveAmount(amount); err != nil {
		return FineTransition{}, ErrValidation(err.Error())
	}
	if err := ValidateReason(reason); err != nil {
		return FineTransition{}, ErrValidation(err.Error())
	}
	if issuedBy == "" {
		return FineTransition{}, ErrValidation("issuer user id is required")
	}
	f := Fine{
		ID:             uuid.New(),
		OrganizationID: org,
		PlayerID:       playerID,
		Amount:         amount,
		Reason:         reason,
		Status:         fineUnissued,
		IssuedByUserID: issuedBy,
		IssuedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return TransitionFine(f, FinePending, now)
}

// TransitionFine is the only place fine state changes are decided.
// Allowed moves: unissued -> pending, pending -> paid. Everything else is an
// InvalidTransition, including paid -> paid.
func TransitionFine(f Fine, to FineStatus, now time.Time) (FineTransition, error) {
	from := f.Status
	next := f
	changes := Changes{}

	var action AuditAction
	switch {
	case from == fineUnissued && to == FinePending:
		action = ActionCreated
		next.Status = FinePending
		next.PaidAt = nil
		changes.Set("player_id", nil, f.PlayerID.String())
		changes.Set("amount", nil, f.Amount)
		changes.Set("reason", nil, f.Reason)
		changes.Set("status", nil, FinePending)
		changes.Set("issued_by_user_id", nil, f.IssuedByUserID)
		changes.Set("issued_at", nil, f.IssuedAt)
	case from == FinePending && to == FinePaid:
		action = ActionPaid
		paidAt := now
		next.Status = FinePaid
		next.PaidAt = &paidAt
		next.UpdatedAt = now
		changes.Set("status", FinePending, FinePaid)
		changes.Set("paid_at", nil, paidAt)
	default:
		return FineTransition{}, ErrInvalidTransition("fine", f.ID.String(), from, to)
	}

	return FineTransition{
		From:         from,
		To:           to,
		Fine:         next,
		BalanceDelta: to.outstanding(f.Amount) - from.outstanding(f.Amount),
		Action:       action,
		Changes:      changes,
	}, nil
}

// FineFilter narrows ListFines. Nil fields match everything.
type FineFilter struct {
	PlayerID *uuid.UUID
	Status   *FineStatus
	Limit    int
}

// IssueFineParams holds inputs for issuing a fine.
type IssueFineParams struct {
	OrganizationID string
	PlayerID       uuid.UUID
	Amount         int64
	Reason         string
	IssuedByUserID string
}

// IssueFromPresetParams issues a fine by copying a preset's amount and name.
type IssueFromPresetParams struct {
	OrganizationID string
	PlayerID       uuid.UUID
	PresetID       uuid.UUID
	IssuedByUserID string
}

// MarkPaidParams holds inputs for settling a fine.
type MarkPaidParams struct {
	OrganizationID string
	FineID         uuid.UUID
	ActorUserID    string
}

// FineResult is returned by ledger commands.
type FineResult struct {
	Fine   *Fine
	Player *Player
	Events []OutboxDraft
}
