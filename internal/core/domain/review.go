package domain

import "time"

type ReviewActionType string

const (
	ActionClaim    ReviewActionType = "claim"
	ActionRelease  ReviewActionType = "release"
	ActionAccept   ReviewActionType = "accept"
	ActionOverride ReviewActionType = "override"
	ActionReject   ReviewActionType = "reject"
	ActionAssign   ReviewActionType = "assign"
)

// ResolveActionType maps a resolve decision to its audit action kind.
func ResolveActionType(predicted, final Category) ReviewActionType {
	if predicted == final {
		return ActionAccept
	}
	return ActionOverride
}

// ReviewAction is one append-only audit record. One row per successful
// state transition, written in the same transaction as the transition.
type ReviewAction struct {
	ID              string           `json:"id"`
	DocumentID      string           `json:"document_id"`
	ReviewerID      *string          `json:"reviewer_id,omitempty"`
	Action          ReviewActionType `json:"action"`
	FromCategory    *Category        `json:"from_category,omitempty"`
	ToCategory      *Category        `json:"to_category,omitempty"`
	Comment         *string          `json:"comment,omitempty"`
	DurationSeconds *int64           `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type ReviewerRole string

const (
	RoleReviewer ReviewerRole = "reviewer"
	RoleAdmin    ReviewerRole = "admin"
)

func (r ReviewerRole) CanReview() bool {
	return r == RoleReviewer || r == RoleAdmin
}

// Reviewer identity as supplied by the upstream auth collaborator.
type Reviewer struct {
	ID   string
	Role ReviewerRole
}

// ResolveRequest carries a resolve decision, optionally correcting
// applicant fields captured at upload time.
type ResolveRequest struct {
	DocumentID        string
	FinalCategory     Category
	ApplicantName     *string
	ApplicantLastname *string
	Comment           *string
}
