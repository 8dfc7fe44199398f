package models

import (
	"fmt"
	"strings"
	"time"
)

// ReviewStatus enumerates the review lifecycle of a record.
type ReviewStatus string

const (
	// ReviewNotApplicable marks inspections without issues; they are
	// archived automatically and never require supervisor action.
	ReviewNotApplicable ReviewStatus = "NOT_APPLICABLE"
	// ReviewPending marks records awaiting supervisor sign-off.
	ReviewPending ReviewStatus = "PENDING"
	// ReviewReviewed is the terminal, manually reached state.
	ReviewReviewed ReviewStatus = "REVIEWED"
)

// IsValid reports whether the status is a recognized value.
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewNotApplicable, ReviewPending, ReviewReviewed:
		return true
	}
	return false
}

// rank orders statuses by how advanced they are, so refresh merges can
// prefer the further-along state on conflict.
func (s ReviewStatus) rank() int {
	switch s {
	case ReviewReviewed:
		return 2
	case ReviewNotApplicable:
		return 1
	default:
		return 0
	}
}

// MoreAdvancedThan reports whether s is further along the review lifecycle
// than other.
func (s ReviewStatus) MoreAdvancedThan(other ReviewStatus) bool {
	return s.rank() > other.rank()
}

// ReviewState carries the review fields embedded in both record kinds.
// Reviewer attribution is stored structurally; the legacy embedded-suffix
// note format is only ever parsed on import or rendered for display.
type ReviewState struct {
	Status       ReviewStatus `db:"review_status" json:"status"`
	ReviewerID   *string      `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewerName *string      `db:"reviewer_name" json:"reviewer_name,omitempty"`
	ReviewedAt   *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Notes        *string      `db:"review_notes" json:"notes,omitempty"`
}

// InitialReviewState returns the state a freshly created inspection gets:
// auto-archived when issue-free, pending otherwise.
func InitialReviewState(hasIssues bool) ReviewState {
	if hasIssues {
		return ReviewState{Status: ReviewPending}
	}
	return ReviewState{Status: ReviewNotApplicable}
}

// Reviewed builds the terminal state for a completed review.
func Reviewed(reviewerID, reviewerName, notes string, at time.Time) ReviewState {
	return ReviewState{
		Status:       ReviewReviewed,
		ReviewerID:   &reviewerID,
		ReviewerName: &reviewerName,
		ReviewedAt:   &at,
		Notes:        &notes,
	}
}

const legacyAttributionSeparator = "\n\nRevisado por "

const legacyTimestampLayout = "02/01/2006 15:04"

// DisplayNote renders the note with the attribution suffix the legacy
// system embedded in the stored text. Only used for presentation.
func (r ReviewState) DisplayNote() string {
	if r.Status != ReviewReviewed {
		return ""
	}
	note := ""
	if r.Notes != nil {
		note = *r.Notes
	}
	name := "Supervisor"
	if r.ReviewerName != nil && strings.TrimSpace(*r.ReviewerName) != "" {
		name = *r.ReviewerName
	}
	when := ""
	if r.ReviewedAt != nil {
		when = r.ReviewedAt.Format(legacyTimestampLayout)
	}
	return fmt.Sprintf("%s%s%s el %s", note, legacyAttributionSeparator, name, when)
}

// ParseLegacyReviewNote splits a legacy stored note of the form
// "<note>\n\nRevisado por <name> el <dd/mm/yyyy hh:mm>" back into its
// parts. Returns ok=false when the raw text carries no attribution suffix.
func ParseLegacyReviewNote(raw string) (note, reviewerName string, reviewedAt time.Time, ok bool) {
	idx := strings.LastIndex(raw, legacyAttributionSeparator)
	if idx < 0 {
		return raw, "", time.Time{}, false
	}
	note = raw[:idx]
	suffix := raw[idx+len(legacyAttributionSeparator):]
	elIdx := strings.LastIndex(suffix, " el ")
	if elIdx < 0 {
		return raw, "", time.Time{}, false
	}
	reviewerName = suffix[:elIdx]
	ts, err := time.Parse(legacyTimestampLayout, suffix[elIdx+4:])
	if err != nil {
		return raw, "", time.Time{}, false
	}
	return note, reviewerName, ts, true
}
