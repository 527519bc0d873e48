package application

import "time"

// Statuses an application moves through. New applications start out
// pending; only the job's employer advances them.
const (
	StatusPending  = "pending"
	StatusReviewed = "reviewed"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Application represents a job seeker's submission against a posting.
// CoverLetter and Resume are optional.
type Application struct {
	ID          string    `json:"id"`
	JobSeekerID string    `json:"job_seeker_id"`
	JobID       string    `json:"job_id"`
	CoverLetter string    `json:"cover_letter,omitempty"`
	Resume      string    `json:"resume,omitempty"`
	Status      string    `json:"status"`
	AppliedAt   time.Time `json:"applied_at"`
}

// ValidStatus reports whether s is a recognized application status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusReviewed, StatusAccepted, StatusRejected:
		return true
	}
	return false
}
