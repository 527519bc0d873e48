package job

import "time"

// Employment types a posting can carry.
const (
	TypeFullTime = "full_time"
	TypePartTime = "part_time"
	TypeContract = "contract"
)

// Job represents a posting created by an employer. Salary is free-form
// text ("$120,000 - $150,000") and may be empty.
type Job struct {
	ID             string    `json:"id"`
	EmployerID     string    `json:"employer_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Salary         string    `json:"salary,omitempty"`
	EmploymentType string    `json:"employment_type"`
	PostedAt       time.Time `json:"posted_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ValidEmploymentType reports whether s is a recognized employment type.
func ValidEmploymentType(s string) bool {
	return s == TypeFullTime || s == TypePartTime || s == TypeContract
}
