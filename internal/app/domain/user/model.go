package user

import "time"

// Roles a user can register with. The role decides which side of the
// board the account operates on: seekers apply, employers post.
const (
	RoleJobSeeker = "job_seeker"
	RoleEmployer  = "employer"
)

// User represents a registered account. Password holds the bcrypt hash
// and is never serialized.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidRole reports whether s is a recognized user role.
func ValidRole(s string) bool {
	return s == RoleJobSeeker || s == RoleEmployer
}
