package members

import "time"

// RoleType represents a member's role within the club
type RoleType string

const (
	RoleAdmin  RoleType = "admin"  // Can moderate members, games, and polls
	RoleMember RoleType = "member" // Regular club member
)

// ValidRole reports whether role is one of the two allowed values.
func ValidRole(role RoleType) bool {
	return role == RoleAdmin || role == RoleMember
}

// Member is a club member provisioned by an admin. Members sign in with
// Google; there are no passwords.
type Member struct {
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name,omitempty" db:"name"`
	Alias     string    `json:"alias,omitempty" db:"alias"`
	Picture   string    `json:"picture,omitempty" db:"picture"`
	Role      RoleType  `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Repo interface {
	// GetActive returns the active member for email, or ErrNotFound.
	GetActive(email string) (*Member, error)
	// Get returns the member regardless of active state, or ErrNotFound.
	Get(email string) (*Member, error)
	List() ([]*Member, error)
	// Upsert inserts email with the given role, or reactivates an existing
	// row and updates its role.
	Upsert(email string, role RoleType) error
	UpdateProfile(email, name, picture string) error
	SetAlias(email, alias string) error
	SetRole(email string, role RoleType) error
	Delete(email string) error
}
