package shared

import (
	"strings"

	"github.com/google/uuid"
)

// CurrentUser identifies the authenticated caller. It is passed explicitly to
// every operation that records an author.
type CurrentUser struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
}

// IsZero reports whether no user is set.
func (u CurrentUser) IsZero() bool {
	return u.ID == uuid.Nil
}

// DisplayName returns the best human readable name for the user.
func (u CurrentUser) DisplayName() string {
	for _, s := range []string{u.Name, u.Username, u.Email} {
		if v := strings.TrimSpace(s); v != "" {
			return v
		}
	}
	return u.ID.String()
}
