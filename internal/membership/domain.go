// internal/membership/domain.go
package membership

import (
	"time"

	"github.com/google/uuid"

	"infobooks/internal/domain"
)

// Profile is a user as returned to clients. It never carries the credential.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	NationalID string    `json:"national_id"`
	IsAdmin    bool      `json:"is_admin"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

func newProfile(u domain.User) *Profile {
	return &Profile{
		ID:         u.ID,
		Name:       u.Name,
		NationalID: u.NationalID,
		IsAdmin:    u.IsAdmin,
		Active:     u.Active,
		CreatedAt:  u.CreatedAt,
	}
}

// Registration holds the fields a new member submits.
type Registration struct {
	Name       string `json:"name"`
	NationalID string `json:"national_id"`
	Password   string `json:"password"`
}
