// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterUser(ctx context.Context, req Registration) (*Profile, error)
	Authenticate(ctx context.Context, nationalID, password string) (*Profile, error)
	GetUser(ctx context.Context, nationalID string) (*Profile, error)
	ResolveBorrower(ctx context.Context, nationalID string) (uuid.UUID, error)
	Deactivate(ctx context.Context, nationalID string) (*Profile, error)
}
