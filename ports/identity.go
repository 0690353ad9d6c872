package ports

import (
	"context"

	"github.com/layer-3/agriauth/core"
)

// PrincipalRepository looks up registered principals. Implementations return
// core.ErrNotFound when no principal matches.
type PrincipalRepository interface {
	GetByID(ctx context.Context, id string) (*core.Principal, error)
	FindByPhone(ctx context.Context, phone string) (*core.Principal, error)
	FindByInstitution(ctx context.Context, code, account string) (*core.Principal, error)
}
