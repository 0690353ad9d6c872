package service

import (
	"context"
	"fmt"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

// IdentityRegistry resolves credentials to active principals.
type IdentityRegistry struct {
	repo ports.PrincipalRepository
}

// NewIdentityRegistry creates a registry backed by repo.
func NewIdentityRegistry(repo ports.PrincipalRepository) *IdentityRegistry {
	return &IdentityRegistry{repo: repo}
}

// Resolve looks up the principal for a credential. It fails with
// core.ErrNotFound for unknown principals and core.ErrDisabled for inactive ones.
func (r *IdentityRegistry) Resolve(ctx context.Context, kind core.CredentialKind, value string) (*core.Principal, error) {
	var (
		p   *core.Principal
		err error
	)
	switch kind {
	case core.CredentialPhone:
		phone, perr := core.NormalizePhone(value)
		if perr != nil {
			return nil, perr
		}
		p, err = r.repo.FindByPhone(ctx, phone)
	case core.CredentialInstitution:
		code, account, perr := core.ParseInstitutionCredential(value)
		if perr != nil {
			return nil, perr
		}
		p, err = r.repo.FindByInstitution(ctx, code, account)
	default:
		return nil, fmt.Errorf("credential kind %q: %w", kind, core.ErrInvalidCredential)
	}
	if err != nil {
		return nil, err
	}
	return checkActive(p)
}

// ResolveID looks up an active principal by id.
func (r *IdentityRegistry) ResolveID(ctx context.Context, id string) (*core.Principal, error) {
	p, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return checkActive(p)
}

func checkActive(p *core.Principal) (*core.Principal, error) {
	if p == nil {
		return nil, core.ErrNotFound
	}
	if !p.Active() {
		return nil, core.ErrDisabled
	}
	return p, nil
}
