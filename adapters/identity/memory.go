package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

// MemoryRepository is an in-memory ports.PrincipalRepository used in
// development and tests.
type MemoryRepository struct {
	mu            sync.RWMutex
	byID          map[string]*core.Principal
	byPhone       map[string]*core.Principal
	byInstitution map[string]*core.Principal
}

var _ ports.PrincipalRepository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:          make(map[string]*core.Principal),
		byPhone:       make(map[string]*core.Principal),
		byInstitution: make(map[string]*core.Principal),
	}
}

func institutionKey(code, account string) string {
	return code + ":" + account
}

// Add registers p. Phone and institution credentials are normalised first.
func (r *MemoryRepository) Add(p *core.Principal) error {
	if p.ID == "" {
		return fmt.Errorf("principal id is required: %w", core.ErrInvalidCredential)
	}
	cp := *p
	if cp.Phone != "" {
		phone, err := core.NormalizePhone(cp.Phone)
		if err != nil {
			return fmt.Errorf("principal %s: %w", cp.ID, err)
		}
		cp.Phone = phone
	}
	if cp.InstitutionCode != "" || cp.AccountNumber != "" {
		code, account, err := core.ParseInstitutionCredential(institutionKey(cp.InstitutionCode, cp.AccountNumber))
		if err != nil {
			return fmt.Errorf("principal %s: %w", cp.ID, err)
		}
		cp.InstitutionCode, cp.AccountNumber = code, account
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[cp.ID] = &cp
	if cp.Phone != "" {
		r.byPhone[cp.Phone] = &cp
	}
	if cp.InstitutionCode != "" {
		r.byInstitution[institutionKey(cp.InstitutionCode, cp.AccountNumber)] = &cp
	}
	return nil
}

func (r *MemoryRepository) lookup(m map[string]*core.Principal, key string) (*core.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := m[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// GetByID implements ports.PrincipalRepository.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*core.Principal, error) {
	return r.lookup(r.byID, id)
}

// FindByPhone implements ports.PrincipalRepository.
func (r *MemoryRepository) FindByPhone(ctx context.Context, phone string) (*core.Principal, error) {
	return r.lookup(r.byPhone, phone)
}

// FindByInstitution implements ports.PrincipalRepository.
func (r *MemoryRepository) FindByInstitution(ctx context.Context, code, account string) (*core.Principal, error) {
	return r.lookup(r.byInstitution, institutionKey(code, account))
}
