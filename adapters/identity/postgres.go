package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

const selectPrincipal = `SELECT id, role, status, COALESCE(phone, ''), COALESCE(institution_code, ''),
	COALESCE(account_number, ''), secret_hash, created_at FROM principals`

// PostgresRepository reads principals from the principals table.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.PrincipalRepository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a principal repository over db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID implements ports.PrincipalRepository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*core.Principal, error) {
	return r.queryOne(ctx, selectPrincipal+` WHERE id = $1`, id)
}

// FindByPhone implements ports.PrincipalRepository.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (*core.Principal, error) {
	return r.queryOne(ctx, selectPrincipal+` WHERE phone = $1`, phone)
}

// FindByInstitution implements ports.PrincipalRepository.
func (r *PostgresRepository) FindByInstitution(ctx context.Context, code, account string) (*core.Principal, error) {
	return r.queryOne(ctx, selectPrincipal+` WHERE institution_code = $1 AND account_number = $2`, code, account)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*core.Principal, error) {
	var (
		p      core.Principal
		role   string
		status string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &role, &status, &p.Phone, &p.InstitutionCode, &p.AccountNumber, &p.SecretHash, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	p.Role = core.Role(role)
	p.Status = core.PrincipalStatus(status)
	return &p, nil
}
