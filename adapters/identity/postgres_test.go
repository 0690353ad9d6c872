package identity

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/agriauth/core"
)

var principalColumns = []string{
	"id", "role", "status", "phone", "institution_code", "account_number", "secret_hash", "created_at",
}

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_FindByPhone(t *testing.T) {
	repo, mock := newMockRepository(t)
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE phone = $1")).
		WithArgs("254700000001").
		WillReturnRows(sqlmock.NewRows(principalColumns).
			AddRow("lender-1", "lender", "active", "254700000001", "", "", "", created))

	p, err := repo.FindByPhone(context.Background(), "254700000001")
	require.NoError(t, err)
	assert.Equal(t, "lender-1", p.ID)
	assert.Equal(t, core.RoleLender, p.Role)
	assert.True(t, p.Active())
	assert.True(t, created.Equal(p.CreatedAt))
}

func TestPostgresRepository_FindByInstitution(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE institution_code = $1 AND account_number = $2")).
		WithArgs("KCB", "0042").
		WillReturnRows(sqlmock.NewRows(principalColumns).
			AddRow("admin-1", "institution-admin", "active", "", "KCB", "0042", "$2a$04$hash", time.Now()))

	p, err := repo.FindByInstitution(context.Background(), "KCB", "0042")
	require.NoError(t, err)
	assert.Equal(t, core.RoleInstitutionAdmin, p.Role)
	assert.Equal(t, "$2a$04$hash", p.SecretHash)
}

func TestPostgresRepository_Disabled(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("lender-off").
		WillReturnRows(sqlmock.NewRows(principalColumns).
			AddRow("lender-off", "lender", "disabled", "254700000009", "", "", "", time.Now()))

	p, err := repo.GetByID(context.Background(), "lender-off")
	require.NoError(t, err)
	assert.Equal(t, core.StatusDisabled, p.Status)
	assert.False(t, p.Active())
}

func TestPostgresRepository_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(principalColumns))

	_, err := repo.GetByID(context.Background(), "ghost")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestPostgresRepository_QueryError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE phone = $1")).
		WithArgs("254700000001").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FindByPhone(context.Background(), "254700000001")
	require.ErrorIs(t, err, core.ErrStoreOperationFailed)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}
