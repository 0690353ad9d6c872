package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgxURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/agri", PgxURL("postgres://u:p@localhost:5432/agri"))
	assert.Equal(t, "pgx5://localhost/agri", PgxURL("postgresql://localhost/agri"))
	assert.Equal(t, "pgx5://localhost/agri", PgxURL("pgx5://localhost/agri"))
}

func TestRun_Validation(t *testing.T) {
	require.Error(t, Run("", "up"))
	require.Error(t, Run("postgres://localhost/agri", "sideways"))
}
