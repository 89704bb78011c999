package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMigrateURL(t *testing.T) {
	t.Parallel()

	got, err := toMigrateURL("postgres://sabia:pw@localhost:5432/sabia?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://sabia:pw@localhost:5432/sabia?sslmode=disable", got)

	got, err = toMigrateURL("postgresql://localhost/sabia")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://localhost/sabia", got)

	_, err = toMigrateURL("mysql://localhost/sabia")
	assert.Error(t, err)
}
