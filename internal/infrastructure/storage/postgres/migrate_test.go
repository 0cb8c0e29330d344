package postgres

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/types"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/gold?sslmode=disable", MigrateURL("postgres://u:p@db:5432/gold?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/gold", MigrateURL("postgresql://u@db/gold"))
	assert.Equal(t, "pgx5://already", MigrateURL("pgx5://already"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ups, downs := 0, 0
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			ups++
		case strings.HasSuffix(f, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
	assert.Equal(t, len(files), ups+downs)
}

var rateColumn = regexp.MustCompile(`(?m)^\s+(\w*rate\w*)\s+NUMERIC\((\d+), (\d+)\)`)

func TestRateColumnsMatchRateScale(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)

	found := 0
	for _, f := range files {
		raw, err := fs.ReadFile(migrationsFS, f)
		require.NoError(t, err)
		for _, m := range rateColumn.FindAllStringSubmatch(string(raw), -1) {
			found++
			assert.Equal(t, "12", m[2], "%s %s precision", f, m[1])
			assert.Equal(t, fmt.Sprint(types.RatePlaces), m[3], "%s %s scale", f, m[1])
		}
	}
	assert.Equal(t, 4, found)
}
