package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/id"
	"goldshop/internal/domain"
)

type testRow struct {
	ID     id.ID  `db:"id"`
	Number string `db:"number"`
}

func TestApplyFilter(t *testing.T) {
	repo := NewBaseDocumentRepo[testRow](nil, "test_docs", "test_doc")
	party := id.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   domain.DocumentFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "Default",
			filter:   domain.DocumentFilter{},
			wantSQL:  "SELECT id, number FROM test_docs WHERE is_deleted = $1 ORDER BY date DESC, created_at DESC",
			wantArgs: []any{false},
		},
		{
			name:     "IncludeDeleted",
			filter:   domain.DocumentFilter{IncludeDeleted: true, Limit: 20},
			wantSQL:  "SELECT id, number FROM test_docs ORDER BY date DESC, created_at DESC LIMIT 20",
			wantArgs: nil,
		},
		{
			// uuid values are passed through driver.Valuer.
			name:     "PartyAndStatus",
			filter:   domain.DocumentFilter{PartyID: &party, Status: "unpaid"},
			wantSQL:  "SELECT id, number FROM test_docs WHERE is_deleted = $1 AND party_id = $2 AND status = $3 ORDER BY date DESC, created_at DESC",
			wantArgs: []any{false, party.String(), "unpaid"},
		},
		{
			name:     "DateRange",
			filter:   domain.DocumentFilter{DateFrom: &from, DateTo: &to},
			wantSQL:  "SELECT id, number FROM test_docs WHERE is_deleted = $1 AND date >= $2 AND date < $3 ORDER BY date DESC, created_at DESC",
			wantArgs: []any{false, from, to},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := ApplyFilter(repo.baseSelect(), tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestNewBaseDocumentRepo_Columns(t *testing.T) {
	repo := NewBaseDocumentRepo[testRow](nil, "test_docs", "test_doc")
	assert.Equal(t, []string{"id", "number"}, repo.selectCols)
}
