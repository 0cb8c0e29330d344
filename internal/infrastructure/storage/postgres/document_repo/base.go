// Package document_repo provides PostgreSQL implementations of the
// purchase, invoice, job card and return repositories.
// Line items are stored as JSONB on the document row.
package document_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/domain"
	"goldshop/internal/infrastructure/storage/postgres"
)

const sqlStateUniqueViolation = "23505"

// BaseDocumentRepo provides common CRUD operations for document tables.
type BaseDocumentRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
}

// NewBaseDocumentRepo creates a new base document repository. The column
// list is taken from the db tags of T.
func NewBaseDocumentRepo[T any](txm *postgres.TxManager, tableName, entityName string) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseDocumentRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// Create inserts a new document.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, doc *T) error {
	if err := precision.Normalize(doc); err != nil {
		return apperror.NewInternal(err)
	}
	data := postgres.FilterColumns(postgres.StructToMap(doc), r.selectCols)

	sql, args, err := r.Builder().Insert(r.tableName).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
			return apperror.NewConflict(r.entityName+" already exists").
				WithDetail("constraint", pgErr.ConstraintName)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes doc with optimistic locking. Services bump the version
// (entity.BaseEntity.Touch) before calling Update, so the stored row must
// still carry the previous version.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, doc *T) error {
	if err := precision.Normalize(doc); err != nil {
		return apperror.NewInternal(err)
	}
	all := postgres.StructToMap(doc)

	docID, ok := all["id"]
	if !ok {
		return fmt.Errorf("entity has no 'id' field")
	}
	version, ok := all["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	data := postgres.FilterColumns(all, r.selectCols, "id", "created_at", "created_by")

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(data).
		Where(squirrel.Eq{"id": docID}).
		Where(squirrel.Eq{"version": version - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entityName, docID)
	}
	return nil
}

func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

func (r *BaseDocumentRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, docID id.ID) (*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := new(T)
	if err := pgxscan.Get(ctx, r.querier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(r.entityName, docID)
		}
		return nil, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	if err := precision.Normalize(doc); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return doc, nil
}

// GetByID retrieves a document by ID. Deleted documents are returned;
// services decide how to treat them.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, docID id.ID) (*T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}), docID)
}

// GetForUpdate retrieves document with row lock.
func (r *BaseDocumentRepo[T]) GetForUpdate(ctx context.Context, docID id.ID) (*T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID)
}

// ApplyFilter adds the DocumentFilter predicates shared by every document
// table: newest first, bounded by Limit.
func ApplyFilter(q squirrel.SelectBuilder, filter domain.DocumentFilter) squirrel.SelectBuilder {
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"is_deleted": false})
	}
	if filter.PartyID != nil {
		q = q.Where(squirrel.Eq{"party_id": *filter.PartyID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.Lt{"date": *filter.DateTo})
	}
	q = q.OrderBy("date DESC", "created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

// List retrieves documents matching filter.
func (r *BaseDocumentRepo[T]) List(ctx context.Context, filter domain.DocumentFilter) ([]*T, error) {
	sql, args, err := ApplyFilter(r.baseSelect(), filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var docs []*T
	if err := pgxscan.Select(ctx, r.querier(ctx), &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	for _, doc := range docs {
		if err := precision.Normalize(doc); err != nil {
			return nil, apperror.NewInternal(err)
		}
	}
	return docs, nil
}
