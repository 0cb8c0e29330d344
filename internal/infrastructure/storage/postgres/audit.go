package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/posting"
)

var _ posting.AuditSink = (*AuditStore)(nil)

// CompressionAlgo is stored in sys_audit.compression_algo.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the snapshot size above which snapshots are
// stored compressed. Invoices with many lines cross it.
const DefaultCompressThreshold = 10 * 1024

// AuditEntry is one row of sys_audit.
type AuditEntry struct {
	ID                 id.ID           `db:"id"`
	EntityType         string          `db:"entity_type"`
	EntityID           id.ID           `db:"entity_id"`
	Action             string          `db:"action"`
	EventKey           string          `db:"event_key"`
	Actor              string          `db:"actor"`
	OperationID        string          `db:"operation_id"`
	Snapshot           json.RawMessage `db:"snapshot"`
	SnapshotCompressed []byte          `db:"snapshot_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`
	CreatedAt          time.Time       `db:"created_at"`
}

// snapshotCodec packs posting snapshots for storage.
type snapshotCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

func newSnapshotCodec(threshold int) (*snapshotCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &snapshotCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// pack fills the snapshot columns of e from raw.
func (c *snapshotCodec) pack(e *AuditEntry, raw []byte) {
	if len(raw) <= c.threshold {
		e.Snapshot = raw
		e.SnapshotCompressed = nil
		e.CompressionAlgo = CompressionNone
		return
	}
	e.Snapshot = nil
	e.SnapshotCompressed = c.encoder.EncodeAll(raw, nil)
	e.CompressionAlgo = CompressionZstd
}

// unpack restores e.Snapshot from the compressed column.
func (c *snapshotCodec) unpack(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.SnapshotCompressed) == 0 {
		return nil
	}
	raw, err := c.decoder.DecodeAll(e.SnapshotCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress snapshot %s: %w", e.ID, err)
	}
	e.Snapshot = raw
	e.SnapshotCompressed = nil
	return nil
}

// AuditStore writes the normalized document snapshot of every posted
// event to sys_audit, in the posting transaction.
type AuditStore struct {
	txManager *TxManager
	codec     *snapshotCodec
}

// NewAuditStore creates an audit store compressing snapshots larger than
// DefaultCompressThreshold.
func NewAuditStore(txManager *TxManager) (*AuditStore, error) {
	codec, err := newSnapshotCodec(DefaultCompressThreshold)
	if err != nil {
		return nil, err
	}
	return &AuditStore{txManager: txManager, codec: codec}, nil
}

// Record implements posting.AuditSink.
func (s *AuditStore) Record(ctx context.Context, rec posting.AuditRecord) error {
	raw, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	entry := AuditEntry{
		ID:          id.New(),
		EntityType:  rec.EntityType,
		EntityID:    rec.EntityID,
		Action:      rec.Action,
		EventKey:    rec.EventKey,
		Actor:       rec.Actor,
		OperationID: appctx.OperationID(ctx),
		CreatedAt:   rec.CreatedAt,
	}
	if entry.Actor == "" {
		entry.Actor = appctx.Actor(ctx)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.codec.pack(&entry, raw)

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, event_key, actor, operation_id,
			snapshot, snapshot_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.EventKey, entry.Actor, entry.OperationID,
		entry.Snapshot, entry.SnapshotCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit %s/%s: %w", rec.EntityType, rec.Action, err)
	}
	return nil
}

// History returns the audit trail of one document, newest first, with
// snapshots decompressed.
func (s *AuditStore) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, event_key, actor, operation_id,
		       snapshot, snapshot_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.EventKey, &e.Actor, &e.OperationID,
			&e.Snapshot, &e.SnapshotCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := s.codec.unpack(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
