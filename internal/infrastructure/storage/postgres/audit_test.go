package postgres

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/id"
)

func TestSnapshotCodec_SmallSnapshotStaysPlain(t *testing.T) {
	codec, err := newSnapshotCodec(64)
	require.NoError(t, err)

	raw := []byte(`{"number":"INV-2026-00001","grand_total":99.75}`)
	var e AuditEntry
	codec.pack(&e, raw)

	assert.Equal(t, CompressionNone, e.CompressionAlgo)
	assert.Equal(t, raw, []byte(e.Snapshot))
	assert.Nil(t, e.SnapshotCompressed)
	require.NoError(t, codec.unpack(&e))
	assert.Equal(t, raw, []byte(e.Snapshot))
}

func TestSnapshotCodec_LargeSnapshotRoundTrips(t *testing.T) {
	codec, err := newSnapshotCodec(64)
	require.NoError(t, err)

	raw := append([]byte(`{"items":"`), bytes.Repeat([]byte("ring 916 "), 200)...)
	raw = append(raw, []byte(`"}`)...)

	e := AuditEntry{ID: id.New()}
	codec.pack(&e, raw)

	assert.Equal(t, CompressionZstd, e.CompressionAlgo)
	assert.Nil(t, e.Snapshot)
	assert.Less(t, len(e.SnapshotCompressed), len(raw))

	require.NoError(t, codec.unpack(&e))
	assert.Equal(t, raw, []byte(e.Snapshot))
	assert.Nil(t, e.SnapshotCompressed)
}

func TestSnapshotCodec_CorruptPayload(t *testing.T) {
	codec, err := newSnapshotCodec(64)
	require.NoError(t, err)

	e := AuditEntry{ID: id.New(), CompressionAlgo: CompressionZstd, SnapshotCompressed: []byte("not zstd")}
	assert.Error(t, codec.unpack(&e))
}
