package wal

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndSyncAdvancesFlushedLSN(t *testing.T) {
	w, err := OpenWriter(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	require.Zero(t, w.GetFlushedLSN())

	lsn1, err := w.Append([]byte("first"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), lsn1)

	lsn2, err := w.Append([]byte("second"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), lsn2)

	require.Zero(t, w.GetFlushedLSN())
	require.NoError(t, w.Sync())
	require.Equal(t, uint64(2), w.GetFlushedLSN())
}

func TestAppendOperationRoundTripsJSON(t *testing.T) {
	w, err := OpenWriter(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	lsn, err := w.AppendOperation(&Operation{Type: OpInsert, TxnID: 7, Table: "widgets"})
	require.NoError(t, err)
	require.Equal(t, uint64(1), lsn)

	data, err := os.ReadFile(w.current.filePath)
	require.NoError(t, err)
	var got Operation
	require.NoError(t, json.Unmarshal(data[recordHeaderSize:], &got))
	require.Equal(t, OpInsert, got.Type)
	require.Equal(t, uint64(7), got.TxnID)
	require.Equal(t, "widgets", got.Table)
}

func TestReopenWriterStartsFreshSegmentAfterExisting(t *testing.T) {
	dir := t.TempDir()
	w1, err := OpenWriter(dir)
	require.NoError(t, err)
	_, err = w1.Append([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w1.Close())

	w2, err := OpenWriter(dir)
	require.NoError(t, err)
	defer w2.Close()
	require.NotEqual(t, w1.current.id, w2.current.id)
}
