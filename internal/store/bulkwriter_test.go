package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore captures BatchWrite calls for batch-bound assertions
type recordingStore struct {
	Store
	batches [][]Op
}

func (r *recordingStore) BatchWrite(ctx context.Context, ops []Op) error {
	batch := make([]Op, len(ops))
	copy(batch, ops)
	r.batches = append(r.batches, batch)
	return nil
}

func TestBulkWriterFlushesAtLimit(t *testing.T) {
	rec := &recordingStore{}
	w := NewBulkWriter(rec)
	ctx := context.Background()

	// 600 subdomains with a 10-entry checklist is 6600 ops: at least 14
	// commits of at most 500 operations each
	total := 0
	for i := 0; i < 600; i++ {
		require.NoError(t, w.Add(ctx, PutOp(&Subdomain{ID: fmt.Sprintf("sub-%d", i)})))
		total++
		for j := 0; j < 10; j++ {
			require.NoError(t, w.Add(ctx, PutOp(&Vulnerability{ID: fmt.Sprintf("v-%d-%d", i, j)})))
			total++
		}
	}
	require.NoError(t, w.Flush(ctx))

	assert.Equal(t, 6600, total)
	assert.GreaterOrEqual(t, w.Commits(), 14)
	got := 0
	for _, batch := range rec.batches {
		assert.LessOrEqual(t, len(batch), MaxBatchSize)
		got += len(batch)
	}
	assert.Equal(t, total, got)
}

func TestBulkWriterFlushEmptyIsNoop(t *testing.T) {
	rec := &recordingStore{}
	w := NewBulkWriter(rec)
	require.NoError(t, w.Flush(context.Background()))
	assert.Zero(t, w.Commits())
	assert.Empty(t, rec.batches)
}
