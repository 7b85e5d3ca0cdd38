package buffer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/homechecks/internal/lib/logger/sl"
	"github.com/speedwagon-io/homechecks/internal/model"
)

func newTestBuffer(t *testing.T) *SQLiteBuffer {
	t.Helper()
	buf, err := NewSQLiteBuffer(sl.Discard(), filepath.Join(t.TempDir(), "nested", "buffer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	return buf
}

func testBatch(check string) *model.Batch {
	return model.NewBatch(check, []model.Observation{
		{Name: check + ".temperature", Value: 21.5, Type: model.MetricGauge, Tags: []string{"id:d1"}},
		{Name: check + ".energy", Value: 1000, Type: model.MetricMonotonicCount, Tags: []string{"id:d1"}},
	})
}

func TestStoreAndGetPending(t *testing.T) {
	ctx := context.Background()
	buf := newTestBuffer(t)

	first := testBatch("cozytouch")
	second := testBatch("sbfspot")
	require.NoError(t, buf.Store(ctx, first))
	require.NoError(t, buf.Store(ctx, second))

	count, err := buf.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	pending, err := buf.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "cozytouch", pending[0].Check)
	assert.Equal(t, first.Observations, pending[0].Observations)
	assert.True(t, first.Timestamp.Equal(pending[0].Timestamp))

	limited, err := buf.GetPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMarkSent(t *testing.T) {
	ctx := context.Background()
	buf := newTestBuffer(t)

	a, b := testBatch("netatmo"), testBatch("netatmo")
	require.NoError(t, buf.Store(ctx, a))
	require.NoError(t, buf.Store(ctx, b))

	require.NoError(t, buf.MarkSent(ctx, []string{a.ID}))
	require.NoError(t, buf.MarkSent(ctx, nil))

	pending, err := buf.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	buf := newTestBuffer(t)

	require.NoError(t, buf.Store(ctx, testBatch("sbfspot")))

	require.NoError(t, buf.Cleanup(ctx, time.Hour))
	count, err := buf.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, buf.Cleanup(ctx, -time.Second))
	count, err = buf.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestStoreDuplicateID(t *testing.T) {
	ctx := context.Background()
	buf := newTestBuffer(t)

	batch := testBatch("sbfspot")
	require.NoError(t, buf.Store(ctx, batch))
	assert.Error(t, buf.Store(ctx, batch))
}
