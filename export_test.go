package odbcarrow

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

// threeBatches returns a reader over 5 + 5 + 2 rows.
func threeBatches(t *testing.T, mem memory.Allocator) *BatchReader {
	t.Helper()
	r, err := NewBatchReader(peopleCursor(12), ReaderOptions{Allocator: mem, BatchSize: 5})
	require.NoError(t, err)
	return r
}

func importBatch(t *testing.T, b *ExportedBatch) arrow.Record {
	t.Helper()
	rec, err := b.Import()
	require.NoError(t, err)
	return rec
}

func TestExportConcatenate(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	r := threeBatches(t, mem)
	defer r.Release()

	b, err := Export(r, ExportOptions{Allocator: mem})
	require.NoError(t, err)
	require.Equal(t, int64(12), b.NumRows())
	require.Zero(t, b.DroppedRows())

	rec := importBatch(t, b)
	defer rec.Release()

	require.Equal(t, int64(12), rec.NumRows())
	require.Equal(t, "NAME", rec.Schema().Field(1).Name)
	require.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, rec.Schema().Field(0).Type))
	ids := rec.Column(0).(*array.Int64)
	for i := 0; i < ids.Len(); i++ {
		require.Equal(t, int64(i), ids.Value(i))
	}
}

func TestExportFirstBatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	r := threeBatches(t, mem)
	defer r.Release()

	b, err := Export(r, ExportOptions{Allocator: mem, Policy: ExportFirstBatch, Logger: log.NewNopLogger()})
	require.NoError(t, err)

	// Only the first batch's rows, not the sum.
	require.Equal(t, int64(5), b.NumRows())
	require.Equal(t, int64(7), b.DroppedRows())

	rec := importBatch(t, b)
	defer rec.Release()
	require.Equal(t, int64(5), rec.NumRows())
	require.Equal(t, int64(4), rec.Column(0).(*array.Int64).Value(4))

	// The whole stream was drained.
	require.Equal(t, int64(3), r.Batches())
}

func TestExportMaxRows(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	r := threeBatches(t, mem)
	defer r.Release()

	_, err := Export(r, ExportOptions{Allocator: mem, MaxRows: 10})
	require.Error(t, err)
	require.Equal(t, ErrArrow, Classify(err).Type)
}

func TestExportEmpty(t *testing.T) {
	t.Run("error by default", func(t *testing.T) {
		r, err := NewBatchReader(peopleCursor(0), ReaderOptions{})
		require.NoError(t, err)
		defer r.Release()

		_, err = Export(r, ExportOptions{})
		require.ErrorIs(t, err, ErrNoData)
	})

	t.Run("placeholder", func(t *testing.T) {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		defer mem.AssertSize(t, 0)

		r, err := NewBatchReader(peopleCursor(0), ReaderOptions{Allocator: mem})
		require.NoError(t, err)
		defer r.Release()

		b, err := Export(r, ExportOptions{Allocator: mem, OnEmpty: EmptyPlaceholder})
		require.NoError(t, err)

		rec := importBatch(t, b)
		defer rec.Release()
		require.Zero(t, rec.NumRows())
		require.Equal(t, int64(2), rec.NumCols())
	})
}

func TestExportDecodeFailure(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	cur := peopleCursor(12)
	cur.failAt = 7

	r, err := NewBatchReader(cur, ReaderOptions{Allocator: mem, BatchSize: 5})
	require.NoError(t, err)
	defer r.Release()

	_, err = Export(r, ExportOptions{Allocator: mem})
	require.Error(t, err)
	require.Equal(t, ErrArrow, Classify(err).Type)
}

func TestExportedBatchOwnership(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	export := func() *ExportedBatch {
		r := threeBatches(t, mem)
		defer r.Release()
		b, err := Export(r, ExportOptions{Allocator: mem})
		require.NoError(t, err)
		return b
	}

	t.Run("handoff once", func(t *testing.T) {
		b := export()

		schema, arr, err := b.Handoff()
		require.NoError(t, err)
		require.NotNil(t, schema)
		require.NotNil(t, arr)

		_, _, err = b.Handoff()
		require.ErrorIs(t, err, ErrBatchConsumed)
		_, err = b.Import()
		require.ErrorIs(t, err, ErrBatchConsumed)

		// Release after handoff must not free what the consumer owns.
		b.Release()

		ReleaseCData(schema, arr)
	})

	t.Run("import once", func(t *testing.T) {
		b := export()

		rec := importBatch(t, b)
		rec.Release()

		_, err := b.Import()
		require.ErrorIs(t, err, ErrBatchConsumed)
		_, _, err = b.Handoff()
		require.ErrorIs(t, err, ErrBatchConsumed)
	})

	t.Run("release", func(t *testing.T) {
		b := export()

		b.Release()
		b.Release()

		_, _, err := b.Handoff()
		require.ErrorIs(t, err, ErrBatchConsumed)
	})
}

func TestCollectTable(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	r := threeBatches(t, mem)
	defer r.Release()

	tbl, err := CollectTable(r)
	require.NoError(t, err)
	defer tbl.Release()

	require.Equal(t, int64(12), tbl.NumRows())
	require.Len(t, tbl.Column(0).Data().Chunks(), 3)
	requirePeopleOrder(t, tbl)
}
