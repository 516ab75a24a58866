package odbcarrow

/*
#include <stdlib.h>
*/
import "C"

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/cdata"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// ExportOptions configures Export.
type ExportOptions struct {
	Allocator memory.Allocator
	Policy    ExportPolicy
	// MaxRows bounds the rows concatenated by ExportConcatenate. 0 means
	// no bound.
	MaxRows int64
	// OnEmpty decides what happens when the stream has no batches. The
	// default is EmptyError.
	OnEmpty EmptyPolicy
	Logger  log.Logger
}

// Ownership states of an ExportedBatch. Transitions only leave batchLive.
const (
	batchLive int32 = iota
	batchHandedOff
	batchImported
	batchReleased
)

// ErrBatchConsumed is returned when an ExportedBatch is handed off or
// imported after it has already been handed off, imported or released.
var ErrBatchConsumed = errors.New("Arrow c_data batch already consumed")

// ExportedBatch is one record batch exported through the Arrow C data
// interface: a C-allocated ArrowSchema and ArrowArray pair.
//
// Ownership is linear. Exactly one of Handoff, Import or Release takes
// effect; afterwards the others fail or do nothing. A batch that is never
// consumed is released by its finalizer.
type ExportedBatch struct {
	schema  *cdata.CArrowSchema
	array   *cdata.CArrowArray
	sc      *arrow.Schema
	rows    int64
	dropped int64
	state   int32
}

func exportRecord(rec arrow.Record, dropped int64) *ExportedBatch {
	b := &ExportedBatch{
		schema:  (*cdata.CArrowSchema)(C.calloc(1, C.size_t(unsafe.Sizeof(cdata.CArrowSchema{})))),
		array:   (*cdata.CArrowArray)(C.calloc(1, C.size_t(unsafe.Sizeof(cdata.CArrowArray{})))),
		sc:      rec.Schema(),
		rows:    rec.NumRows(),
		dropped: dropped,
	}
	cdata.ExportArrowRecordBatch(rec, b.array, b.schema)

	runtime.SetFinalizer(b, (*ExportedBatch).Release)
	return b
}

// Schema returns the schema of the exported batch.
func (b *ExportedBatch) Schema() *arrow.Schema {
	return b.sc
}

// NumRows returns the number of rows in the exported batch.
func (b *ExportedBatch) NumRows() int64 {
	return b.rows
}

// DroppedRows returns the rows left out by ExportFirstBatch.
func (b *ExportedBatch) DroppedRows() int64 {
	return b.dropped
}

// Handoff transfers the schema and array structures to the caller, who
// becomes responsible for calling their release callbacks and then freeing
// both structures with free(3). It succeeds at most once.
func (b *ExportedBatch) Handoff() (*cdata.CArrowSchema, *cdata.CArrowArray, error) {
	if !atomic.CompareAndSwapInt32(&b.state, batchLive, batchHandedOff) {
		return nil, nil, ErrBatchConsumed
	}
	runtime.SetFinalizer(b, nil)

	schema, arr := b.schema, b.array
	b.schema, b.array = nil, nil
	return schema, arr, nil
}

// Import moves the exported batch back into Go memory as an arrow.Record.
// The caller must release the record.
func (b *ExportedBatch) Import() (arrow.Record, error) {
	if !atomic.CompareAndSwapInt32(&b.state, batchLive, batchImported) {
		return nil, ErrBatchConsumed
	}
	runtime.SetFinalizer(b, nil)

	defer b.free()

	sc, err := cdata.ImportCArrowSchema(b.schema)
	if err != nil {
		cdata.ReleaseCArrowArray(b.array)
		cdata.ReleaseCArrowSchema(b.schema)
		return nil, errors.Wrap(err, "Arrow c_data import failed: schema")
	}
	cdata.ReleaseCArrowSchema(b.schema)

	rec, err := cdata.ImportCRecordBatchWithSchema(b.array, sc)
	if err != nil {
		cdata.ReleaseCArrowArray(b.array)
		return nil, errors.Wrap(err, "Arrow c_data import failed: array")
	}
	return rec, nil
}

// Release frees the exported batch unless it was handed off or imported.
// It is safe to call more than once.
func (b *ExportedBatch) Release() {
	if !atomic.CompareAndSwapInt32(&b.state, batchLive, batchReleased) {
		return
	}
	runtime.SetFinalizer(b, nil)

	cdata.ReleaseCArrowArray(b.array)
	cdata.ReleaseCArrowSchema(b.schema)
	b.free()
}

// ReleaseCData calls the release callbacks of a pair obtained from Handoff
// and frees both structures. Go consumers use it once they are done with
// the pair.
func ReleaseCData(schema *cdata.CArrowSchema, arr *cdata.CArrowArray) {
	if arr != nil {
		cdata.ReleaseCArrowArray(arr)
		C.free(unsafe.Pointer(arr))
	}
	if schema != nil {
		cdata.ReleaseCArrowSchema(schema)
		C.free(unsafe.Pointer(schema))
	}
}

func (b *ExportedBatch) free() {
	if b.array != nil {
		C.free(unsafe.Pointer(b.array))
		b.array = nil
	}
	if b.schema != nil {
		C.free(unsafe.Pointer(b.schema))
		b.schema = nil
	}
}

// Export drains stream and exports its result as a single batch.
//
// With ExportConcatenate every batch is concatenated, failing when the total
// exceeds MaxRows. With ExportFirstBatch only the first batch is exported and
// the remaining rows are counted, logged and dropped. A stream without
// batches yields ErrNoData, or an empty batch of the stream's schema when
// OnEmpty is EmptyPlaceholder.
//
// Export does not release stream.
func Export(stream BatchStream, opts ExportOptions) (*ExportedBatch, error) {
	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	var (
		records []arrow.Record
		total   int64
		dropped int64
	)
	releaseAll := func() {
		for _, r := range records {
			r.Release()
		}
		records = nil
	}

	for stream.Next() {
		rec := stream.Record()

		if opts.Policy == ExportFirstBatch && len(records) == 1 {
			dropped += rec.NumRows()
			continue
		}

		total += rec.NumRows()
		if opts.Policy == ExportConcatenate && opts.MaxRows > 0 && total > opts.MaxRows {
			releaseAll()
			return nil, errors.Errorf("Arrow export failed: result exceeds %d rows", opts.MaxRows)
		}
		rec.Retain()
		records = append(records, rec)
	}
	if err := stream.Err(); err != nil {
		releaseAll()
		return nil, err
	}

	if len(records) == 0 {
		if opts.OnEmpty.resolve(EmptyError) == EmptyError {
			return nil, ErrNoData
		}
		rec := emptyRecord(stream.Schema(), mem)
		defer rec.Release()
		return exportRecord(rec, 0), nil
	}

	if dropped > 0 {
		level.Warn(logger).Log("msg", "exporting first batch only, dropping remaining rows", "exported_rows", total, "dropped_rows", dropped)
	}

	rec, err := concatRecords(stream.Schema(), records, total, mem)
	releaseAll()
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	return exportRecord(rec, dropped), nil
}

// concatRecords merges records column by column. A single record is returned
// with an extra reference.
func concatRecords(schema *arrow.Schema, records []arrow.Record, rows int64, mem memory.Allocator) (arrow.Record, error) {
	if len(records) == 1 {
		records[0].Retain()
		return records[0], nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	parts := make([]arrow.Array, len(records))
	for i := range cols {
		for j, r := range records {
			parts[j] = r.Column(i)
		}
		c, err := array.Concatenate(parts, mem)
		if err != nil {
			return nil, errors.Wrapf(err, "Arrow export failed: concatenate column %q", schema.Field(i).Name)
		}
		cols[i] = c
	}

	return array.NewRecord(schema, cols, rows), nil
}
