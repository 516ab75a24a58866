package odbcarrow

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"
)

// BatchStream is a single-pass sequence of Arrow record batches sharing one
// schema.
//
// The record returned by Record is owned by the stream and is only valid
// until the next call to Next or Release; callers that keep it must Retain
// it. After Next returns false, Err reports whether the sequence ended
// because of a failure.
type BatchStream interface {
	Schema() *arrow.Schema
	Next() bool
	Record() arrow.Record
	Err() error
	Release()
}

// ReaderOptions configures a BatchReader. Zero values select the defaults.
type ReaderOptions struct {
	Allocator     memory.Allocator
	BatchSize     int
	MaxTextSize   int
	MaxBinarySize int
}

func (o ReaderOptions) withDefaults() ReaderOptions {
	if o.Allocator == nil {
		o.Allocator = memory.DefaultAllocator
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxTextSize <= 0 {
		o.MaxTextSize = DefaultMaxTextSize
	}
	if o.MaxBinarySize <= 0 {
		o.MaxBinarySize = DefaultMaxBinarySize
	}
	return o
}

// appendFunc appends one decoded cell to a column builder.
type appendFunc func(b array.Builder, v any) error

// BatchReader turns a ResultCursor into Arrow record batches of at most
// BatchSize rows. Only one batch is held in memory at a time.
type BatchReader struct {
	cursor    ResultCursor
	schema    *arrow.Schema
	opts      ReaderOptions
	builder   *array.RecordBuilder
	appenders []appendFunc
	row       []any

	cur     arrow.Record
	err     error
	done    bool
	batches int64
	rows    int64
}

// NewBatchReader infers the schema of cursor and prepares to read it. The
// cursor stays owned by the caller.
func NewBatchReader(cursor ResultCursor, opts ReaderOptions) (*BatchReader, error) {
	cols := cursor.Columns()
	if len(cols) == 0 {
		return nil, errors.New("Arrow schema inference failed: result set has no columns")
	}

	opts = opts.withDefaults()
	schema := SchemaFromColumns(cols)

	r := &BatchReader{
		cursor:    cursor,
		schema:    schema,
		opts:      opts,
		builder:   array.NewRecordBuilder(opts.Allocator, schema),
		appenders: make([]appendFunc, len(cols)),
		row:       make([]any, len(cols)),
	}
	r.builder.Reserve(min(opts.BatchSize, 1024))

	for i := range cols {
		r.appenders[i] = r.appenderFor(schema.Field(i))
	}
	return r, nil
}

// Schema returns the schema shared by every batch.
func (r *BatchReader) Schema() *arrow.Schema {
	return r.schema
}

// Record returns the current batch.
func (r *BatchReader) Record() arrow.Record {
	return r.cur
}

// Err returns the error that stopped the sequence, if any.
func (r *BatchReader) Err() error {
	return r.err
}

// Batches returns the number of batches produced so far.
func (r *BatchReader) Batches() int64 {
	return r.batches
}

// Rows returns the number of rows produced so far.
func (r *BatchReader) Rows() int64 {
	return r.rows
}

// Next fetches up to BatchSize rows from the cursor and builds the next
// batch. It returns false at the end of the result set or on failure.
func (r *BatchReader) Next() bool {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.done {
		return false
	}

	n := 0
	for n < r.opts.BatchSize {
		ok, err := r.cursor.Next(r.row)
		if err != nil {
			r.fail(err)
			return false
		}
		if !ok {
			r.done = true
			break
		}

		for i, app := range r.appenders {
			if err := app(r.builder.Field(i), r.row[i]); err != nil {
				r.fail(errors.Wrapf(err, "column %d (%s)", i, r.schema.Field(i).Name))
				return false
			}
		}
		n++
	}

	if n == 0 {
		return false
	}

	r.cur = r.builder.NewRecord()
	r.batches++
	r.rows += int64(n)
	return true
}

// fail drops the partially built batch and ends the sequence.
func (r *BatchReader) fail(err error) {
	r.err = errors.Wrap(err, "Arrow batch decode failed")
	r.done = true
	if r.builder != nil {
		r.builder.Release()
		r.builder = nil
	}
}

// Release frees the current batch and the builder. It does not close the
// cursor.
func (r *BatchReader) Release() {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.builder != nil {
		r.builder.Release()
		r.builder = nil
	}
	r.done = true
}

func (r *BatchReader) appenderFor(field arrow.Field) appendFunc {
	switch dt := field.Type.(type) {
	case *arrow.Int8Type:
		return appendInt(field, math.MinInt8, math.MaxInt8, func(b array.Builder, v int64) { b.(*array.Int8Builder).Append(int8(v)) })
	case *arrow.Int16Type:
		return appendInt(field, math.MinInt16, math.MaxInt16, func(b array.Builder, v int64) { b.(*array.Int16Builder).Append(int16(v)) })
	case *arrow.Int32Type:
		return appendInt(field, math.MinInt32, math.MaxInt32, func(b array.Builder, v int64) { b.(*array.Int32Builder).Append(int32(v)) })
	case *arrow.Int64Type:
		return appendInt(field, math.MinInt64, math.MaxInt64, func(b array.Builder, v int64) { b.(*array.Int64Builder).Append(v) })
	case *arrow.Uint8Type:
		return appendUint(field, math.MaxUint8, func(b array.Builder, v uint64) { b.(*array.Uint8Builder).Append(uint8(v)) })
	case *arrow.Uint16Type:
		return appendUint(field, math.MaxUint16, func(b array.Builder, v uint64) { b.(*array.Uint16Builder).Append(uint16(v)) })
	case *arrow.Uint32Type:
		return appendUint(field, math.MaxUint32, func(b array.Builder, v uint64) { b.(*array.Uint32Builder).Append(uint32(v)) })
	case *arrow.Uint64Type:
		return appendUint(field, math.MaxUint64, func(b array.Builder, v uint64) { b.(*array.Uint64Builder).Append(v) })

	case *arrow.Float32Type:
		return func(b array.Builder, v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			f, ok := v.(float64)
			if !ok {
				return unexpectedValue(field, v)
			}
			b.(*array.Float32Builder).Append(float32(f))
			return nil
		}
	case *arrow.Float64Type:
		return func(b array.Builder, v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			f, ok := v.(float64)
			if !ok {
				return unexpectedValue(field, v)
			}
			b.(*array.Float64Builder).Append(f)
			return nil
		}

	case *arrow.BooleanType:
		return func(b array.Builder, v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			t, ok := v.(bool)
			if !ok {
				return unexpectedValue(field, v)
			}
			b.(*array.BooleanBuilder).Append(t)
			return nil
		}

	case *arrow.Decimal128Type:
		return func(b array.Builder, v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			s, ok := v.(string)
			if !ok {
				return unexpectedValue(field, v)
			}
			num, err := decimal128.FromString(s, dt.Precision, dt.Scale)
			if err != nil {
				return errors.Wrapf(err, "decimal %q", s)
			}
			b.(*array.Decimal128Builder).Append(num)
			return nil
		}

	case *arrow.Date32Type:
		return appendTime(field, func(b array.Builder, t time.Time) { b.(*array.Date32Builder).Append(Date32FromTime(t)) })
	case *arrow.Time64Type:
		return appendTime(field, func(b array.Builder, t time.Time) { b.(*array.Time64Builder).Append(Time64FromTime(t)) })
	case *arrow.TimestampType:
		return appendTime(field, func(b array.Builder, t time.Time) { b.(*array.TimestampBuilder).Append(TimestampFromTime(t)) })

	case *arrow.BinaryType:
		limit := r.opts.MaxBinarySize
		return func(b array.Builder, v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			bs, ok := v.([]byte)
			if !ok {
				return unexpectedValue(field, v)
			}
			if len(bs) > limit {
				bs = bs[:limit]
			}
			b.(*array.BinaryBuilder).Append(bs)
			return nil
		}

	default:
		limit := r.opts.MaxTextSize
		return func(b array.Builder, v any) error {
			if v == nil {
				b.AppendNull()
				return nil
			}
			var s string
			switch t := v.(type) {
			case string:
				s = t
			case []byte:
				s = string(t)
			default:
				s = fmt.Sprint(t)
			}
			b.(*array.StringBuilder).Append(truncateText(s, limit))
			return nil
		}
	}
}

// appendInt appends integers in [lo, hi]; anything outside fails instead of
// wrapping.
func appendInt(field arrow.Field, lo, hi int64, put func(array.Builder, int64)) appendFunc {
	return func(b array.Builder, v any) error {
		var n int64
		switch t := v.(type) {
		case nil:
			b.AppendNull()
			return nil
		case int64:
			n = t
		case int32:
			n = int64(t)
		case int:
			n = int64(t)
		case uint64:
			if t > math.MaxInt64 {
				return outOfRange(field, t)
			}
			n = int64(t)
		default:
			return unexpectedValue(field, v)
		}
		if n < lo || n > hi {
			return outOfRange(field, n)
		}
		put(b, n)
		return nil
	}
}

func appendUint(field arrow.Field, hi uint64, put func(array.Builder, uint64)) appendFunc {
	return func(b array.Builder, v any) error {
		var n uint64
		switch t := v.(type) {
		case nil:
			b.AppendNull()
			return nil
		case uint64:
			n = t
		case int64:
			if t < 0 {
				return outOfRange(field, t)
			}
			n = uint64(t)
		case int32:
			if t < 0 {
				return outOfRange(field, t)
			}
			n = uint64(t)
		case int:
			if t < 0 {
				return outOfRange(field, t)
			}
			n = uint64(t)
		default:
			return unexpectedValue(field, v)
		}
		if n > hi {
			return outOfRange(field, n)
		}
		put(b, n)
		return nil
	}
}

func outOfRange(field arrow.Field, v any) error {
	return errors.Errorf("value %v out of range for %s column", v, field.Type)
}

func appendTime(field arrow.Field, put func(array.Builder, time.Time)) appendFunc {
	return func(b array.Builder, v any) error {
		if v == nil {
			b.AppendNull()
			return nil
		}
		t, ok := v.(time.Time)
		if !ok {
			return unexpectedValue(field, v)
		}
		put(b, t)
		return nil
	}
}

func unexpectedValue(field arrow.Field, v any) error {
	return errors.Errorf("unexpected value of type %T for %s column", v, field.Type)
}

// truncateText caps s at limit bytes without leaving a partial UTF-8
// sequence at the end. Text cut short by the cursor is repaired the same way.
func truncateText(s string, limit int) string {
	if len(s) < limit {
		return s
	}
	s = s[:limit]
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				s = s[:i]
			}
			break
		}
	}
	return s
}

// emptyStream is a stream with a schema and no batches.
type emptyStream struct {
	schema *arrow.Schema
}

// NewPlaceholderStream returns the stream used for statements without a
// result set: PlaceholderSchema and zero batches.
func NewPlaceholderStream() BatchStream {
	return &emptyStream{schema: PlaceholderSchema()}
}

func (s *emptyStream) Schema() *arrow.Schema { return s.schema }
func (s *emptyStream) Next() bool            { return false }
func (s *emptyStream) Record() arrow.Record  { return nil }
func (s *emptyStream) Err() error            { return nil }
func (s *emptyStream) Release()              {}

var (
	_ BatchStream = (*BatchReader)(nil)
	_ BatchStream = (*emptyStream)(nil)
)
