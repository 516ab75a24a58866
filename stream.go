package odbcarrow

import (
	"bytes"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"
)

// StreamOptions configures the Arrow IPC stream encoder.
type StreamOptions struct {
	Allocator   memory.Allocator
	Compression Compression
}

// StreamStats describes an encoded stream. Batches counts the batches read
// from the source and does not include the empty batch written for an empty
// result.
type StreamStats struct {
	Batches int64
	Rows    int64
	Bytes   int64
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func ipcOptions(schema *arrow.Schema, opts StreamOptions) ([]ipc.Option, error) {
	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	o := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(mem)}

	switch opts.Compression {
	case CompressionNone:
	case CompressionLZ4:
		o = append(o, ipc.WithLZ4())
	case CompressionZSTD:
		o = append(o, ipc.WithZstd())
	default:
		return nil, errors.Errorf("Arrow stream encode failed: unknown compression %q", opts.Compression)
	}
	return o, nil
}

// EncodeStream writes stream to w in the Arrow IPC streaming format: the
// schema, every batch in order, then the end-of-stream marker. Batches are
// written as they are produced, so only one is held in memory at a time. A
// stream without batches is encoded with a single empty batch so readers
// always see at least one batch.
//
// EncodeStream does not release stream.
func EncodeStream(w io.Writer, stream BatchStream, opts StreamOptions) (StreamStats, error) {
	var stats StreamStats

	schema := stream.Schema()
	ipcOpts, err := ipcOptions(schema, opts)
	if err != nil {
		return stats, err
	}

	cw := &countingWriter{w: w}
	wr := ipc.NewWriter(cw, ipcOpts...)

	for stream.Next() {
		rec := stream.Record()
		if err := wr.Write(rec); err != nil {
			_ = wr.Close()
			return stats, errors.Wrap(err, "Arrow stream encode failed: write batch")
		}
		stats.Batches++
		stats.Rows += rec.NumRows()
	}
	if err := stream.Err(); err != nil {
		_ = wr.Close()
		return stats, err
	}

	if stats.Batches == 0 {
		if err := writeEmptyBatch(wr, schema, opts.Allocator); err != nil {
			_ = wr.Close()
			return stats, errors.Wrap(err, "Arrow stream encode failed: write empty batch")
		}
	}

	if err := wr.Close(); err != nil {
		return stats, errors.Wrap(err, "Arrow stream encode failed: finish stream")
	}
	stats.Bytes = cw.n
	return stats, nil
}

// Encode is EncodeStream into memory. On failure no bytes are returned.
func Encode(stream BatchStream, opts StreamOptions) ([]byte, StreamStats, error) {
	var buf bytes.Buffer
	stats, err := EncodeStream(&buf, stream, opts)
	if err != nil {
		return nil, stats, err
	}
	return buf.Bytes(), stats, nil
}

func writeEmptyBatch(wr *ipc.Writer, schema *arrow.Schema, mem memory.Allocator) error {
	rec := emptyRecord(schema, mem)
	defer rec.Release()
	return wr.Write(rec)
}

// emptyRecord returns a zero-row record of schema.
func emptyRecord(schema *arrow.Schema, mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	return b.NewRecord()
}
