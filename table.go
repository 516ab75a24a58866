package odbcarrow

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"
)

// CollectTable drains stream into an in-memory table. Unlike Export it
// keeps every batch as its own chunk. The caller must release the table.
func CollectTable(stream BatchStream) (arrow.Table, error) {
	var records []arrow.Record
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	for stream.Next() {
		rec := stream.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return array.NewTableFromRecords(stream.Schema(), records), nil
}

// DecodeIPC reads an Arrow IPC stream, as produced by EncodeStream, into a
// table. The caller must release the table.
func DecodeIPC(data []byte, mem memory.Allocator) (arrow.Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	rdr, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, errors.Wrap(err, "Arrow stream decode failed")
	}
	defer rdr.Release()

	var records []arrow.Record
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, errors.Wrap(err, "Arrow stream decode failed")
	}

	return array.NewTableFromRecords(rdr.Schema(), records), nil
}
