package odbcarrow

import (
	"bytes"
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Nullability of a result column.
type Nullability int16

const (
	NoNulls         Nullability = 0
	Nullable        Nullability = 1
	NullableUnknown Nullability = 2
)

// ColumnDesc describes one result column as reported by the driver.
type ColumnDesc struct {
	Name          string
	SQLType       int16
	Size          uint64
	DecimalDigits int16
	Nullable      Nullability
	// Unsigned is set for integer columns the driver reports as unsigned.
	Unsigned bool
}

// ResultCursor is a forward-only cursor over one result set.
//
// Next decodes the next row into dest, which holds one slot per column. A
// NULL cell is stored as nil; otherwise the Go type depends on the column's
// SQL type: int64 for integer types (uint64 for unsigned BIGINT), float64 for approximate numerics, bool
// for BIT, time.Time for date, time and timestamp types, []byte for binary
// types and string for everything else (including exact numerics). dest
// values are only valid until the next call to Next.
type ResultCursor interface {
	Columns() []ColumnDesc
	Next(dest []any) (bool, error)
	Close() error
}

// odbcCursor reads rows with SQLFetch and SQLGetData.
type odbcCursor struct {
	stmt      uintptr
	columns   []ColumnDesc
	maxText   int
	maxBinary int
	closed    int32

	// Per-cursor scratch space, pointed at by SQLGetData.
	i64   int64
	f64   float64
	bit   uint8
	date  sqlDateStruct
	tod   sqlTimeStruct
	ts    sqlTimestampStruct
	ind   int64
	chunk []byte
	acc   []byte

	strings *StringCache
}

func newODBCCursor(stmt uintptr, ncols int, maxText, maxBinary int) (*odbcCursor, error) {
	c := &odbcCursor{
		stmt:      stmt,
		columns:   make([]ColumnDesc, ncols),
		maxText:   maxText,
		maxBinary: maxBinary,
		chunk:     globalChunkPool.Get(getDataChunkSize),
		strings:   NewStringCache(),
	}

	name := make([]byte, 256)
	for i := 0; i < ncols; i++ {
		var (
			nameLen  int16
			dataType int16
			colSize  uint64
			digits   int16
			nullable int16
		)
		ret := sqlDescribeCol(stmt, uint16(i+1), &name[0], int16(len(name)), &nameLen, &dataType, &colSize, &digits, &nullable)
		if !succeeded(ret) {
			globalChunkPool.Put(c.chunk)
			return nil, odbcError(ret, sqlHandleStmt, stmt, "describe column")
		}
		n := int(nameLen)
		if n > len(name)-1 {
			n = len(name) - 1
		}
		c.columns[i] = ColumnDesc{
			Name:          string(name[:n]),
			SQLType:       dataType,
			Size:          colSize,
			DecimalDigits: digits,
			Nullable:      Nullability(nullable),
			Unsigned:      isIntegerType(dataType) && columnUnsigned(stmt, uint16(i+1)),
		}
	}

	return c, nil
}

// columnUnsigned reads SQL_DESC_UNSIGNED. Drivers that cannot answer are
// taken to mean signed.
func columnUnsigned(stmt uintptr, col uint16) bool {
	var v int64
	ret := sqlColAttribute(stmt, col, sqlDescUnsigned, nil, 0, nil, &v)
	return succeeded(ret) && v != 0
}

func isIntegerType(t int16) bool {
	switch t {
	case SQLTinyint, SQLSmallint, SQLInteger, SQLBigint:
		return true
	}
	return false
}

// Columns returns the result column descriptions.
func (c *odbcCursor) Columns() []ColumnDesc {
	return c.columns
}

// Next implements ResultCursor.
func (c *odbcCursor) Next(dest []any) (bool, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return false, errors.New("cursor is closed")
	}

	ret := sqlFetch(c.stmt)
	if ret == sqlNoData {
		return false, nil
	}
	if !succeeded(ret) {
		return false, odbcError(ret, sqlHandleStmt, c.stmt, "fetch")
	}

	for i, col := range c.columns {
		v, err := c.getData(uint16(i+1), col)
		if err != nil {
			return false, errors.Wrapf(err, "column %d (%s)", i, col.Name)
		}
		dest[i] = v
	}
	runtime.KeepAlive(c)
	return true, nil
}

func (c *odbcCursor) getData(col uint16, desc ColumnDesc) (any, error) {
	if desc.SQLType == SQLBigint && desc.Unsigned {
		if err := c.getFixed(col, sqlCUBigint, ptr(&c.i64), 8); err != nil || c.ind == sqlNullData {
			return nil, err
		}
		return uint64(c.i64), nil
	}

	switch desc.SQLType {
	case SQLTinyint, SQLSmallint, SQLInteger, SQLBigint:
		if err := c.getFixed(col, sqlCSBigint, ptr(&c.i64), 8); err != nil || c.ind == sqlNullData {
			return nil, err
		}
		return c.i64, nil

	case SQLReal, SQLFloat, SQLDouble:
		if err := c.getFixed(col, sqlCDouble, ptr(&c.f64), 8); err != nil || c.ind == sqlNullData {
			return nil, err
		}
		return c.f64, nil

	case SQLBit:
		if err := c.getFixed(col, sqlCBit, ptr(&c.bit), 1); err != nil || c.ind == sqlNullData {
			return nil, err
		}
		return c.bit != 0, nil

	case SQLTypeDate, SQLDatetime:
		if err := c.getFixed(col, sqlCTypeDate, ptr(&c.date), 6); err != nil || c.ind == sqlNullData {
			return nil, err
		}
		return timeFromSQLDate(c.date), nil

	case SQLTypeTime:
		if err := c.getFixed(col, sqlCTypeTime, ptr(&c.tod), 6); err != nil || c.ind == sqlNullData {
			return nil, err
		}
		return timeFromSQLTime(c.tod), nil

	case SQLTypeTimestamp:
		if err := c.getFixed(col, sqlCTypeTimestamp, ptr(&c.ts), 16); err != nil || c.ind == sqlNullData {
			return nil, err
		}
		return timeFromSQLTimestamp(c.ts), nil

	case SQLBinary, SQLVarbinary, SQLLongVarbinary:
		b, null, err := c.getVariable(col, sqlCBinary, c.maxBinary, 0)
		if err != nil || null {
			return nil, err
		}
		return bytes.Clone(b), nil

	default:
		b, null, err := c.getVariable(col, sqlCChar, c.maxText, 1)
		if err != nil || null {
			return nil, err
		}
		return c.strings.GetFromBytes(b), nil
	}
}

func (c *odbcCursor) getFixed(col uint16, cType int16, target uintptr, size int64) error {
	ret := sqlGetData(c.stmt, col, cType, target, size, &c.ind)
	if !succeeded(ret) {
		return odbcError(ret, sqlHandleStmt, c.stmt, "get data")
	}
	return nil
}

// getVariable reads a variable length cell in chunks, keeping at most limit
// bytes. terminator is the size of the NUL the driver appends to each chunk.
// The returned slice is reused by the next call.
func (c *odbcCursor) getVariable(col uint16, cType int16, limit int, terminator int) ([]byte, bool, error) {
	c.acc = c.acc[:0]
	usable := len(c.chunk) - terminator

	for {
		ret := sqlGetData(c.stmt, col, cType, ptr(&c.chunk[0]), int64(len(c.chunk)), &c.ind)
		if ret == sqlNoData {
			return c.acc, false, nil
		}
		if !succeeded(ret) {
			return nil, false, odbcError(ret, sqlHandleStmt, c.stmt, "get data")
		}
		if c.ind == sqlNullData {
			return nil, true, nil
		}

		n := usable
		more := true
		if c.ind != sqlNoTotal && c.ind <= int64(usable) {
			n = int(c.ind)
			more = false
		}

		if room := limit - len(c.acc); n > room {
			// Capped: the rest of the cell is dropped.
			c.acc = append(c.acc, c.chunk[:room]...)
			return c.acc, false, nil
		}
		c.acc = append(c.acc, c.chunk[:n]...)

		if !more {
			return c.acc, false, nil
		}
	}
}

// Close closes the cursor and frees the statement handle.
func (c *odbcCursor) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	_ = sqlCloseCursor(c.stmt)
	ret := sqlFreeHandle(sqlHandleStmt, c.stmt)
	c.stmt = 0

	globalChunkPool.Put(c.chunk)
	c.chunk = nil
	globalChunkPool.Put(c.acc)
	c.acc = nil

	if !succeeded(ret) {
		return errors.New("free statement handle failed")
	}
	return nil
}

var _ ResultCursor = (*odbcCursor)(nil)
