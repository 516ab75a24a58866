package odbcarrow

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
)

// ODBC handle types
const (
	sqlHandleEnv  int16 = 1
	sqlHandleDbc  int16 = 2
	sqlHandleStmt int16 = 3
)

// ODBC return codes
const (
	sqlSuccess         int16 = 0
	sqlSuccessWithInfo int16 = 1
	sqlNoData          int16 = 100
	sqlError           int16 = -1
	sqlInvalidHandle   int16 = -2
)

// ODBC attributes and attribute values
const (
	sqlAttrODBCVersion  int32   = 200
	sqlOVODBC3          uintptr = 3
	sqlAttrLoginTimeout int32   = 103
	sqlAttrAccessMode   int32   = 101
	sqlModeReadOnly     uintptr = 1
	sqlAttrQueryTimeout int32   = 0
	sqlInfoDMVer        uint16  = 171
	sqlDescUnsigned     uint16  = 8

	sqlDriverNoPrompt uint16 = 0
	sqlNTS            int16  = -3
	sqlNullData       int64  = -1
	sqlNoTotal        int64  = -4
)

// ODBC SQL data types, as reported by SQLDescribeCol
const (
	SQLUnknownType   int16 = 0
	SQLChar          int16 = 1
	SQLNumeric       int16 = 2
	SQLDecimal       int16 = 3
	SQLInteger       int16 = 4
	SQLSmallint      int16 = 5
	SQLFloat         int16 = 6
	SQLReal          int16 = 7
	SQLDouble        int16 = 8
	SQLDatetime      int16 = 9
	SQLVarchar       int16 = 12
	SQLTypeDate      int16 = 91
	SQLTypeTime      int16 = 92
	SQLTypeTimestamp int16 = 93
	SQLLongVarchar   int16 = -1
	SQLBinary        int16 = -2
	SQLVarbinary     int16 = -3
	SQLLongVarbinary int16 = -4
	SQLBigint        int16 = -5
	SQLTinyint       int16 = -6
	SQLBit           int16 = -7
	SQLWChar         int16 = -8
	SQLWVarchar      int16 = -9
	SQLWLongVarchar  int16 = -10
	SQLGUID          int16 = -11
)

// ODBC C data types used with SQLGetData
const (
	sqlCChar          int16 = 1
	sqlCDouble        int16 = 8
	sqlCBit           int16 = -7
	sqlCBinary        int16 = -2
	sqlCSBigint       int16 = -25
	sqlCUBigint       int16 = -27
	sqlCTypeDate      int16 = 91
	sqlCTypeTime      int16 = 92
	sqlCTypeTimestamp int16 = 93
)

// SQL_DATE_STRUCT
type sqlDateStruct struct {
	Year  int16
	Month uint16
	Day   uint16
}

// SQL_TIME_STRUCT
type sqlTimeStruct struct {
	Hour   uint16
	Minute uint16
	Second uint16
}

// SQL_TIMESTAMP_STRUCT. Fraction is in nanoseconds.
type sqlTimestampStruct struct {
	Year     int16
	Month    uint16
	Day      uint16
	Hour     uint16
	Minute   uint16
	Second   uint16
	Fraction uint32
}

func succeeded(ret int16) bool {
	return ret == sqlSuccess || ret == sqlSuccessWithInfo
}

// cBytes returns s as a NUL terminated byte slice.
func cBytes(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// diagnostics collects every diagnostic record of a handle as
// "[SQLSTATE] (native) message", joined by "; ".
func diagnostics(handleType int16, handle uintptr) string {
	if handle == 0 {
		return "invalid handle"
	}

	var (
		recs   []string
		state  = make([]byte, 6)
		msg    = make([]byte, 1024)
		native int32
		msgLen int16
	)
	for rec := int16(1); rec < 64; rec++ {
		ret := sqlGetDiagRec(handleType, handle, rec, &state[0], &native, &msg[0], int16(len(msg)), &msgLen)
		if !succeeded(ret) {
			break
		}
		n := int(msgLen)
		if n > len(msg)-1 {
			n = len(msg) - 1
		}
		recs = append(recs, fmt.Sprintf("[%s] (%d) %s", cString(state), native, strings.TrimSpace(string(msg[:n]))))
	}

	if len(recs) == 0 {
		return "no diagnostics available"
	}
	return strings.Join(recs, "; ")
}

// cString converts a NUL terminated buffer to a Go string.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// odbcError wraps the diagnostics of a failed call.
func odbcError(ret int16, handleType int16, handle uintptr, op string) error {
	if ret == sqlInvalidHandle {
		return errors.Errorf("%s: invalid handle", op)
	}
	return errors.Errorf("%s: %s", op, diagnostics(handleType, handle))
}

// setAttr calls one of the SQLSet*Attr functions with an integer value.
func setAttr(fn func(uintptr, int32, uintptr, int32) int16, handle uintptr, attr int32, value uintptr) int16 {
	return fn(handle, attr, value, 0)
}

// ptr returns the address of v for an output buffer argument.
func ptr[T any](v *T) uintptr {
	return uintptr(unsafe.Pointer(v))
}
