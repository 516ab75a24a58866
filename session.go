package odbcarrow

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// CursorOutcome is the result of executing a statement: either a cursor or
// the knowledge that the statement produced no result set.
type CursorOutcome struct {
	cursor ResultCursor
}

// NoResultSet is the outcome of a statement that executed successfully
// without producing rows (DDL, DML, or statements the driver reports as
// returning no columns).
var NoResultSet = CursorOutcome{}

// HasCursor wraps a cursor as an outcome.
func HasCursor(c ResultCursor) CursorOutcome {
	return CursorOutcome{cursor: c}
}

// HasCursor reports whether the statement produced a result set.
func (o CursorOutcome) HasCursor() bool {
	return o.cursor != nil
}

// Cursor returns the result cursor, or nil for NoResultSet.
func (o CursorOutcome) Cursor() ResultCursor {
	return o.cursor
}

// Driver opens sessions against a connection target.
type Driver interface {
	Open(ctx context.Context, target ConnectionTarget, cfg QueryConfig) (Session, error)
}

// Session is one live connection. It executes statements and owns the
// cursors it returns; Close releases the cursor and the connection and may
// be called more than once.
type Session interface {
	Execute(sql string) (CursorOutcome, error)
	Close() error
}

// odbcDriver opens sessions through the ODBC driver manager.
type odbcDriver struct{}

// NewODBCDriver returns the Driver backed by the system ODBC driver manager.
// The driver manager library is loaded on first use.
func NewODBCDriver() Driver {
	return odbcDriver{}
}

// Open allocates an environment and a connection handle and connects to
// target. Every failure is reported as "connection failed: ..." with the
// driver's diagnostics.
func (odbcDriver) Open(ctx context.Context, target ConnectionTarget, cfg QueryConfig) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !DriverManagerAvailable() {
		return nil, errors.Wrap(GetDriverManagerError(), "connection failed: ODBC driver manager unavailable")
	}

	s := &odbcSession{cfg: cfg}
	if err := s.connect(target); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "connection failed")
	}
	return s, nil
}

// odbcSession holds the handles of one connection.
type odbcSession struct {
	cfg       QueryConfig
	env       uintptr
	dbc       uintptr
	connected bool
	cursor    *odbcCursor

	closeOnce sync.Once
	closeErr  error
}

func (s *odbcSession) connect(target ConnectionTarget) error {
	if ret := sqlAllocHandle(sqlHandleEnv, 0, &s.env); !succeeded(ret) {
		s.env = 0
		return errors.New("allocate environment handle failed")
	}
	if ret := setAttr(sqlSetEnvAttr, s.env, sqlAttrODBCVersion, sqlOVODBC3); !succeeded(ret) {
		return odbcError(ret, sqlHandleEnv, s.env, "set ODBC version")
	}

	if ret := sqlAllocHandle(sqlHandleDbc, s.env, &s.dbc); !succeeded(ret) {
		s.dbc = 0
		return odbcError(ret, sqlHandleEnv, s.env, "allocate connection handle")
	}
	if t := s.cfg.ConnectionTimeout; t != nil {
		if ret := setAttr(sqlSetConnectAttr, s.dbc, sqlAttrLoginTimeout, uintptr(*t)); !succeeded(ret) {
			return odbcError(ret, sqlHandleDbc, s.dbc, "set login timeout")
		}
	}
	if s.cfg.ReadOnly {
		// Not every driver supports the attribute; ReadOnly=1 in the
		// connection string still applies.
		_ = setAttr(sqlSetConnectAttr, s.dbc, sqlAttrAccessMode, sqlModeReadOnly)
	}

	in := cBytes(target.ConnString())
	out := make([]byte, 1024)
	var outLen int16
	ret := sqlDriverConnect(s.dbc, 0, &in[0], sqlNTS, &out[0], int16(len(out)), &outLen, sqlDriverNoPrompt)
	if !succeeded(ret) {
		return odbcError(ret, sqlHandleDbc, s.dbc, "driver connect")
	}
	s.connected = true
	return nil
}

// Execute runs sql directly. A statement that yields no columns returns
// NoResultSet; a rejected statement fails with "SQL execution failed: ...".
func (s *odbcSession) Execute(sql string) (CursorOutcome, error) {
	if !s.connected {
		return NoResultSet, errors.New("connection failed: session is not connected")
	}
	if s.cursor != nil {
		_ = s.cursor.Close()
		s.cursor = nil
	}

	var stmt uintptr
	if ret := sqlAllocHandle(sqlHandleStmt, s.dbc, &stmt); !succeeded(ret) {
		return NoResultSet, odbcError(ret, sqlHandleDbc, s.dbc, "connection failed: allocate statement handle")
	}
	if t := s.cfg.QueryTimeout; t != nil {
		_ = setAttr(sqlSetStmtAttr, stmt, sqlAttrQueryTimeout, uintptr(*t))
	}

	text := cBytes(sql)
	ret := sqlExecDirect(stmt, &text[0], int32(sqlNTS))
	if ret == sqlNoData {
		_ = sqlFreeHandle(sqlHandleStmt, stmt)
		return NoResultSet, nil
	}
	if !succeeded(ret) {
		err := odbcError(ret, sqlHandleStmt, stmt, "SQL execution failed")
		_ = sqlFreeHandle(sqlHandleStmt, stmt)
		return NoResultSet, err
	}

	var ncols int16
	if ret := sqlNumResultCols(stmt, &ncols); !succeeded(ret) {
		err := odbcError(ret, sqlHandleStmt, stmt, "SQL execution failed: count result columns")
		_ = sqlFreeHandle(sqlHandleStmt, stmt)
		return NoResultSet, err
	}
	if ncols == 0 {
		_ = sqlFreeHandle(sqlHandleStmt, stmt)
		return NoResultSet, nil
	}

	cur, err := newODBCCursor(stmt, int(ncols), s.cfg.maxTextSize(), s.cfg.maxBinarySize())
	if err != nil {
		_ = sqlFreeHandle(sqlHandleStmt, stmt)
		return NoResultSet, errors.Wrap(err, "SQL execution failed")
	}
	s.cursor = cur
	return HasCursor(cur), nil
}

// Close frees the statement, disconnects and frees the connection and
// environment handles.
func (s *odbcSession) Close() error {
	s.closeOnce.Do(func() {
		if s.cursor != nil {
			s.closeErr = s.cursor.Close()
			s.cursor = nil
		}
		if s.connected {
			_ = sqlDisconnect(s.dbc)
			s.connected = false
		}
		if s.dbc != 0 {
			_ = sqlFreeHandle(sqlHandleDbc, s.dbc)
			s.dbc = 0
		}
		if s.env != 0 {
			_ = sqlFreeHandle(sqlHandleEnv, s.env)
			s.env = 0
		}
	})
	return s.closeErr
}

var _ Session = (*odbcSession)(nil)
