package odbcarrow

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeCursor serves rows from memory. failAt is the row index whose fetch
// fails, or -1; the fetch fails with failErr when set.
type fakeCursor struct {
	columns []ColumnDesc
	rows    [][]any
	idx     int
	failAt  int
	failErr error
	closed  bool
}

func (c *fakeCursor) Columns() []ColumnDesc { return c.columns }

func (c *fakeCursor) Next(dest []any) (bool, error) {
	if c.closed {
		return false, errors.New("cursor is closed")
	}
	if c.idx == c.failAt {
		if c.failErr != nil {
			return false, c.failErr
		}
		return false, errors.New("[HY000] (0) fetch failed")
	}
	if c.idx >= len(c.rows) {
		return false, nil
	}
	copy(dest, c.rows[c.idx])
	c.idx++
	return true, nil
}

func (c *fakeCursor) Close() error {
	c.closed = true
	return nil
}

var peopleColumns = []ColumnDesc{
	{Name: "ID", SQLType: SQLBigint, Size: 19, Nullable: NoNulls},
	{Name: "NAME", SQLType: SQLVarchar, Size: 40, Nullable: Nullable},
}

// peopleCursor returns a cursor over n rows (i, "name-i"); every tenth name
// is NULL.
func peopleCursor(n int) *fakeCursor {
	rows := make([][]any, n)
	for i := range rows {
		var name any = fmt.Sprintf("name-%d", i)
		if i%10 == 9 {
			name = nil
		}
		rows[i] = []any{int64(i), name}
	}
	return &fakeCursor{columns: peopleColumns, rows: rows, failAt: -1}
}

// fakeDriver records every target it was asked to open and every session
// it handed out.
type fakeDriver struct {
	openErr   error
	execErr   error
	newCursor func() ResultCursor // nil means no result set

	targets  []ConnectionTarget
	sessions []*fakeSession
}

func (d *fakeDriver) Open(_ context.Context, target ConnectionTarget, _ QueryConfig) (Session, error) {
	d.targets = append(d.targets, target)
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeSession{driver: d}
	d.sessions = append(d.sessions, s)
	return s, nil
}

type fakeSession struct {
	driver *fakeDriver
	cursor ResultCursor
	sql    string
	closed int
}

func (s *fakeSession) Execute(sql string) (CursorOutcome, error) {
	s.sql = sql
	if s.driver.execErr != nil {
		return NoResultSet, s.driver.execErr
	}
	if s.driver.newCursor == nil {
		return NoResultSet, nil
	}
	s.cursor = s.driver.newCursor()
	return HasCursor(s.cursor), nil
}

func (s *fakeSession) Close() error {
	s.closed++
	if s.cursor != nil {
		return s.cursor.Close()
	}
	return nil
}

// requireAllClosed checks that every session was closed exactly once.
func requireAllClosed(t *testing.T, d *fakeDriver) {
	t.Helper()
	for i, s := range d.sessions {
		require.Equal(t, 1, s.closed, "session %d", i)
	}
}
