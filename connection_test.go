package odbcarrow

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func peopleDriver(rows int) *fakeDriver {
	return &fakeDriver{newCursor: func() ResultCursor { return peopleCursor(rows) }}
}

func TestConnectionQueryArrowIPC(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	d := peopleDriver(250)
	c := Connect("employees", "SYSDBA", "masterkey",
		WithDriver(d),
		WithAllocator(mem),
		WithConfig(QueryConfig{BatchSize: 100, ReadOnly: true}))

	data, err := c.QueryArrowIPC(context.Background(), "SELECT id, name FROM people")
	require.NoError(t, err)

	tbl := decodeTable(t, data)
	defer tbl.Release()
	require.Equal(t, int64(250), tbl.NumRows())
	requirePeopleOrder(t, tbl)

	require.Len(t, d.sessions, 1)
	require.Equal(t, "SELECT id, name FROM people", d.sessions[0].sql)
	require.Equal(t, "DSN=employees;UID=SYSDBA;PWD=masterkey;ReadOnly=1;", d.targets[0].ConnString())
	requireAllClosed(t, d)
}

func TestConnectionIsStateless(t *testing.T) {
	d := peopleDriver(3)
	c := Connect("employees", "u", "p", WithDriver(d))

	for i := 0; i < 3; i++ {
		_, err := c.QueryArrowIPC(context.Background(), "SELECT 1")
		require.NoError(t, err)
	}
	require.Len(t, d.sessions, 3)
	requireAllClosed(t, d)
	require.NoError(t, c.Close())
}

func TestConnectionQueryArrowCData(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	d := peopleDriver(12)
	c := Connect("employees", "u", "p", WithDriver(d), WithAllocator(mem), WithConfig(QueryConfig{BatchSize: 5}))

	b, err := c.QueryArrowCData(context.Background(), "SELECT * FROM people")
	require.NoError(t, err)
	requireAllClosed(t, d)

	rec, err := b.Import()
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, int64(12), rec.NumRows())
}

func TestConnectionQueryArrowCDataFirstBatch(t *testing.T) {
	d := peopleDriver(12)
	c := Connect("employees", "u", "p", WithDriver(d),
		WithConfig(QueryConfig{BatchSize: 5, Export: ExportFirstBatch}))

	b, err := c.QueryArrowCData(context.Background(), "SELECT * FROM people")
	require.NoError(t, err)
	defer b.Release()

	require.Equal(t, int64(5), b.NumRows())
	require.Equal(t, int64(7), b.DroppedRows())
}

func TestConnectionQueryTable(t *testing.T) {
	d := peopleDriver(42)
	c := Connect("employees", "u", "p", WithDriver(d), WithConfig(QueryConfig{BatchSize: 10}))

	tbl, err := c.QueryTable(context.Background(), "SELECT * FROM people")
	require.NoError(t, err)
	defer tbl.Release()

	require.Equal(t, int64(42), tbl.NumRows())
	requireAllClosed(t, d)
}

func TestConnectionNoResultSet(t *testing.T) {
	ctx := context.Background()

	t.Run("stream placeholder", func(t *testing.T) {
		d := &fakeDriver{}
		data, err := Connect("employees", "u", "p", WithDriver(d)).QueryArrowIPC(ctx, "UPDATE people SET name = 'x'")
		require.NoError(t, err)

		tbl := decodeTable(t, data)
		defer tbl.Release()
		require.Equal(t, PlaceholderColumn, tbl.Schema().Field(0).Name)
		require.Zero(t, tbl.NumRows())
		requireAllClosed(t, d)
	})

	t.Run("stream error on request", func(t *testing.T) {
		d := &fakeDriver{}
		_, err := Connect("employees", "u", "p", WithDriver(d), WithConfig(QueryConfig{OnEmpty: EmptyError})).
			QueryArrowIPC(ctx, "UPDATE people SET name = 'x'")
		require.ErrorIs(t, err, ErrNoResultSet)
		require.True(t, IsError(err, ErrSQL))
		requireAllClosed(t, d)
	})

	t.Run("zero-copy error", func(t *testing.T) {
		d := &fakeDriver{}
		_, err := Connect("employees", "u", "p", WithDriver(d)).QueryArrowCData(ctx, "DELETE FROM people")
		require.ErrorIs(t, err, ErrNoResultSet)
		require.EqualError(t, err, "SQL Error: SQL did not return a result set")
		requireAllClosed(t, d)
	})

	t.Run("zero-copy placeholder on request", func(t *testing.T) {
		d := &fakeDriver{}
		b, err := Connect("employees", "u", "p", WithDriver(d), WithConfig(QueryConfig{OnEmpty: EmptyPlaceholder})).
			QueryArrowCData(ctx, "DELETE FROM people")
		require.NoError(t, err)
		defer b.Release()
		require.Zero(t, b.NumRows())
		require.Equal(t, PlaceholderColumn, b.Schema().Field(0).Name)
	})

	t.Run("zero-copy without rows", func(t *testing.T) {
		d := peopleDriver(0)
		_, err := Connect("employees", "u", "p", WithDriver(d)).QueryArrowCData(ctx, "SELECT * FROM people WHERE 1 = 0")
		require.ErrorIs(t, err, ErrNoData)
		require.True(t, IsError(err, ErrRuntime))
		requireAllClosed(t, d)
	})
}

func TestConnectionErrorCategories(t *testing.T) {
	ctx := context.Background()

	t.Run("connection", func(t *testing.T) {
		d := &fakeDriver{openErr: errors.New("connection failed: driver connect: [08001] (-902) Unable to complete network request")}
		_, err := Connect("employees", "u", "p", WithDriver(d)).QueryArrowIPC(ctx, "SELECT 1")
		require.True(t, IsError(err, ErrConnection))
		require.Contains(t, err.Error(), "Connection Error: ")
		require.Empty(t, d.sessions)
	})

	t.Run("driver manager missing", func(t *testing.T) {
		d := &fakeDriver{openErr: errors.Wrap(errors.New("[IM002] (0) Data source name not found"), "connection failed")}
		_, err := Connect("employees", "u", "p", WithDriver(d)).QueryTable(ctx, "SELECT 1")
		require.True(t, IsError(err, ErrConnection))
	})

	t.Run("sql", func(t *testing.T) {
		d := &fakeDriver{execErr: errors.New("SQL execution failed: [42000] (-104) Token unknown - line 1, column 8")}
		_, err := Connect("employees", "u", "p", WithDriver(d)).QueryArrowCData(ctx, "SELEC 1")
		require.True(t, IsError(err, ErrSQL))
		requireAllClosed(t, d)
	})

	t.Run("arrow decode", func(t *testing.T) {
		d := &fakeDriver{newCursor: func() ResultCursor {
			c := peopleCursor(100)
			c.failAt = 50
			return c
		}}
		_, err := Connect("employees", "u", "p", WithDriver(d), WithConfig(QueryConfig{BatchSize: 10})).
			QueryArrowIPC(ctx, "SELECT * FROM people")
		require.True(t, IsError(err, ErrArrow))
		requireAllClosed(t, d)
	})

	t.Run("arrow encode", func(t *testing.T) {
		d := peopleDriver(10)
		_, err := Connect("employees", "u", "p", WithDriver(d)).StreamArrowIPC(ctx, "SELECT * FROM people", failingWriter{})
		require.True(t, IsError(err, ErrArrow))
		requireAllClosed(t, d)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		d := peopleDriver(10)
		_, err := Connect("employees", "u", "p", WithDriver(d)).QueryArrowIPC(cctx, "SELECT 1")
		require.ErrorIs(t, err, context.Canceled)
		require.True(t, IsError(err, ErrRuntime))
		require.Empty(t, d.targets)
	})
}

func TestConnectionQuery(t *testing.T) {
	ctx := context.Background()
	c := Connect("employees", "u", "p", WithDriver(peopleDriver(7)))

	for _, format := range []OutputFormat{FormatArrowIPC, FormatCData, FormatTable} {
		t.Run(format.String(), func(t *testing.T) {
			res, err := c.Query(ctx, "SELECT * FROM people", format)
			require.NoError(t, err)

			switch r := res.(type) {
			case StreamingBytes:
				require.Equal(t, FormatArrowIPC, format)
				require.Equal(t, int64(7), r.Stats.Rows)
				require.NotEmpty(t, r.Data)
			case ZeroCopyPair:
				require.Equal(t, FormatCData, format)
				require.Equal(t, int64(7), r.NumRows())
				r.Release()
			case TableResult:
				require.Equal(t, FormatTable, format)
				require.Equal(t, int64(7), r.NumRows())
				r.Release()
			default:
				t.Fatalf("unexpected result %T", res)
			}
		})
	}

	_, err := c.Query(ctx, "SELECT 1", OutputFormat(42))
	require.True(t, IsError(err, ErrRuntime))
}

func TestConnectionString(t *testing.T) {
	c := Connect("employees", "SYSDBA", "masterkey")

	require.Equal(t, `Connection(host="employees", user="SYSDBA")`, c.String())
	require.NotContains(t, c.String(), "masterkey")
}

func TestConnectionLogsRedactedTarget(t *testing.T) {
	var buf bytes.Buffer
	c := Connect("employees", "SYSDBA", "masterkey",
		WithDriver(peopleDriver(3)),
		WithLogger(log.NewLogfmtLogger(&buf)))

	_, err := c.QueryArrowIPC(context.Background(), "SELECT 1")
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "query_id=")
	require.Contains(t, out, "PWD=****")
	require.NotContains(t, out, "masterkey")
}

func TestConnectionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx := context.Background()

	ok := Connect("employees", "u", "p", WithDriver(peopleDriver(25)), WithRegisterer(reg),
		WithConfig(QueryConfig{BatchSize: 10}))
	_, err := ok.QueryArrowIPC(ctx, "SELECT * FROM people")
	require.NoError(t, err)

	bad := &Connection{}
	*bad = *ok
	bad.driver = &fakeDriver{execErr: errors.New("SQL execution failed: [42S02] (-204) Table unknown")}
	_, err = bad.QueryArrowIPC(ctx, "SELECT * FROM nope")
	require.Error(t, err)

	m := ok.metrics
	require.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(sinkStream, "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(sinkStream, "sql_error")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.batches))
	require.Equal(t, 25.0, testutil.ToFloat64(m.rows))
	require.Greater(t, testutil.ToFloat64(m.encodedBytes), 0.0)
	require.Equal(t, 1, testutil.CollectAndCount(m.queryDuration))
}

func TestConnectionsShareRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx := context.Background()

	var conns []*Connection
	require.NotPanics(t, func() {
		for i := 0; i < 2; i++ {
			conns = append(conns, Connect("employees", "u", "p", WithDriver(peopleDriver(4)), WithRegisterer(reg)))
		}
	})

	for _, c := range conns {
		_, err := c.QueryArrowIPC(ctx, "SELECT * FROM people")
		require.NoError(t, err)
	}

	require.Same(t, conns[0].metrics, conns[1].metrics)
	require.Equal(t, 2.0, testutil.ToFloat64(conns[0].metrics.queries.WithLabelValues(sinkStream, "success")))
	require.Equal(t, 8.0, testutil.ToFloat64(conns[0].metrics.rows))

	n, err := testutil.GatherAndCount(reg, "odbcarrow_queries_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
