package odbcarrow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Connection holds the credentials and configuration for queries against
// one data source. It is stateless: every query opens its own session and
// releases it before returning, so a Connection may be shared between
// goroutines and never needs closing.
type Connection struct {
	hostID   string
	user     string
	password string

	cfg     QueryConfig
	driver  Driver
	logger  log.Logger
	mem     memory.Allocator
	metrics *metrics
}

// ConnectionOption represents an option for configuring a Connection.
type ConnectionOption func(*Connection)

// WithConfig sets the per-query configuration.
func WithConfig(cfg QueryConfig) ConnectionOption {
	return func(c *Connection) {
		c.cfg = cfg
	}
}

// WithDriver replaces the ODBC driver, mainly for tests.
func WithDriver(d Driver) ConnectionOption {
	return func(c *Connection) {
		c.driver = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Logger) ConnectionOption {
	return func(c *Connection) {
		c.logger = l
	}
}

// WithRegisterer registers the query metrics with r. Connections given the
// same registerer share one set of collectors.
func WithRegisterer(r prometheus.Registerer) ConnectionOption {
	return func(c *Connection) {
		c.metrics = metricsFor(r)
	}
}

// WithAllocator sets the allocator used for Arrow buffers.
func WithAllocator(mem memory.Allocator) ConnectionOption {
	return func(c *Connection) {
		c.mem = mem
	}
}

// Connect returns a Connection for hostID, which may be a DSN alias, a
// database path or a full ODBC connection string. Nothing is contacted
// until the first query.
func Connect(hostID, user, password string, options ...ConnectionOption) *Connection {
	c := &Connection{
		hostID:   hostID,
		user:     user,
		password: password,
		cfg:      DefaultQueryConfig(),
		driver:   NewODBCDriver(),
		logger:   log.NewNopLogger(),
		mem:      memory.DefaultAllocator,
	}

	// Apply all options
	for _, option := range options {
		option(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	return c
}

// String identifies the connection without revealing the password.
func (c *Connection) String() string {
	return fmt.Sprintf("Connection(host=%q, user=%q)", c.hostID, c.user)
}

// Config returns the per-query configuration.
func (c *Connection) Config() QueryConfig {
	return c.cfg
}

// Target resolves the connection target used by every query.
func (c *Connection) Target() ConnectionTarget {
	return Resolve(c.hostID, c.user, c.password, c.cfg)
}

// Close is a no-op; queries do not share state.
func (c *Connection) Close() error {
	return nil
}

// QueryArrowIPC runs sql and returns the result as an Arrow IPC stream.
// A statement without a result set yields a stream with a single "result"
// column and one empty batch unless OnEmpty is EmptyError.
func (c *Connection) QueryArrowIPC(ctx context.Context, sql string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.StreamArrowIPC(ctx, sql, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StreamArrowIPC is QueryArrowIPC writing to w as batches are produced.
// On failure w may have received part of the stream.
func (c *Connection) StreamArrowIPC(ctx context.Context, sql string, w io.Writer) (StreamStats, error) {
	var stats StreamStats
	err := c.query(ctx, sinkStream, sql, EmptyPlaceholder, func(stream BatchStream) error {
		var err error
		stats, err = EncodeStream(w, stream, StreamOptions{
			Allocator:   c.mem,
			Compression: c.cfg.Compression,
		})
		c.metrics.encodedBytes.Add(float64(stats.Bytes))
		return err
	})
	return stats, err
}

// QueryArrowCData runs sql and exports the result as one batch through the
// Arrow C data interface. The caller must Handoff, Import or Release the
// returned batch.
func (c *Connection) QueryArrowCData(ctx context.Context, sql string) (*ExportedBatch, error) {
	var batch *ExportedBatch
	err := c.query(ctx, sinkZeroCopy, sql, EmptyError, func(stream BatchStream) error {
		var err error
		batch, err = Export(stream, ExportOptions{
			Allocator: c.mem,
			Policy:    c.cfg.Export,
			MaxRows:   c.cfg.MaxExportRows,
			OnEmpty:   c.cfg.OnEmpty,
			Logger:    c.logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// QueryTable runs sql and collects every batch into a table. The caller
// must release the table.
func (c *Connection) QueryTable(ctx context.Context, sql string) (arrow.Table, error) {
	var tbl arrow.Table
	err := c.query(ctx, sinkTable, sql, EmptyPlaceholder, func(stream BatchStream) error {
		var err error
		tbl, err = CollectTable(stream)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tbl, nil
}

// query runs the shared pipeline: resolve, open, execute, read. consume
// receives the batch stream; the stream and the session are released
// before query returns, on every path. Errors are classified here.
func (c *Connection) query(ctx context.Context, sink, sql string, sinkDefault EmptyPolicy, consume func(BatchStream) error) (err error) {
	start := time.Now()
	logger := log.With(c.logger, "query_id", uuid.NewString(), "sink", sink)

	defer func() {
		err = c.finish(logger, sink, start, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	target := c.Target()
	level.Debug(logger).Log("msg", "opening session", "target", target.Redacted(), "style", target.Style())

	sess, err := c.driver.Open(ctx, target, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			level.Warn(logger).Log("msg", "closing session", "err", cerr)
		}
	}()

	outcome, err := sess.Execute(sql)
	if err != nil {
		return err
	}

	var stream BatchStream
	if outcome.HasCursor() {
		r, err := NewBatchReader(outcome.Cursor(), ReaderOptions{
			Allocator:     c.mem,
			BatchSize:     c.cfg.batchSize(),
			MaxTextSize:   c.cfg.maxTextSize(),
			MaxBinarySize: c.cfg.maxBinarySize(),
		})
		if err != nil {
			return err
		}
		defer func() {
			c.metrics.batches.Add(float64(r.Batches()))
			c.metrics.rows.Add(float64(r.Rows()))
		}()
		stream = r
	} else {
		if c.cfg.OnEmpty.resolve(sinkDefault) == EmptyError {
			return ErrNoResultSet
		}
		level.Debug(logger).Log("msg", "statement returned no result set, using placeholder")
		stream = NewPlaceholderStream()
	}
	defer stream.Release()

	return consume(stream)
}

// finish records metrics and logs the outcome of a query, and classifies
// its error.
func (c *Connection) finish(logger log.Logger, sink string, start time.Time, err error) error {
	elapsed := time.Since(start)
	c.metrics.queryDuration.WithLabelValues(sink).Observe(elapsed.Seconds())

	if err == nil {
		c.metrics.queries.WithLabelValues(sink, outcomeLabel(nil)).Inc()
		level.Debug(logger).Log("msg", "query finished", "duration", elapsed)
		return nil
	}

	cerr := Classify(err)
	c.metrics.queries.WithLabelValues(sink, outcomeLabel(cerr)).Inc()
	level.Error(logger).Log("msg", "query failed", "category", cerr.Type, "duration", elapsed, "err", cerr.Message)
	return cerr
}

// OutputFormat selects the sink used by Query.
type OutputFormat int

const (
	// FormatArrowIPC produces StreamingBytes.
	FormatArrowIPC OutputFormat = iota
	// FormatCData produces a ZeroCopyPair.
	FormatCData
	// FormatTable produces a TableResult.
	FormatTable
)

// String returns the name of the format.
func (f OutputFormat) String() string {
	switch f {
	case FormatArrowIPC:
		return "ipc"
	case FormatCData:
		return "cdata"
	case FormatTable:
		return "table"
	default:
		return fmt.Sprintf("OutputFormat(%d)", int(f))
	}
}

// Result is the output of Query: one of StreamingBytes, ZeroCopyPair or
// TableResult.
type Result interface {
	isResult()
}

// StreamingBytes is an encoded Arrow IPC stream.
type StreamingBytes struct {
	Data  []byte
	Stats StreamStats
}

// ZeroCopyPair is a batch exported through the C data interface.
type ZeroCopyPair struct {
	*ExportedBatch
}

// TableResult is an in-memory table.
type TableResult struct {
	arrow.Table
}

func (StreamingBytes) isResult() {}
func (ZeroCopyPair) isResult()   {}
func (TableResult) isResult()    {}

// Query runs sql through the sink selected by format.
func (c *Connection) Query(ctx context.Context, sql string, format OutputFormat) (Result, error) {
	switch format {
	case FormatArrowIPC:
		var buf bytes.Buffer
		stats, err := c.StreamArrowIPC(ctx, sql, &buf)
		if err != nil {
			return nil, err
		}
		return StreamingBytes{Data: buf.Bytes(), Stats: stats}, nil

	case FormatCData:
		b, err := c.QueryArrowCData(ctx, sql)
		if err != nil {
			return nil, err
		}
		return ZeroCopyPair{b}, nil

	case FormatTable:
		tbl, err := c.QueryTable(ctx, sql)
		if err != nil {
			return nil, err
		}
		return TableResult{tbl}, nil

	default:
		return nil, NewError(ErrRuntime, fmt.Sprintf("unknown output format %s", format))
	}
}

// QueryArrowIPC is a one-shot Connect and QueryArrowIPC.
func QueryArrowIPC(ctx context.Context, hostID, user, password, sql string, cfg QueryConfig) ([]byte, error) {
	return Connect(hostID, user, password, WithConfig(cfg)).QueryArrowIPC(ctx, sql)
}

// QueryArrowCData is a one-shot Connect and QueryArrowCData.
func QueryArrowCData(ctx context.Context, hostID, user, password, sql string, cfg QueryConfig) (*ExportedBatch, error) {
	return Connect(hostID, user, password, WithConfig(cfg)).QueryArrowCData(ctx, sql)
}

// QueryTable is a one-shot Connect and QueryTable.
func QueryTable(ctx context.Context, hostID, user, password, sql string, cfg QueryConfig) (arrow.Table, error) {
	return Connect(hostID, user, password, WithConfig(cfg)).QueryTable(ctx, sql)
}
