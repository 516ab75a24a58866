package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	odbcarrow "github.com/semihalev/go-odbcarrow"
	"github.com/semihalev/go-odbcarrow/internal/storage"
)

// queryCommand runs one statement and writes or summarizes its result.
type queryCommand struct {
	conn    connectFlags
	sql     string
	sqlFile string
	format  string
	out     string
	quiet   bool
}

func addQueryCommand(app *kingpin.Application) {
	cmd := &queryCommand{}
	c := app.Command("query", "Run a statement and write the result as an Arrow IPC stream.").Default()
	cmd.conn.register(c)
	c.Flag("sql", "Statement to run.").Short('e').StringVar(&cmd.sql)
	c.Flag("sql-file", "File holding the statement, or - for stdin.").Short('f').StringVar(&cmd.sqlFile)
	c.Flag("format", "ipc streams the result; table and cdata collect it and print a summary.").
		Default("ipc").EnumVar(&cmd.format, "ipc", "table", "cdata")
	c.Flag("out", "Destination for ipc output: -, a local path or s3://bucket/key.").Short('o').Default("-").StringVar(&cmd.out)
	c.Flag("quiet", "Do not print the summary line.").Short('q').BoolVar(&cmd.quiet)
	c.Action(cmd.run)
}

func (cmd *queryCommand) run(*kingpin.ParseContext) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sql, err := readSQL(cmd.sql, cmd.sqlFile)
	if err != nil {
		exitWithErr(err)
	}
	host, user, password, cfg, err := cmd.conn.resolve()
	if err != nil {
		exitWithErr(err)
	}

	conn := odbcarrow.Connect(host, user, password,
		odbcarrow.WithConfig(cfg),
		odbcarrow.WithLogger(logger))
	defer conn.Close()

	start := time.Now()
	switch cmd.format {
	case "ipc":
		err = cmd.streamIPC(ctx, conn, sql, start)
	default:
		err = cmd.collect(ctx, conn, sql, start)
	}
	if err != nil {
		exitWithErr(err)
	}
	return nil
}

func (cmd *queryCommand) streamIPC(ctx context.Context, conn *odbcarrow.Connection, sql string, start time.Time) error {
	dest, err := storage.ParseDestination(cmd.out)
	if err != nil {
		return err
	}

	var (
		w        io.WriteCloser
		done     <-chan error
		location = "stdout"
	)
	if dest.Stdout() {
		w, done = stdoutWriter()
	} else {
		provider, err := newProvider(dest)
		if err != nil {
			return err
		}
		w, done = provider.StreamToFile(ctx, dest.Key)
		location = provider.Location(dest.Key)
		if err := storage.Failed(done); err != nil {
			return err
		}
	}

	stats, err := conn.StreamArrowIPC(ctx, sql, w)
	if err != nil {
		storage.Abort(w, err)
		<-done
		return err
	}
	if err := storage.Wait(w, done); err != nil {
		return errors.Wrapf(err, "write %s", location)
	}

	level.Info(logger).Log("msg", "query written", "dest", location, "batches", stats.Batches, "rows", stats.Rows, "bytes", stats.Bytes)
	if !cmd.quiet {
		fmt.Fprintf(os.Stderr, "%s rows in %d batches, %s written to %s in %s\n",
			humanize.Comma(stats.Rows), stats.Batches, humanize.Bytes(uint64(stats.Bytes)), location,
			time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func (cmd *queryCommand) collect(ctx context.Context, conn *odbcarrow.Connection, sql string, start time.Time) error {
	format := odbcarrow.FormatTable
	if cmd.format == "cdata" {
		format = odbcarrow.FormatCData
	}

	res, err := conn.Query(ctx, sql, format)
	if err != nil {
		return err
	}

	var (
		schema  *arrow.Schema
		rows    int64
		dropped int64
	)
	switch r := res.(type) {
	case odbcarrow.TableResult:
		defer r.Release()
		schema, rows = r.Schema(), r.NumRows()
	case odbcarrow.ZeroCopyPair:
		defer r.Release()
		schema, rows, dropped = r.Schema(), r.NumRows(), r.DroppedRows()
	default:
		return errors.Errorf("unexpected result %T", res)
	}

	fmt.Fprintf(os.Stdout, "%s rows, %d columns (%s)\n", humanize.Comma(rows), schema.NumFields(), format)
	for _, f := range schema.Fields() {
		null := ""
		if f.Nullable {
			null = " null"
		}
		fmt.Fprintf(os.Stdout, "  %s %s%s\n", f.Name, f.Type, null)
	}
	if dropped > 0 {
		fmt.Fprintf(os.Stdout, "%s rows dropped by the first_batch export policy\n", humanize.Comma(dropped))
	}
	if !cmd.quiet {
		fmt.Fprintf(os.Stderr, "collected in %s\n", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func newProvider(dest storage.Destination) (storage.Provider, error) {
	switch dest.Scheme {
	case "s3":
		client, err := storage.NewS3Client(storage.S3ConfigFromEnv())
		if err != nil {
			return nil, err
		}
		return storage.NewS3Provider(client, dest.Bucket, logger), nil
	default:
		return storage.NewLocalProvider(".", logger), nil
	}
}

type stdout struct{ io.Writer }

func (stdout) Close() error { return nil }

func stdoutWriter() (io.WriteCloser, <-chan error) {
	done := make(chan error, 1)
	done <- nil
	close(done)
	return stdout{os.Stdout}, done
}
