// Command odbcarrow runs a SQL statement through an ODBC data source and
// writes the result as an Arrow IPC stream.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"

	odbcarrow "github.com/semihalev/go-odbcarrow"
)

var logger log.Logger = log.NewNopLogger()

func main() {
	_ = godotenv.Load()

	app := kingpin.New("odbcarrow", "Query ODBC data sources into Apache Arrow.")
	app.Version(odbcarrow.LibraryVersion)
	app.HelpFlag.Short('h')

	logLevel := app.Flag("log.level", "Only log messages with the given severity or above. One of: [debug, info, warn, error]").
		Default("info").Enum("debug", "info", "warn", "error")
	app.PreAction(func(*kingpin.ParseContext) error {
		logger = newLogger(*logLevel)
		return nil
	})

	addQueryCommand(app)
	addTargetCommand(app)
	addInfoCommand(app)
	addPasswordCommand(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func newLogger(lvl string) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	return level.NewFilter(l, opt)
}

func exitWithErr(err error) {
	level.Error(logger).Log("msg", "command failed", "err", err)
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
