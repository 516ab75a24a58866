package main

import (
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	odbcarrow "github.com/semihalev/go-odbcarrow"
	"github.com/semihalev/go-odbcarrow/internal/profile"
)

// connectFlags are shared by every command that resolves a connection.
// Explicit flags override the values of the selected profile.
type connectFlags struct {
	configFile string
	profile    string

	host     string
	user     string
	password string

	batchSize         int
	maxTextSize       string
	maxBinarySize     string
	readOnly          bool
	connectionTimeout uint32
	queryTimeout      uint32
	isolation         string
	driverName        string
	onEmpty           string
	export            string
	maxExportRows     int64
	compression       string
}

func (f *connectFlags) register(cmd *kingpin.CmdClause) {
	cmd.Flag("config", "Profile file. Defaults to ~/.odbcarrow/profiles.yaml.").Envar("ODBCARROW_CONFIG").StringVar(&f.configFile)
	cmd.Flag("profile", "Named profile to use.").Short('p').Envar("ODBCARROW_PROFILE").StringVar(&f.profile)
	cmd.Flag("host", "DSN name, database path or full ODBC connection string.").Envar("ODBCARROW_HOST").StringVar(&f.host)
	cmd.Flag("user", "Database user.").Short('u').Envar("ODBCARROW_USER").StringVar(&f.user)
	cmd.Flag("password", "Database password. Falls back to the OS keyring.").Envar("ODBCARROW_PASSWORD").StringVar(&f.password)

	cmd.Flag("batch-size", "Maximum rows per Arrow batch.").IntVar(&f.batchSize)
	cmd.Flag("max-text-size", "Cap for each text cell, e.g. 64KB.").StringVar(&f.maxTextSize)
	cmd.Flag("max-binary-size", "Cap for each binary cell, e.g. 1MB.").StringVar(&f.maxBinarySize)
	cmd.Flag("read-only", "Open the connection read-only.").BoolVar(&f.readOnly)
	cmd.Flag("connection-timeout", "Connection timeout in seconds.").Uint32Var(&f.connectionTimeout)
	cmd.Flag("query-timeout", "Query timeout in seconds.").Uint32Var(&f.queryTimeout)
	cmd.Flag("isolation", "Isolation level, e.g. read_committed.").StringVar(&f.isolation)
	cmd.Flag("driver-name", "ODBC driver for targets built from a database path.").StringVar(&f.driverName)
	cmd.Flag("on-empty", "Statements without a result set: default, placeholder or error.").StringVar(&f.onEmpty)
	cmd.Flag("export", "Zero-copy export of multiple batches: concatenate or first_batch.").StringVar(&f.export)
	cmd.Flag("max-export-rows", "Row limit for concatenated zero-copy exports.").Int64Var(&f.maxExportRows)
	cmd.Flag("compression", "IPC body compression: none, lz4 or zstd.").StringVar(&f.compression)
}

// resolve merges the selected profile with the explicit flags.
func (f *connectFlags) resolve() (host, user, password string, cfg odbcarrow.QueryConfig, err error) {
	p := &profile.Profile{}
	if f.profile != "" || f.host == "" {
		profiles, err := profile.Load(f.configFile)
		if err != nil {
			return "", "", "", cfg, err
		}
		if len(profiles.Profiles) > 0 || f.profile != "" {
			if p, err = profiles.Find(f.profile); err != nil {
				return "", "", "", cfg, err
			}
		}
	}

	if f.host != "" {
		p.Host = f.host
	}
	if f.user != "" {
		p.User = f.user
	}
	if f.password != "" {
		p.Password = f.password
	}
	if f.batchSize > 0 {
		p.BatchSize = f.batchSize
	}
	if f.maxTextSize != "" {
		p.MaxTextSize = f.maxTextSize
	}
	if f.maxBinarySize != "" {
		p.MaxBinarySize = f.maxBinarySize
	}
	if f.readOnly {
		p.ReadOnly = true
	}
	if f.connectionTimeout > 0 {
		p.ConnectionTimeout = odbcarrow.Uint32(f.connectionTimeout)
	}
	if f.queryTimeout > 0 {
		p.QueryTimeout = odbcarrow.Uint32(f.queryTimeout)
	}
	if f.isolation != "" {
		p.IsolationLevel = f.isolation
	}
	if f.driverName != "" {
		p.DriverName = f.driverName
	}
	if f.onEmpty != "" {
		p.OnEmpty = f.onEmpty
	}
	if f.export != "" {
		p.Export = f.export
	}
	if f.maxExportRows > 0 {
		p.MaxExportRows = f.maxExportRows
	}
	if f.compression != "" {
		p.Compression = f.compression
	}

	if p.Host == "" {
		return "", "", "", cfg, errors.New("no host: pass --host or select a profile")
	}
	if cfg, err = p.QueryConfig(); err != nil {
		return "", "", "", cfg, err
	}
	if password, err = profile.ResolvePassword(p); err != nil {
		return "", "", "", cfg, err
	}
	return p.Host, p.User, password, cfg, nil
}

func readSQL(sql, file string) (string, error) {
	switch {
	case sql != "" && file != "":
		return "", errors.New("--sql and --sql-file are mutually exclusive")
	case sql != "":
		return sql, nil
	case file == "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), errors.Wrap(err, "read sql from stdin")
	case file != "":
		b, err := os.ReadFile(file)
		return string(b), errors.Wrap(err, "read sql file")
	}
	return "", errors.New("no statement: pass --sql or --sql-file")
}
