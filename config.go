package odbcarrow

import (
	"strings"
)

const (
	// DefaultBatchSize is the maximum number of rows per Arrow batch.
	DefaultBatchSize = 65535
	// DefaultMaxTextSize caps each text cell, in bytes.
	DefaultMaxTextSize = 65536
	// DefaultMaxBinarySize caps each binary cell, in bytes.
	DefaultMaxBinarySize = 65536
	// DefaultDriverName is used for targets synthesized from a path or a long alias.
	DefaultDriverName = "Firebird/InterBase(r) driver"
)

// EmptyPolicy decides what a sink does with a statement that produced no
// result set (streaming and table sinks) or no batches (zero-copy sink).
type EmptyPolicy int

const (
	// EmptyDefault keeps each sink's own behaviour: placeholder for the
	// streaming and table sinks, error for the zero-copy sink.
	EmptyDefault EmptyPolicy = iota
	// EmptyPlaceholder produces a valid, empty result.
	EmptyPlaceholder
	// EmptyError fails the call with ErrNoResultSet or ErrNoData.
	EmptyError
)

func (p EmptyPolicy) resolve(sinkDefault EmptyPolicy) EmptyPolicy {
	if p == EmptyDefault {
		return sinkDefault
	}
	return p
}

// ExportPolicy decides how a multi-batch result is exported through the C data
// interface, which can only carry one batch.
type ExportPolicy int

const (
	// ExportConcatenate merges every batch into a single batch.
	ExportConcatenate ExportPolicy = iota
	// ExportFirstBatch exports only the first batch and drops the rest.
	ExportFirstBatch
)

// Compression selects the IPC body compression codec.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionLZ4  Compression = "lz4"
	CompressionZSTD Compression = "zstd"
)

// QueryConfig is the per-call configuration. The zero value is valid.
//
// Optional driver options are pointers or empty strings; unset options are
// never written into the connection target.
type QueryConfig struct {
	// BatchSize is the maximum rows per batch. 0 means DefaultBatchSize.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size,omitempty"`
	// MaxTextSize caps text cells in bytes. 0 means DefaultMaxTextSize.
	MaxTextSize int `mapstructure:"max_text_size" yaml:"max_text_size,omitempty"`
	// MaxBinarySize caps binary cells in bytes. 0 means DefaultMaxBinarySize.
	MaxBinarySize int `mapstructure:"max_binary_size" yaml:"max_binary_size,omitempty"`

	ReadOnly          bool    `mapstructure:"read_only" yaml:"read_only"`
	ConnectionTimeout *uint32 `mapstructure:"connection_timeout" yaml:"connection_timeout,omitempty"`
	QueryTimeout      *uint32 `mapstructure:"query_timeout" yaml:"query_timeout,omitempty"`
	// IsolationLevel is one of read_uncommitted, read_committed,
	// repeatable_read, serializable or snapshot (any case). Other values are
	// passed to the driver verbatim.
	IsolationLevel string `mapstructure:"isolation_level" yaml:"isolation_level,omitempty"`
	// DriverName names the ODBC driver for synthesized targets.
	DriverName string `mapstructure:"driver_name" yaml:"driver_name,omitempty"`

	OnEmpty       EmptyPolicy  `mapstructure:"on_empty" yaml:"on_empty,omitempty"`
	Export        ExportPolicy `mapstructure:"export" yaml:"export,omitempty"`
	MaxExportRows int64        `mapstructure:"max_export_rows" yaml:"max_export_rows,omitempty"`
	Compression   Compression  `mapstructure:"compression" yaml:"compression,omitempty"`
}

// DefaultQueryConfig returns the configuration used when none is supplied.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{}
}

// Uint32 returns a pointer to v, for the optional QueryConfig fields.
func Uint32(v uint32) *uint32 {
	return &v
}

func (c QueryConfig) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

func (c QueryConfig) maxTextSize() int {
	if c.MaxTextSize <= 0 {
		return DefaultMaxTextSize
	}
	return c.MaxTextSize
}

func (c QueryConfig) maxBinarySize() int {
	if c.MaxBinarySize <= 0 {
		return DefaultMaxBinarySize
	}
	return c.MaxBinarySize
}

func (c QueryConfig) driverName() string {
	if c.DriverName == "" {
		return DefaultDriverName
	}
	return c.DriverName
}

// isolationTokens maps canonical isolation level names to the driver tokens.
var isolationTokens = map[string]string{
	"read_uncommitted": "ReadUncommitted",
	"read_committed":   "ReadCommitted",
	"repeatable_read":  "RepeatableRead",
	"serializable":     "Serializable",
	"snapshot":         "Snapshot",
}

// IsolationToken maps level onto the driver's isolation token. Unknown levels
// are returned unchanged so driver-specific levels can be passed through.
func IsolationToken(level string) string {
	if tok, ok := isolationTokens[strings.ToLower(level)]; ok {
		return tok
	}
	return level
}
