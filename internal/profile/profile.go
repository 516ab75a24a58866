// Package profile loads named connection profiles for the odbcarrow command.
package profile

import (
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"

	odbcarrow "github.com/semihalev/go-odbcarrow"
)

// Config is the on-disk profile file.
type Config struct {
	DefaultProfile string    `mapstructure:"default_profile" yaml:"default_profile"`
	Profiles       []Profile `mapstructure:"profiles" yaml:"profiles"`
}

// Profile is a saved connection with its query options. Sizes are written
// the way datasize parses them, e.g. "64KB" or "1MB".
type Profile struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Host     string `mapstructure:"host" yaml:"host"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	BatchSize     int    `mapstructure:"batch_size" yaml:"batch_size,omitempty"`
	MaxTextSize   string `mapstructure:"max_text_size" yaml:"max_text_size,omitempty"`
	MaxBinarySize string `mapstructure:"max_binary_size" yaml:"max_binary_size,omitempty"`

	ReadOnly          bool    `mapstructure:"read_only" yaml:"read_only"`
	ConnectionTimeout *uint32 `mapstructure:"connection_timeout" yaml:"connection_timeout,omitempty"`
	QueryTimeout      *uint32 `mapstructure:"query_timeout" yaml:"query_timeout,omitempty"`
	IsolationLevel    string  `mapstructure:"isolation_level" yaml:"isolation_level,omitempty"`
	DriverName        string  `mapstructure:"driver_name" yaml:"driver_name,omitempty"`

	OnEmpty       string `mapstructure:"on_empty" yaml:"on_empty,omitempty"`
	Export        string `mapstructure:"export" yaml:"export,omitempty"`
	MaxExportRows int64  `mapstructure:"max_export_rows" yaml:"max_export_rows,omitempty"`
	Compression   string `mapstructure:"compression" yaml:"compression,omitempty"`
}

// Find returns the named profile, or the default one when name is empty.
func (c *Config) Find(name string) (*Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		if len(c.Profiles) == 0 {
			return nil, errors.New("no profiles configured")
		}
		return &c.Profiles[0], nil
	}
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}
	return nil, errors.Errorf("profile %q not found", name)
}

// Add appends p, replacing any profile with the same name.
func (c *Config) Add(p Profile) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == p.Name {
			c.Profiles[i] = p
			return
		}
	}
	c.Profiles = append(c.Profiles, p)
}

// QueryConfig converts the profile options into an odbcarrow.QueryConfig.
func (p *Profile) QueryConfig() (odbcarrow.QueryConfig, error) {
	cfg := odbcarrow.QueryConfig{
		BatchSize:         p.BatchSize,
		ReadOnly:          p.ReadOnly,
		ConnectionTimeout: p.ConnectionTimeout,
		QueryTimeout:      p.QueryTimeout,
		IsolationLevel:    p.IsolationLevel,
		DriverName:        p.DriverName,
		MaxExportRows:     p.MaxExportRows,
	}

	var err error
	if cfg.MaxTextSize, err = ParseSize(p.MaxTextSize); err != nil {
		return cfg, errors.Wrapf(err, "profile %s: max_text_size", p.Name)
	}
	if cfg.MaxBinarySize, err = ParseSize(p.MaxBinarySize); err != nil {
		return cfg, errors.Wrapf(err, "profile %s: max_binary_size", p.Name)
	}
	if cfg.OnEmpty, err = ParseEmptyPolicy(p.OnEmpty); err != nil {
		return cfg, errors.Wrapf(err, "profile %s", p.Name)
	}
	if cfg.Export, err = ParseExportPolicy(p.Export); err != nil {
		return cfg, errors.Wrapf(err, "profile %s", p.Name)
	}
	if cfg.Compression, err = ParseCompression(p.Compression); err != nil {
		return cfg, errors.Wrapf(err, "profile %s", p.Name)
	}
	return cfg, nil
}

// ParseSize parses a byte size such as "64KB". An empty string is 0, which
// leaves the library default in place.
func ParseSize(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", s)
	}
	return int(v.Bytes()), nil
}

func ParseEmptyPolicy(s string) (odbcarrow.EmptyPolicy, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return odbcarrow.EmptyDefault, nil
	case "placeholder":
		return odbcarrow.EmptyPlaceholder, nil
	case "error":
		return odbcarrow.EmptyError, nil
	}
	return odbcarrow.EmptyDefault, errors.Errorf("invalid on_empty %q, want default, placeholder or error", s)
}

func ParseExportPolicy(s string) (odbcarrow.ExportPolicy, error) {
	switch strings.ToLower(s) {
	case "", "concatenate":
		return odbcarrow.ExportConcatenate, nil
	case "first_batch", "first-batch":
		return odbcarrow.ExportFirstBatch, nil
	}
	return odbcarrow.ExportConcatenate, errors.Errorf("invalid export %q, want concatenate or first_batch", s)
}

func ParseCompression(s string) (odbcarrow.Compression, error) {
	switch c := odbcarrow.Compression(strings.ToLower(s)); c {
	case odbcarrow.CompressionNone, odbcarrow.CompressionLZ4, odbcarrow.CompressionZSTD:
		return c, nil
	}
	if strings.EqualFold(s, "none") {
		return odbcarrow.CompressionNone, nil
	}
	return odbcarrow.CompressionNone, errors.Errorf("invalid compression %q, want none, lz4 or zstd", s)
}
