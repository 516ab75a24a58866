package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	odbcarrow "github.com/semihalev/go-odbcarrow"
)

const sampleProfiles = `
default_profile: warehouse
profiles:
  - name: employees
    host: employees
    user: SYSDBA
    password: masterkey
  - name: warehouse
    host: /var/db/warehouse.fdb
    user: REPORTS
    batch_size: 1000
    max_text_size: 64KB
    max_binary_size: 1MB
    read_only: true
    connection_timeout: 30
    query_timeout: 120
    isolation_level: read_committed
    on_empty: error
    export: first_batch
    max_export_rows: 500000
    compression: zstd
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 2)

	p, err := cfg.Find("")
	require.NoError(t, err)
	require.Equal(t, "warehouse", p.Name)

	qc, err := p.QueryConfig()
	require.NoError(t, err)
	require.Equal(t, odbcarrow.QueryConfig{
		BatchSize:         1000,
		MaxTextSize:       64 * 1024,
		MaxBinarySize:     1024 * 1024,
		ReadOnly:          true,
		ConnectionTimeout: odbcarrow.Uint32(30),
		QueryTimeout:      odbcarrow.Uint32(120),
		IsolationLevel:    "read_committed",
		OnEmpty:           odbcarrow.EmptyError,
		Export:            odbcarrow.ExportFirstBatch,
		MaxExportRows:     500000,
		Compression:       odbcarrow.CompressionZSTD,
	}, qc)

	p, err = cfg.Find("employees")
	require.NoError(t, err)
	qc, err = p.QueryConfig()
	require.NoError(t, err)
	require.Equal(t, odbcarrow.DefaultQueryConfig(), qc)

	_, err = cfg.Find("nope")
	require.Error(t, err)
}

func TestLoadInvalidOptions(t *testing.T) {
	for _, body := range []string{
		"profiles:\n  - name: a\n    max_text_size: lots\n",
		"profiles:\n  - name: a\n    on_empty: sometimes\n",
		"profiles:\n  - name: a\n    export: all\n",
		"profiles:\n  - name: a\n    compression: snappy\n",
	} {
		cfg, err := Load(writeProfiles(t, body))
		require.NoError(t, err)
		_, err = cfg.Profiles[0].QueryConfig()
		require.Error(t, err, body)
	}
}

func TestFindWithoutProfiles(t *testing.T) {
	_, err := (&Config{}).Find("")
	require.Error(t, err)

	cfg := &Config{Profiles: []Profile{{Name: "first"}, {Name: "second"}}}
	p, err := cfg.Find("")
	require.NoError(t, err)
	require.Equal(t, "first", p.Name)
}

func TestSaveDropsPasswords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.yaml")

	cfg := &Config{DefaultProfile: "employees"}
	cfg.Add(Profile{Name: "employees", Host: "employees", User: "SYSDBA", Password: "masterkey", MaxTextSize: "4KB"})
	cfg.Add(Profile{Name: "employees", Host: "employees", User: "SYSDBA", Password: "masterkey", MaxTextSize: "8KB"})
	require.Len(t, cfg.Profiles, 1)
	require.NoError(t, Save(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "masterkey")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "employees", loaded.DefaultProfile)
	require.Equal(t, "8KB", loaded.Profiles[0].MaxTextSize)
	require.Empty(t, loaded.Profiles[0].Password)
}

func TestResolvePassword(t *testing.T) {
	keyring.MockInit()

	pw, err := ResolvePassword(&Profile{User: "SYSDBA", Host: "employees", Password: "inline"})
	require.NoError(t, err)
	require.Equal(t, "inline", pw)

	pw, err = ResolvePassword(&Profile{User: "SYSDBA", Host: "employees"})
	require.NoError(t, err)
	require.Empty(t, pw)

	require.NoError(t, SetPassword("SYSDBA", "employees", "masterkey"))
	pw, err = ResolvePassword(&Profile{User: "SYSDBA", Host: "employees"})
	require.NoError(t, err)
	require.Equal(t, "masterkey", pw)
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = ParseSize("64KB")
	require.NoError(t, err)
	require.Equal(t, 65536, n)

	n, err = ParseSize("512")
	require.NoError(t, err)
	require.Equal(t, 512, n)
}
