package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-h5table/container"
	"github.com/robert-malhotra/go-h5table/tablefile"
	"github.com/robert-malhotra/go-h5table/tableio"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "h5table.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Writer, cfg.Writer)
	assert.Equal(t, Default().Logging, cfg.Logging)
	assert.Empty(t, cfg.Reader.IgnoreColumns)
	assert.Equal(t, "w", cfg.Writer.Mode)
	assert.Equal(t, "zstd", cfg.Writer.Filters.Complib)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
writer:
  mode: a
  root_uep: /sim
  add_prefix: true
  chunk_rows: 64
  filters:
    complib: lz4
    complevel: 3
    shuffle: true
reader:
  type_prefixes: true
  ignore_columns: [obs_id, event_id]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Encoding)
	assert.Equal(t, Writer{
		Mode:      "a",
		RootUEP:   "/sim",
		AddPrefix: true,
		ChunkRows: 64,
		Filters:   Filters{Complib: "lz4", Complevel: 3, Shuffle: true, Fletcher32: true},
	}, cfg.Writer)
	assert.Equal(t, Reader{TypePrefixes: true, IgnoreColumns: []string{"obs_id", "event_id"}}, cfg.Reader)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "writer:\n  mode: a\n")
	t.Setenv("H5TABLE_WRITER_MODE", "r+")
	t.Setenv("H5TABLE_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "r+", cfg.Writer.Mode)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, `
writer:
  mode: x
  root_uep: relative
  filters:
    complib: snappy
`)
	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "writer.mode")
	assert.Contains(t, err.Error(), "snappy")
	assert.Contains(t, err.Error(), "root_uep")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWriterAndReaderOptions(t *testing.T) {
	cfg := Default()
	cfg.Writer.RootUEP = "/sim"
	cfg.Writer.ChunkRows = 2
	cfg.Writer.Filters = Filters{Complib: "deflate", Complevel: 4, Shuffle: true}
	cfg.Reader.IgnoreColumns = []string{"b"}

	opts, err := cfg.Writer.Options(nil, nil)
	require.NoError(t, err)

	typ := container.MustType("T", "", container.Field{Name: "a", Default: 1.5}, container.Field{Name: "b", Default: int16(3)})
	path := filepath.Join(t.TempDir(), "out.h5t")
	w, err := tableio.NewWriter(path, "dl1", opts...)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write("tab", typ.New()))
	}
	require.NoError(t, w.Close())

	r, err := tableio.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	tbl, err := r.File().Table("/sim/dl1/tab")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.ChunkRows())
	assert.Equal(t, tablefile.Filters{Complib: "deflate", Complevel: 4, Shuffle: true}, tbl.Filters())

	n := 0
	for c, err := range r.ReadOne("/sim/dl1/tab", typ, cfg.Reader.ReadOptions()...) {
		require.NoError(t, err)
		b, _ := c.Get("b")
		assert.Equal(t, int16(3), b)
		n++
	}
	assert.Equal(t, 3, n)

	bad := cfg.Writer
	bad.Mode = "r"
	opts, err = bad.Options(nil, nil)
	require.NoError(t, err)
	_, err = tableio.NewWriter(filepath.Join(t.TempDir(), "ro.h5t"), "dl1", opts...)
	assert.ErrorIs(t, err, tableio.ErrConfiguration)

	bad.Mode = "nope"
	_, err = bad.Options(nil, nil)
	assert.ErrorIs(t, err, ErrInvalid)
}
