package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in      string
		want    Destination
		wantErr bool
	}{
		{in: "", want: Destination{Key: "-"}},
		{in: "-", want: Destination{Key: "-"}},
		{in: "out/result.arrows", want: Destination{Scheme: "file", Key: "out/result.arrows"}},
		{in: "file:///tmp/r.arrows", want: Destination{Scheme: "file", Key: "/tmp/r.arrows"}},
		{in: "s3://exports/daily/people.arrows", want: Destination{Scheme: "s3", Bucket: "exports", Key: "daily/people.arrows"}},
		{in: "s3://exports", wantErr: true},
		{in: "s3:///key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDestination(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	d, _ := ParseDestination("-")
	require.True(t, d.Stdout())
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(t.TempDir(), log.NewNopLogger())

	w, done := p.StreamToFile(ctx, "nested/dir/result.arrows")
	_, err := w.Write([]byte("ARROW1"))
	require.NoError(t, err)
	require.NoError(t, Wait(w, done))

	r, err := p.OpenFile(ctx, "nested/dir/result.arrows")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "ARROW1", string(data))

	require.Contains(t, p.Location("nested/dir/result.arrows"), "file://")
}

func TestLocalProviderAbsoluteKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abs.arrows")
	p := NewLocalProvider("ignored", log.NewNopLogger())

	w, done := p.StreamToFile(context.Background(), path)
	require.NoError(t, Wait(w, done))
	require.Equal(t, "file://"+path, p.Location(path))
}

func TestLocalProviderCreateFailure(t *testing.T) {
	dir := t.TempDir()
	p := NewLocalProvider(dir, log.NewNopLogger())

	// The key names an existing directory.
	w, done := p.StreamToFile(context.Background(), ".")
	require.Error(t, Failed(done))
	require.NoError(t, w.Close())
}

func TestLocalProviderAbort(t *testing.T) {
	dir := t.TempDir()
	p := NewLocalProvider(dir, log.NewNopLogger())
	cause := errors.New("SQL execution failed: [42S02] (-204) Table unknown")

	w, done := p.StreamToFile(context.Background(), "result.arrows")
	require.NoError(t, Failed(done))
	_, err := w.Write([]byte("partial stream"))
	require.NoError(t, err)

	Abort(w, cause)
	require.Equal(t, cause, <-done)

	_, err = os.Stat(filepath.Join(dir, "result.arrows"))
	require.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temporary file left behind")
}

func TestLocalProviderAbortKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.arrows")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	p := NewLocalProvider(dir, log.NewNopLogger())
	w, done := p.StreamToFile(context.Background(), "result.arrows")
	_, err := w.Write([]byte("partial"))
	require.NoError(t, err)

	// Not visible before Close.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "previous", string(data))

	Abort(w, errors.New("boom"))
	<-done

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "previous", string(data))
}

func TestNewS3ClientNeedsCredentials(t *testing.T) {
	_, err := NewS3Client(S3Config{Region: "eu-west-1"})
	require.Error(t, err)

	c, err := NewS3Client(S3Config{AccessKeyID: "id", SecretAccessKey: "secret", Endpoint: "http://localhost:9000", PathStyle: true})
	require.NoError(t, err)
	require.NotNil(t, c)

	p := NewS3Provider(c, "exports", log.NewNopLogger())
	require.Equal(t, "s3://exports/a/b.arrows", p.Location("a/b.arrows"))
}
