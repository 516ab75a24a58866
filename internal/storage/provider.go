// Package storage provides the destinations the odbcarrow command streams
// Arrow IPC output to.
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Provider streams an output object to a storage destination. Writers
// returned by StreamToFile that support CloseWithError discard the object
// when aborted.
type Provider interface {
	// StreamToFile returns a WriteCloser. Data written to it is streamed to
	// the destination under key. The returned channel receives a single
	// error (or nil) once the object is fully stored.
	StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error)

	// OpenFile opens a stored object for reading.
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)

	// Location returns a printable URL for the stored object.
	Location(key string) string
}

// Destination is a parsed --out value.
type Destination struct {
	Scheme string // "", "file" or "s3"
	Bucket string
	Key    string
}

// Stdout reports whether the destination is standard output.
func (d Destination) Stdout() bool {
	return d.Scheme == "" && (d.Key == "" || d.Key == "-")
}

// ParseDestination parses "-", a local path, file://path or s3://bucket/key.
func ParseDestination(out string) (Destination, error) {
	switch {
	case out == "" || out == "-":
		return Destination{Key: "-"}, nil
	case strings.HasPrefix(out, "s3://"):
		rest := strings.TrimPrefix(out, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Destination{}, errors.Errorf("invalid s3 destination %q, want s3://bucket/key", out)
		}
		return Destination{Scheme: "s3", Bucket: bucket, Key: key}, nil
	case strings.HasPrefix(out, "file://"):
		return Destination{Scheme: "file", Key: strings.TrimPrefix(out, "file://")}, nil
	default:
		return Destination{Scheme: "file", Key: out}, nil
	}
}

// Abort fails an in-flight write so the provider does not store a truncated
// object. Writers without an abort path are closed.
func Abort(w io.WriteCloser, cause error) {
	if a, ok := w.(interface{ CloseWithError(error) error }); ok {
		_ = a.CloseWithError(cause)
		return
	}
	_ = w.Close()
}

// Failed reports an error the provider raised before anything was written,
// without blocking.
func Failed(done <-chan error) error {
	select {
	case err := <-done:
		return err
	default:
		return nil
	}
}

// Wait closes w and then blocks until the provider reports the outcome of
// the upload.
func Wait(w io.WriteCloser, done <-chan error) error {
	closeErr := w.Close()
	if err := <-done; err != nil {
		return err
	}
	return closeErr
}
