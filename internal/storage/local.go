package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// LocalProvider writes objects under a base directory.
type LocalProvider struct {
	basePath string
	logger   log.Logger
}

func NewLocalProvider(basePath string, logger log.Logger) *LocalProvider {
	return &LocalProvider{
		basePath: basePath,
		logger:   logger,
	}
}

func (p *LocalProvider) path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(p.basePath, key)
}

// StreamToFile writes to a temporary file next to the destination. Close
// renames it into place; CloseWithError removes it, so an aborted stream
// never appears under key.
func (p *LocalProvider) StreamToFile(_ context.Context, key string) (io.WriteCloser, <-chan error) {
	errChan := make(chan error, 1)

	fullPath := p.path(key)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		errChan <- errors.Wrapf(err, "create directory %s", dir)
		close(errChan)
		return nopWriteCloser{}, errChan
	}
	if fi, err := os.Stat(fullPath); err == nil && fi.IsDir() {
		errChan <- errors.Errorf("create file %s: is a directory", fullPath)
		close(errChan)
		return nopWriteCloser{}, errChan
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		errChan <- errors.Wrapf(err, "create file %s", fullPath)
		close(errChan)
		return nopWriteCloser{}, errChan
	}

	return &localWriter{
		f:       f,
		errChan: errChan,
		path:    fullPath,
		logger:  p.logger,
	}, errChan
}

func (p *LocalProvider) OpenFile(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(p.path(key))
}

func (p *LocalProvider) Location(key string) string {
	abs, err := filepath.Abs(p.path(key))
	if err != nil {
		abs = p.path(key)
	}
	return fmt.Sprintf("file://%s", abs)
}

type localWriter struct {
	f       *os.File
	errChan chan error
	path    string
	logger  log.Logger
	closed  bool
}

func (w *localWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Close moves the written file into place.
func (w *localWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.f.Close()
	if err == nil {
		err = os.Rename(w.f.Name(), w.path)
	}
	if err != nil {
		_ = os.Remove(w.f.Name())
		err = errors.Wrapf(err, "write %s", w.path)
	} else {
		level.Debug(w.logger).Log("msg", "local file write completed", "path", w.path)
	}
	w.errChan <- err
	close(w.errChan)
	return err
}

// CloseWithError discards everything written and reports cause as the
// outcome of the write.
func (w *localWriter) CloseWithError(cause error) error {
	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.f.Close()
	_ = os.Remove(w.f.Name())
	level.Debug(w.logger).Log("msg", "local file write aborted", "path", w.path, "err", cause)
	w.errChan <- cause
	close(w.errChan)
	return nil
}

// nopWriteCloser is returned alongside an already failed error channel.
type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
