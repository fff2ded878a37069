package finalizer

import (
	"io"

	"golang.org/x/xerrors"
)

// Finalizer guarantees that the underlying closers are closed exactly once.
// The intended usage is to call Finalize in a defer statement and
// then call Close explicitly on the happy path to surface the error:
//
//	finalizer := finalizer.WithCloser(response.Body)
//	defer finalizer.Finalize()
//	...
//	return finalizer.Close()
type Finalizer struct {
	closers []io.Closer
	closed  bool
}

func WithCloser(closers ...io.Closer) *Finalizer {
	return &Finalizer{
		closers: closers,
	}
}

func (f *Finalizer) Close() error {
	if f.closed {
		return nil
	}

	f.closed = true
	for _, closer := range f.closers {
		if err := closer.Close(); err != nil {
			return xerrors.Errorf("failed to finalize closer: %w", err)
		}
	}

	return nil
}

// Finalize closes the underlying closers, ignoring any error.
func (f *Finalizer) Finalize() {
	_ = f.Close()
}
