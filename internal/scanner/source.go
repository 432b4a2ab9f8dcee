package scanner

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// Source yields decoded code payloads. Implementations wrap whatever
// produces decoded text — a QR decoder piping lines, or an operator
// typing codes by hand. Next blocks until a payload is available, the
// source is exhausted (io.EOF) or the context is cancelled. Close
// releases the underlying device or stream; after Close, Next returns
// io.EOF once the buffered payloads drain.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// LineSource adapts a line-oriented reader into a Source. Each
// non-empty line, trimmed of surrounding whitespace, is one decoded
// payload. A background goroutine owns the read so Next stays
// cancellable even while the reader blocks.
type LineSource struct {
	lines    chan string
	done     chan struct{}
	stopOnce sync.Once
	closer   io.Closer
}

// NewLineSource starts reading r and returns the source. When r also
// implements io.Closer (a file, a pipe from a decoder process), Close
// will close it; otherwise Close only stops the source.
func NewLineSource(r io.Reader) *LineSource {
	s := &LineSource{
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	go s.pump(r)
	return s
}

func (s *LineSource) pump(r io.Reader) {
	defer close(s.lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		case <-s.done:
			return
		}
	}
}

// Next returns the next decoded payload. io.EOF signals that the
// reader is exhausted or the source was closed.
func (s *LineSource) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

// Close stops the pump and closes the underlying reader when it is
// closable. Safe to call more than once.
func (s *LineSource) Close() error {
	s.stopOnce.Do(func() { close(s.done) })
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
