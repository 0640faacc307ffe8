package sink

import (
	"bytes"
	"io"
	"os"

	"github.com/lcx/logrelay/record"
)

// ConsoleSink writes encoded records to an io.Writer, by default stdout.
// It keeps no internal state beyond a reusable encode buffer and is the
// natural last entry of a chain: stdout rarely fails, so it acts as the
// catch-all once file or network destinations have rolled over.
type ConsoleSink struct {
	name string
	out  io.Writer
	buf  bytes.Buffer
}

// NewConsoleSink creates a console sink writing to stdout.
func NewConsoleSink(name string) *ConsoleSink {
	return NewConsoleSinkTo(name, os.Stdout)
}

// NewConsoleSinkTo creates a console sink writing to the given writer.
func NewConsoleSinkTo(name string, out io.Writer) *ConsoleSink {
	return &ConsoleSink{name: name, out: out}
}

// Name implements Sink.
func (s *ConsoleSink) Name() string {
	return s.name
}

// Deliver encodes the record and writes it as one line.
func (s *ConsoleSink) Deliver(rec *record.Record) error {
	s.buf.Reset()
	rec.Encode(&s.buf)
	_, err := s.out.Write(s.buf.Bytes())
	return err
}

// Close is a no-op; the sink does not own the writer.
func (s *ConsoleSink) Close() error {
	return nil
}
