package sink

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lcx/logrelay/record"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// FileSink appends encoded records to a log file, rotating it once the
// file grows past a configured size. Rotated files are renamed in place
// with a timestamp suffix, so the configured path always points at the
// live file.
type FileSink struct {
	name    string
	path    string
	splitMB int

	lock       sync.Mutex
	fd         *os.File
	buf        bytes.Buffer
	createTime time.Time
}

// NewFileSink creates a file sink. splitMB <= 0 disables size rotation.
// The file is opened lazily on first delivery so a misconfigured path
// fails the delivery attempt instead of the whole bootstrap.
func NewFileSink(name, path string, splitMB int) (*FileSink, error) {
	if len(path) == 0 {
		return nil, errors.New("file sink: path is empty")
	}
	return &FileSink{name: name, path: path, splitMB: splitMB}, nil
}

// Name implements Sink.
func (s *FileSink) Name() string {
	return s.name
}

// Deliver encodes the record and appends it to the current file,
// rotating first when the size threshold has been crossed.
func (s *FileSink) Deliver(rec *record.Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.rotateIfNeeded(); err != nil {
		return err
	}

	s.buf.Reset()
	rec.Encode(&s.buf)
	_, err := s.fd.Write(s.buf.Bytes())
	return err
}

// Close flushes and closes the current file descriptor.
func (s *FileSink) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fd == nil {
		return nil
	}
	err := s.fd.Close()
	s.fd = nil
	return err
}

// rotateIfNeeded opens the file on first use and rotates it when the
// size threshold is exceeded. The caller must hold s.lock.
func (s *FileSink) rotateIfNeeded() error {
	if s.fd != nil {
		fi, err := os.Stat(s.path)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat file: %w", err)
			}
			// Rotated away externally, reopen below.
		} else if s.splitMB <= 0 || fi.Size() < int64(s.splitMB)<<20 {
			return nil
		} else if err := s.moveAside(); err != nil {
			return err
		}
		s.fd.Close()
		s.fd = nil
	}

	return s.open()
}

// open creates parent directories and opens the live file in append mode.
func (s *FileSink) open() error {
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, defaultDirMode); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	fd, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}

	s.fd = fd
	s.createTime = time.Now()
	return nil
}

// moveAside renames the live file to a timestamped backup name. When the
// candidate name already exists the timestamp is bumped by one second, up
// to a handful of attempts.
func (s *FileSink) moveAside() error {
	ext := filepath.Ext(s.path)
	base := strings.TrimSuffix(s.path, ext)
	now := time.Now()

	for i := 0; i < 5; i++ {
		ts := now.Add(time.Duration(i) * time.Second)
		backup := fmt.Sprintf("%s%s.%04d%02d%02d-%02d%02d%02d",
			base, ext,
			ts.Year(), ts.Month(), ts.Day(),
			ts.Hour(), ts.Minute(), ts.Second(),
		)
		if _, err := os.Stat(backup); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat backup: %w", err)
			}
			if err := os.Rename(s.path, backup); err != nil {
				return fmt.Errorf("rename file: %w", err)
			}
			return nil
		}
	}

	return errors.New("cannot generate unique backup filename")
}
