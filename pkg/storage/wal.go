package storage

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// WAL journals accepted orders, one serialized record per line. It is
// an append-only safety net for the gap between a matching pass and
// the snapshot write that follows it.
type WAL interface {
	Append(record []byte) error
	Close() error
}

type NopWAL struct{}

func NewNopWAL() *NopWAL                { return &NopWAL{} }
func (w *NopWAL) Append(_ []byte) error { return nil }
func (w *NopWAL) Close() error          { return nil }

type FileWAL struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileWAL(path string) (*FileWAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	return &FileWAL{f: f}, nil
}

func (w *FileWAL) Append(record []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(record); err != nil {
		return err
	}
	_, err := w.f.Write([]byte{'\n'})
	return err
}

func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// ReplayWAL feeds every journaled record to fn in append order. A
// record that fn rejects is skipped, not fatal: recovery should get as
// far as the journal allows.
func ReplayWAL(path string, fn func(record []byte) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			continue
		}
		n++
	}
	return n, sc.Err()
}

var _ WAL = (*NopWAL)(nil)
var _ WAL = (*FileWAL)(nil)
