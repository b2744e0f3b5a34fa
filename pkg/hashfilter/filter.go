// Package hashfilter implements a durable set of 128-bit path keys.
//
// The backing file is an append-only log of 16-byte little-endian records with
// no header. Saves truncate any torn trailing record before appending, so a
// crash mid-write can only lose the record being written.
package hashfilter

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dchest/siphash"
)

// RecordSize is the on-disk size of a single key.
const RecordSize = 16

// Fixed SipHash keys. Changing them invalidates every existing backing file.
const (
	sipKey0 = 0x636f6d7061637469
	sipKey1 = 0x6e6b6e6f776e2121
)

const (
	filePerm = 0o644
	dirPerm  = 0o750
)

// Key is a 128-bit SipHash of an item.
type Key struct {
	Lo uint64
	Hi uint64
}

// KeyFor derives the key for item.
func KeyFor(item string) Key {
	lo, hi := siphash.Hash128(sipKey0, sipKey1, []byte(item))

	return Key{Lo: lo, Hi: hi}
}

func (k Key) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, k.Lo)

	return binary.LittleEndian.AppendUint64(buf, k.Hi)
}

func keyFromRecord(rec []byte) Key {
	return Key{
		Lo: binary.LittleEndian.Uint64(rec[:8]),
		Hi: binary.LittleEndian.Uint64(rec[8:RecordSize]),
	}
}

// Filter is an in-memory key set with an optional backing file.
// All methods are safe for concurrent use.
type Filter struct {
	mu         sync.RWMutex
	path       string
	lastOffset int64
	keys       map[Key]struct{}
	pending    []Key
}

// New returns an empty filter with no backing file.
func New() *Filter {
	return &Filter{keys: make(map[Key]struct{})}
}

// Open returns a filter bound to path with its current contents loaded.
func Open(path string) (*Filter, error) {
	f := New()
	f.SetBacking(path)

	err := f.Load()
	if err != nil {
		return f, err
	}

	return f, nil
}

// SetBacking binds the filter to path. The next Load reads the file from the start.
func (f *Filter) SetBacking(path string) {
	f.mu.Lock()
	f.path = path
	f.lastOffset = 0
	f.mu.Unlock()
}

// Path returns the backing file path, or "" when unbound.
func (f *Filter) Path() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.path
}

// Contains reports whether item was inserted or loaded. It never touches disk.
func (f *Filter) Contains(item string) bool {
	return f.ContainsKey(KeyFor(item))
}

// ContainsKey is Contains for a precomputed key.
func (f *Filter) ContainsKey(k Key) bool {
	f.mu.RLock()
	_, ok := f.keys[k]
	f.mu.RUnlock()

	return ok
}

// Insert adds item and reports whether it was new. New keys are queued for the next Save.
func (f *Filter) Insert(item string) bool {
	return f.InsertKey(KeyFor(item))
}

// InsertKey is Insert for a precomputed key.
func (f *Filter) InsertKey(k Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.keys[k]; ok {
		return false
	}

	f.keys[k] = struct{}{}
	f.pending = append(f.pending, k)

	return true
}

// Len returns the number of keys held in memory.
func (f *Filter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.keys)
}

// Pending returns the number of keys not yet saved.
func (f *Filter) Pending() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.pending)
}

// Load reads records appended since the last Load or Save.
// A missing file is not an error. A torn trailing record ends the load.
func (f *Filter) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path == "" {
		return nil
	}

	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("open key file: %w", err)
	}
	defer file.Close()

	lockErr := lockShared(file)
	if lockErr != nil {
		return fmt.Errorf("lock key file: %w", lockErr)
	}
	defer unlock(file)

	return f.readFrom(file, f.lastOffset)
}

// readFrom inserts every whole record at or after offset. Caller holds f.mu and a file lock.
func (f *Filter) readFrom(file *os.File, offset int64) error {
	_, seekErr := file.Seek(offset, io.SeekStart)
	if seekErr != nil {
		return fmt.Errorf("seek key file: %w", seekErr)
	}

	reader := bufio.NewReader(file)
	rec := make([]byte, RecordSize)

	for {
		_, readErr := io.ReadFull(reader, rec)
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}

		if readErr != nil {
			return fmt.Errorf("read key file: %w", readErr)
		}

		f.keys[keyFromRecord(rec)] = struct{}{}
		offset += RecordSize
	}

	f.lastOffset = offset

	return nil
}

// Save appends pending keys to the backing file and fsyncs it.
// It is a no-op when unbound or when nothing is pending. Pending keys are kept on failure.
func (f *Filter) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path == "" || len(f.pending) == 0 {
		return nil
	}

	mkErr := os.MkdirAll(filepath.Dir(f.path), dirPerm)
	if mkErr != nil {
		return fmt.Errorf("create key dir: %w", mkErr)
	}

	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, filePerm)
	if err != nil {
		return fmt.Errorf("open key file: %w", err)
	}
	defer file.Close()

	lockErr := lockExclusive(file)
	if lockErr != nil {
		return fmt.Errorf("lock key file: %w", lockErr)
	}
	defer unlock(file)

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat key file: %w", err)
	}

	end := info.Size() - info.Size()%RecordSize
	if end != info.Size() {
		truncErr := file.Truncate(end)
		if truncErr != nil {
			return fmt.Errorf("truncate key file: %w", truncErr)
		}
	}

	// Pick up records other processes appended since our last read.
	start := f.lastOffset
	if start > end {
		start = 0
	}

	readErr := f.readFrom(file, start)
	if readErr != nil {
		return readErr
	}

	buf := make([]byte, 0, len(f.pending)*RecordSize)
	for _, k := range f.pending {
		buf = k.appendTo(buf)
	}

	_, writeErr := file.WriteAt(buf, end)
	if writeErr != nil {
		return fmt.Errorf("append key file: %w", writeErr)
	}

	syncErr := file.Sync()
	if syncErr != nil {
		return fmt.Errorf("sync key file: %w", syncErr)
	}

	f.lastOffset = end + int64(len(buf))
	f.pending = f.pending[:0]

	return nil
}
