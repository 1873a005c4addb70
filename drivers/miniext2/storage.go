package miniext2

import (
	"io"
	"sync"

	"github.com/finn-oss/blockfs/errors"
)

// Storage presents the backing volume as a byte array of indefinite growth,
// per spec.md §4.1. It mediates every positioned read and write the engine
// performs against the host file; nothing else touches the stream directly.
//
// A single stream handle is shared between reads and writes that each seek
// before they act, so Storage guards it with a mutex — the idiomatic Go
// rendering of spec.md §9's "interior-mutability discipline": the original
// Rust implementation wraps the file in a RefCell to present read as
// non-mut despite the physical seek; here the mutex plays the same role
// under concurrent callers.
type Storage struct {
	mu     sync.Mutex
	stream io.ReadWriteSeeker
}

// NewStorage wraps stream as a Storage. stream is typically an *os.File
// opened for read+write, but any io.ReadWriteSeeker works, which is what
// lets tests back a Storage with an in-memory buffer.
func NewStorage(stream io.ReadWriteSeeker) *Storage {
	return &Storage{stream: stream}
}

// Read positions at offset and reads exactly size bytes. It fails with
// errors.ErrIO if fewer bytes are available — the region has never been
// written — per spec.md §4.1.
func (s *Storage) Read(offset int64, size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stream.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.ErrIO.Wrap(err)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(s.stream, buf); err != nil {
		return nil, errors.ErrIO.Wrap(err)
	}
	return buf, nil
}

// Write positions at offset and writes bytes, extending the underlying
// stream to cover holes past its current end if necessary (spec.md §4.1).
func (s *Storage) Write(offset int64, data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stream.Seek(offset, io.SeekStart); err != nil {
		return 0, errors.ErrIO.Wrap(err)
	}

	n, err := s.stream.Write(data)
	if err != nil {
		return n, errors.ErrIO.Wrap(err)
	}
	return n, nil
}
