package dump

import (
	"io"
	"sync"
)

const (
	defaultChunkSize  = 4 * 1024 * 1024
	defaultQueueDepth = 2
)

// chunk is one read-ahead unit. err is delivered after the final data
// chunk and is io.EOF on a clean end of file.
type chunk struct {
	data []byte
	err  error
}

// readAhead reads the source in fixed-size chunks from a background
// goroutine, buffering up to queueDepth chunks so decode work overlaps
// disk I/O.
type readAhead struct {
	ch        chan chunk
	current   []byte
	err       error
	closeOnce sync.Once
	done      chan struct{}
	src       io.Closer
}

func newReadAhead(src io.ReadCloser, chunkSize, queueDepth int) *readAhead {
	ra := &readAhead{
		ch:   make(chan chunk, queueDepth),
		done: make(chan struct{}),
		src:  src,
	}
	go ra.fill(src, chunkSize)
	return ra
}

func (ra *readAhead) fill(src io.Reader, chunkSize int) {
	defer close(ra.ch)
	for {
		buf := make([]byte, chunkSize)
		n, err := src.Read(buf)
		if n > 0 {
			select {
			case ra.ch <- chunk{data: buf[:n]}:
			case <-ra.done:
				return
			}
		}
		if err != nil {
			select {
			case ra.ch <- chunk{err: err}:
			case <-ra.done:
			}
			return
		}
	}
}

func (ra *readAhead) Read(p []byte) (int, error) {
	for len(ra.current) == 0 {
		if ra.err != nil {
			return 0, ra.err
		}
		c, ok := <-ra.ch
		if !ok {
			return 0, io.EOF
		}
		ra.current = c.data
		if c.err != nil {
			ra.err = c.err
		}
	}
	n := copy(p, ra.current)
	ra.current = ra.current[n:]
	return n, nil
}

// Close stops the background goroutine and closes the source.
func (ra *readAhead) Close() error {
	var err error
	ra.closeOnce.Do(func() {
		close(ra.done)
		err = ra.src.Close()
		// Drain so the goroutine observes done or channel close.
		for range ra.ch {
		}
	})
	return err
}
