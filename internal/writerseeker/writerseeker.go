// Package writerseeker provides an in-memory io.WriteSeeker, the kind of
// sink Muxer's non-fragmented mode requires for its mdat size backpatch
// and final moov write.
package writerseeker

import (
	"bytes"
	"errors"
	"io"
)

// WriterSeeker is an in-memory io.WriteSeeker implementation.
type WriterSeeker struct {
	buf bytes.Buffer
	pos int
}

// Write writes to the buffer of this WriterSeeker instance.
func (ws *WriterSeeker) Write(p []byte) (n int, err error) {
	if extra := ws.pos - ws.buf.Len(); extra > 0 {
		if _, err := ws.buf.Write(make([]byte, extra)); err != nil {
			return n, err
		}
	}

	if ws.pos < ws.buf.Len() {
		n = copy(ws.buf.Bytes()[ws.pos:], p)
		p = p[n:]
	}

	if len(p) > 0 {
		var bn int
		bn, err = ws.buf.Write(p)
		n += bn
	}

	ws.pos += n
	return n, err
}

// ErrNegativeResultPos is returned when a Seek would land before the
// start of the buffer.
var ErrNegativeResultPos = errors.New("writerseeker: negative result pos")

// Seek seeks in the buffer of this WriterSeeker instance.
func (ws *WriterSeeker) Seek(offset int64, whence int) (int64, error) {
	newPos, offs := 0, int(offset)
	switch whence {
	case io.SeekStart:
		newPos = offs
	case io.SeekCurrent:
		newPos = ws.pos + offs
	case io.SeekEnd:
		newPos = ws.buf.Len() + offs
	}
	if newPos < 0 {
		return 0, ErrNegativeResultPos
	}
	ws.pos = newPos
	return int64(newPos), nil
}

// Bytes returns the underlying byte slice.
func (ws *WriterSeeker) Bytes() []byte {
	return ws.buf.Bytes()
}
