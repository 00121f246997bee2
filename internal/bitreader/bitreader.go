// Package bitreader reads individual bits and unsigned Exp-Golomb codes,
// MSB-first, from an immutable byte slice. It backs AVC slice-header
// inspection in the video classifier.
package bitreader

import (
	"io"

	"github.com/icza/bitio"
)

// Reader reads bits MSB-first from a byte slice. Reading past the end of
// the slice yields zero bits rather than an error, matching the tolerant
// behavior slice-header probing needs (a truncated NAL unit should not
// abort muxing).
type Reader struct {
	r *bitio.Reader
}

// New returns a Reader over data.
func New(data []byte) *Reader {
	return &Reader{r: bitio.NewReader(&byteSliceReader{data})}
}

// GetBit reads a single bit, returning 0 once the underlying data is
// exhausted.
func (r *Reader) GetBit() uint32 {
	b, err := r.r.ReadBits(1)
	if err != nil {
		return 0
	}
	return uint32(b)
}

// UEBits decodes an unsigned Exp-Golomb value, capping the leading-zero
// prefix it is willing to read at maxPrefix bits.
//
// Algorithm: count leading zero bits via GetBit. If the count reaches
// maxPrefix before a 1 bit is seen, return 0 immediately; the cap
// silently truncates rather than erroring. If the count is 0, the value
// is 0. Otherwise read that many more bits, forming (1<<count)|suffix,
// and return value-1.
//
// A caller passing maxPrefix=1 only ever decodes ue(v) codes whose
// leading-zero count is 0; every code needing at least one leading
// zero bit is reported as 0.
func (r *Reader) UEBits(maxPrefix int) uint32 {
	leadingZeros := 0
	for r.GetBit() == 0 {
		leadingZeros++
		if leadingZeros >= maxPrefix {
			return 0
		}
	}

	if leadingZeros == 0 {
		return 0
	}

	value := uint32(1)
	for i := 0; i < leadingZeros; i++ {
		value = (value << 1) | r.GetBit()
	}

	return value - 1
}

// byteSliceReader adapts a byte slice to io.Reader without copying,
// returning io.EOF once exhausted so bitio.Reader's ReadBits reports an
// error past the end of data instead of panicking.
type byteSliceReader struct {
	data []byte
}

func (b *byteSliceReader) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}
