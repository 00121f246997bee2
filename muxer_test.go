package mp4mux

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"mp4mux/internal/writerseeker"
)

// rawBox is one parsed box at a single nesting level: its 4-character
// type and its body (header stripped). For container boxes the body is
// itself a sequence of child boxes and can be re-parsed with parseBoxes.
type rawBox struct {
	Type string
	Body []byte
}

// parseBoxes walks a flat sequence of size+type+body boxes, honoring the
// 64-bit largesize form (size field == 1, real size follows as u64).
func parseBoxes(t *testing.T, data []byte) []rawBox {
	t.Helper()
	var out []rawBox
	pos := 0
	for pos < len(data) {
		require.GreaterOrEqual(t, len(data)-pos, 8, "truncated box header")
		size := uint64(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		headerLen := 8
		if size == 1 {
			require.GreaterOrEqual(t, len(data)-pos, 16, "truncated largesize box header")
			size = binary.BigEndian.Uint64(data[pos+8 : pos+16])
			headerLen = 16
		}
		require.GreaterOrEqual(t, uint64(len(data)-pos), size, "box overruns buffer")
		out = append(out, rawBox{Type: typ, Body: data[pos+headerLen : pos+int(size)]})
		pos += int(size)
	}
	return out
}

func findBox(boxes []rawBox, typ string) *rawBox {
	for i := range boxes {
		if boxes[i].Type == typ {
			return &boxes[i]
		}
	}
	return nil
}

// descend walks a path of nested container box types, re-parsing each
// container's body as its own box sequence. The final box's body is
// left unparsed, since it may be a leaf (table) box rather than a
// container.
func descend(t *testing.T, data []byte, path ...string) *rawBox {
	t.Helper()
	boxes := parseBoxes(t, data)
	var b *rawBox
	for i, typ := range path {
		b = findBox(boxes, typ)
		require.NotNilf(t, b, "box %q not found", typ)
		if i < len(path)-1 {
			boxes = parseBoxes(t, b.Body)
		}
	}
	return b
}

func sps() []byte  { return []byte{0x67, 0x42, 0xc0, 0x0d, 0x01, 0x02, 0x03} }
func pps() []byte  { return []byte{0x68, 0xce, 0x3c, 0x80} }
func idrNAL() []byte {
	// nal_unit_type=5 (IDR), first_mb_in_slice ue(v)=0 -> leading bit 1.
	return []byte{0x65, 0x80, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
}

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func TestNonFragmentedAVCSingleIDR(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := New(&sink)
	require.NoError(t, m.SetVideoTrack(1920, 1080, CodecAVC))
	require.NoError(t, m.EncodeVideo(annexB(sps(), pps(), idrNAL()), 33))
	require.NoError(t, m.Flush())

	out := sink.Bytes()
	top := parseBoxes(t, out)
	require.Len(t, top, 3)
	require.Equal(t, "ftyp", top[0].Type)
	require.Equal(t, 32, len(top[0].Body)+8)
	require.Equal(t, "mdat", top[1].Type)
	require.Equal(t, "moov", top[2].Type)

	nalLen := len(idrNAL())
	wantMdatBody := 4 + nalLen // u32 length prefix + payload
	require.Equal(t, wantMdatBody, len(top[1].Body))

	stss := descend(t, out, "moov", "trak", "mdia", "minf", "stbl", "stss")
	require.Equal(t, []uint32{1}, parseU32List(t, stss.Body, 8))

	stts := descend(t, out, "moov", "trak", "mdia", "minf", "stbl", "stts")
	entries := parseU32List(t, stts.Body, 8)
	require.Equal(t, []uint32{1, 2970}, entries) // one run: count=1, delta=2970

	tkhd := descend(t, out, "moov", "trak")
	tkhdBox := findBox(parseBoxes(t, tkhd.Body), "tkhd")
	require.NotNil(t, tkhdBox)
	// version 0 tkhd: flags+creation+modification+track_id+reserved then duration at offset 20
	require.Equal(t, uint32(33), binary.BigEndian.Uint32(tkhdBox.Body[20:24]))
}

func TestNonFragmentedAVCContinuationFoldsIntoPriorSample(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := New(&sink)
	require.NoError(t, m.SetVideoTrack(1920, 1080, CodecAVC))

	nonIDR := []byte{0x41, 0x80, 0xaa, 0xbb, 0xcc, 0xdd} // first_mb_in_slice=0
	// ue(v) codeNum 5 -> bits 00110: first_mb_in_slice=5, continuation.
	continuation := []byte{0x41, 0x30, 0xee, 0xff}

	data := annexB(sps(), pps(), idrNAL(), nonIDR, continuation)
	require.NoError(t, m.EncodeVideo(data, 33))
	require.NoError(t, m.Flush())

	require.Len(t, m.videoTrack.Samples, 2)
	second := m.videoTrack.Samples[1]
	require.Equal(t, uint32(len(nonIDR)+4+len(continuation)+4), second.Size)
	require.False(t, second.RandomAccess)
}

func hevcNAL(nalType uint8, rest ...byte) []byte {
	b0 := nalType << 1
	return append([]byte{b0, 0x01}, rest...)
}

func TestNonFragmentedHEVCParameterSetsAndCRA(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := New(&sink)
	require.NoError(t, m.SetVideoTrack(1280, 720, CodecHEVC))

	vps := hevcNAL(32, 0x01, 0x02)
	hsps := hevcNAL(33, 0x03, 0x04)
	hpps := hevcNAL(34, 0x05)
	cra := hevcNAL(21, 0xaa, 0xbb, 0xcc)

	require.NoError(t, m.EncodeVideo(annexB(vps, hsps, hpps, cra), 40))
	require.NoError(t, m.Flush())

	require.Equal(t, vps, m.videoTrack.VPS)
	require.Equal(t, hsps, m.videoTrack.SPS)
	require.Equal(t, hpps, m.videoTrack.PPS)
	require.Len(t, m.videoTrack.Samples, 1)
	require.True(t, m.videoTrack.Samples[0].RandomAccess)

	out := sink.Bytes()
	stss := descend(t, out, "moov", "trak", "mdia", "minf", "stbl", "stss")
	require.Equal(t, []uint32{1}, parseU32List(t, stss.Body, 8))

	hvcC := descend(t, out, "moov", "trak", "mdia", "minf", "stbl", "stsd")
	entries := parseBoxes(t, hvcC.Body[8:]) // skip FullBox + entry_count
	hvc1 := findBox(entries, "hvc1")
	require.NotNil(t, hvc1)
}

func TestDropBeforeFirstKeyframe(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := New(&sink)
	require.NoError(t, m.SetVideoTrack(640, 480, CodecAVC))
	require.NoError(t, m.SetAudioTrack(48000, 2, CodecAACLC))

	nonIDR := []byte{0x41, 0x80}
	require.NoError(t, m.EncodeAudio([]byte{1, 2, 3}, 1024))
	require.NoError(t, m.EncodeVideo(annexB(sps(), pps(), nonIDR), 33))
	require.Empty(t, m.audioTrack.Samples)
	require.Empty(t, m.videoTrack.Samples)

	require.NoError(t, m.EncodeVideo(annexB(idrNAL()), 33))
	require.Len(t, m.videoTrack.Samples, 1)
	require.True(t, m.videoTrack.Samples[0].RandomAccess)

	require.NoError(t, m.EncodeAudio([]byte{4, 5, 6}, 1024))
	require.Len(t, m.audioTrack.Samples, 1)
	require.NoError(t, m.Flush())
}

func TestFragmentedSequenceNumbersAndDataOffset(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := NewWithFragment(&sink)
	require.NoError(t, m.SetVideoTrack(640, 480, CodecAVC))
	require.NoError(t, m.SetAudioTrack(48000, 2, CodecAACLC))

	require.NoError(t, m.EncodeVideo(annexB(sps(), pps(), idrNAL()), 33))
	require.NoError(t, m.EncodeAudio([]byte{1, 2, 3, 4}, 1024))
	require.NoError(t, m.EncodeVideo(annexB(idrNAL()), 33))

	out := sink.Bytes()
	top := parseBoxes(t, out)
	require.Equal(t, "ftyp", top[0].Type)
	require.Equal(t, "moov", top[1].Type)

	var seqs []uint32
	for i := 2; i < len(top); i += 2 {
		require.Equal(t, "moof", top[i].Type)
		require.Equal(t, "mdat", top[i+1].Type)
		moofBoxes := parseBoxes(t, top[i].Body)
		mf := findBox(moofBoxes, "mfhd")
		require.NotNil(t, mf)
		seqs = append(seqs, binary.BigEndian.Uint32(mf.Body[4:8]))

		traf := findBox(moofBoxes, "traf")
		require.NotNil(t, traf)
		trafBoxes := parseBoxes(t, traf.Body)
		trun := findBox(trafBoxes, "trun")
		require.NotNil(t, trun)
		dataOffset := int32(binary.BigEndian.Uint32(trun.Body[8:12]))
		require.Equal(t, int32(len(top[i].Body)+8+8), dataOffset)
	}
	require.Equal(t, []uint32{1, 2, 3}, seqs)
}

func TestEncodeVideoWithPTSProducesCtts(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := New(&sink)
	require.NoError(t, m.SetVideoTrack(1920, 1080, CodecAVC))

	nonIDR := []byte{0x41, 0x80, 0xaa}
	// First frame: pts equals accumulated duration, offset 0.
	require.NoError(t, m.EncodeVideoWithPTS(annexB(sps(), pps(), idrNAL()), 33, 33))
	// Second frame presented late: pts 100ms against 66ms of decode time.
	require.NoError(t, m.EncodeVideoWithPTS(annexB(nonIDR), 33, 100))
	require.NoError(t, m.Flush())

	require.Len(t, m.videoTrack.Samples, 2)
	require.Equal(t, int32(0), m.videoTrack.Samples[0].CTOffset)
	require.Equal(t, int32(100*90000/1000-2*2970), m.videoTrack.Samples[1].CTOffset)

	ctts := descend(t, sink.Bytes(), "moov", "trak", "mdia", "minf", "stbl", "ctts")
	require.Equal(t, uint8(1), ctts.Body[0]) // version 1, signed offsets
	entries := parseU32List(t, ctts.Body, 8)
	require.Equal(t, []uint32{1, 0, 1, uint32(3060)}, entries)
}

func TestCttsOmittedWhenAllOffsetsZero(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := New(&sink)
	require.NoError(t, m.SetVideoTrack(1920, 1080, CodecAVC))
	require.NoError(t, m.EncodeVideo(annexB(sps(), pps(), idrNAL()), 33))
	require.NoError(t, m.Flush())

	stbl := descend(t, sink.Bytes(), "moov", "trak", "mdia", "minf", "stbl")
	require.Nil(t, findBox(parseBoxes(t, stbl.Body), "ctts"))
}

// trakForHandler returns the trak box whose mdia/hdlr carries the given
// handler type, distinguishing the video and audio tracks of a two-track
// movie.
func trakForHandler(t *testing.T, data []byte, handler string) *rawBox {
	t.Helper()
	moov := findBox(parseBoxes(t, data), "moov")
	require.NotNil(t, moov)
	for _, b := range parseBoxes(t, moov.Body) {
		if b.Type != "trak" {
			continue
		}
		b := b
		mdia := findBox(parseBoxes(t, b.Body), "mdia")
		require.NotNil(t, mdia)
		hdlr := findBox(parseBoxes(t, mdia.Body), "hdlr")
		require.NotNil(t, hdlr)
		if string(hdlr.Body[8:12]) == handler {
			return &b
		}
	}
	t.Fatalf("no trak with handler %q", handler)
	return nil
}

func TestAACSampleEntryInMuxedOutput(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := New(&sink)
	require.NoError(t, m.SetVideoTrack(640, 480, CodecAVC))
	require.NoError(t, m.SetAudioTrack(48000, 2, CodecAACLC))
	require.NoError(t, m.EncodeVideo(annexB(sps(), pps(), idrNAL()), 33))
	require.NoError(t, m.EncodeAudio([]byte{1, 2, 3, 4}, 1024))
	require.NoError(t, m.Flush())

	trak := trakForHandler(t, sink.Bytes(), "soun")
	stsd := descend(t, trak.Body, "mdia", "minf", "stbl", "stsd")
	mp4a := findBox(parseBoxes(t, stsd.Body[8:]), "mp4a")
	require.NotNil(t, mp4a)
	require.Equal(t, uint16(2), uint16(mp4a.Body[17])) // channelcount low byte
	require.Equal(t, uint32(48000)<<16, binary.BigEndian.Uint32(mp4a.Body[24:28]))

	esds := findBox(parseBoxes(t, mp4a.Body[28:]), "esds")
	require.NotNil(t, esds)
	// bufferSizeDB = 2*6144/8 = 1536; DSI for AAC-LC 48k stereo = 11 90.
	require.Contains(t, string(esds.Body), string([]byte{0x06, 0x00}))
	idx := bytes.Index(esds.Body, []byte{0x05, 0x02, 0x11, 0x90})
	require.GreaterOrEqual(t, idx, 0)
}

func TestOpusSampleEntryInMuxedOutput(t *testing.T) {
	var sink writerseeker.WriterSeeker
	m := New(&sink)
	require.NoError(t, m.SetVideoTrack(640, 480, CodecAVC))
	require.NoError(t, m.SetAudioTrack(48000, 2, CodecOpus))
	require.NoError(t, m.EncodeVideo(annexB(sps(), pps(), idrNAL()), 33))
	require.NoError(t, m.EncodeAudio([]byte{1, 2, 3, 4}, 960))
	require.NoError(t, m.Flush())

	trak := trakForHandler(t, sink.Bytes(), "soun")
	stsd := descend(t, trak.Body, "mdia", "minf", "stbl", "stsd")
	opus := findBox(parseBoxes(t, stsd.Body[8:]), "opus")
	require.NotNil(t, opus)

	dops := findBox(parseBoxes(t, opus.Body[28:]), "dOps")
	require.NotNil(t, dops)
	require.Equal(t, uint8(0), dops.Body[0]) // version
	require.Equal(t, uint16(2), binary.BigEndian.Uint16(dops.Body[1:3]))
	require.Equal(t, uint32(48000), binary.BigEndian.Uint32(dops.Body[5:9]))
}

// parseU32List reads a run of big-endian u32 values starting at offset,
// skipping the FullBox header (4 bytes) and entry_count (4 bytes) that
// precede most table boxes; offset is the byte position of the first
// entry relative to the box body.
func parseU32List(t *testing.T, body []byte, offset int) []uint32 {
	t.Helper()
	var out []uint32
	for pos := offset; pos+4 <= len(body); pos += 4 {
		out = append(out, binary.BigEndian.Uint32(body[pos:pos+4]))
	}
	return out
}
