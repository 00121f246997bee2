// Package mp4mux multiplexes Annex-B AVC/HEVC video and AAC/Opus audio
// access units into ISO Base Media File Format output, either as a
// single non-fragmented `moov`-at-end file or as a fragmented
// `ftyp`+`moov`+(`moof`+`mdat`)* stream suitable for progressive
// delivery.
package mp4mux

import (
	"bytes"
	"fmt"
	"io"

	"mp4mux/internal/mp4"
	"mp4mux/internal/mp4/bitio"
	"mp4mux/internal/nal"
)

// mp4 epoch (1904-01-01) offset from the Unix epoch, in seconds.
const epochOffset = 2082844800

var ftypBox = &mp4.Ftyp{
	MajorBrand:   [4]byte{'i', 's', 'o', 'm'},
	MinorVersion: 0,
	CompatibleBrands: [][4]byte{
		{'i', 's', 'o', 'm'},
		{'m', 'p', '4', '1'},
		{'i', 's', 'o', '6'},
		{'i', 's', 'o', '2'},
	},
}

// Muxer multiplexes at most one video track and one audio track into an
// MP4 byte stream written to sink. It is not safe for concurrent use.
type Muxer struct {
	fragment bool
	sink     io.Writer
	seeker   io.WriteSeeker
	w        *bitio.Writer

	initHeader            bool
	writeMoov             bool
	sendFirstRandomAccess bool
	writePos              uint64
	mdatSizePos           uint64
	createTime            uint64
	fragmentID            uint32
	duration              uint64
	trackIDs              uint32
	language              [3]byte

	videoTrack *Track
	audioTrack *Track
}

func newMuxer(fragment bool, sink io.Writer, seeker io.WriteSeeker) *Muxer {
	return &Muxer{
		fragment: fragment,
		sink:     sink,
		seeker:   seeker,
		w:        bitio.NewWriter(bitio.NewByteWriter(sink)),
		trackIDs: 1,
		language: [3]byte{'u', 'n', 'd'},
	}
}

// New returns a Muxer in non-fragmented mode. sink must support seeking
// so the final mdat size and moov can be written after all samples.
func New(sink io.WriteSeeker) *Muxer {
	return newMuxer(false, sink, sink)
}

// NewWithFragment returns a Muxer in fragmented mode. sink may be
// append-only.
func NewWithFragment(sink io.Writer) *Muxer {
	return newMuxer(true, sink, nil)
}

// SetLanguage sets the three-letter ISO-639-2/T media language, default
// "und". Ignored once the header has been emitted.
func (m *Muxer) SetLanguage(lang [3]byte) {
	if m.initHeader {
		return
	}
	m.language = lang
}

// SetCreateTime sets the movie creation time as Unix seconds. Until it is
// called the creation time is unset and mvhd is written as version 0;
// any value passed here, zero included, is stored with the 1904 epoch
// offset added and switches mvhd to version 1. Ignored once the header
// has been emitted.
func (m *Muxer) SetCreateTime(unixSeconds uint64) {
	if m.initHeader {
		return
	}
	m.createTime = unixSeconds + epochOffset
}

// SetAudioTrack configures the (at most one) audio track. codec values
// outside the recognized set are accepted; no sample entry or samples
// will ever be produced for such a track.
func (m *Muxer) SetAudioTrack(sampleRate, channelCount uint32, codec Codec) error {
	if m.initHeader {
		return nil
	}
	var dsi []byte
	if codec != CodecOpus {
		dsi = buildAudioSpecificConfig(codec.aacProfile(), sampleRate, channelCount)
	}
	m.audioTrack = &Track{
		ID:           m.trackIDs,
		Type:         TrackAudio,
		Codec:        codec,
		Timescale:    sampleRate,
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		DSI:          dsi,
	}
	m.trackIDs++
	return nil
}

// SetVideoTrack configures the (at most one) video track.
func (m *Muxer) SetVideoTrack(width, height uint32, codec Codec) error {
	if m.initHeader {
		return nil
	}
	m.videoTrack = &Track{
		ID:        m.trackIDs,
		Type:      TrackVideo,
		Codec:     codec,
		Timescale: 90000,
		Width:     width,
		Height:    height,
	}
	m.trackIDs++
	return nil
}

// EncodeVideo feeds one Annex-B access unit with a decode duration in
// milliseconds.
func (m *Muxer) EncodeVideo(data []byte, durationMs uint32) error {
	return m.encodeVideo(data, durationMs, 0, false)
}

// EncodeVideoWithPTS additionally carries a presentation timestamp in
// milliseconds, producing a non-zero composition-time offset when it
// diverges from the accumulated decode duration.
func (m *Muxer) EncodeVideoWithPTS(data []byte, durationMs, ptsMs uint32) error {
	return m.encodeVideo(data, durationMs, ptsMs, true)
}

func (m *Muxer) encodeVideo(data []byte, durationMs, ptsMs uint32, withPTS bool) error {
	if err := m.initHeaderIfNeeded(); err != nil {
		return err
	}
	track := m.videoTrack
	if track == nil {
		return nil
	}

	ticks := durationMs * track.Timescale / 1000
	track.Duration += uint64(ticks)
	if track.Duration > m.duration {
		m.duration = track.Duration
	}

	var ctOffset int32
	if withPTS {
		ptsTicks := int64(ptsMs) * int64(track.Timescale) / 1000
		ctOffset = int32(ptsTicks - int64(track.Duration))
	}

	switch track.Codec {
	case CodecAVC:
		return m.writeAVCFrame(track, data, ticks, ctOffset)
	case CodecHEVC:
		return m.writeHEVCFrame(track, data, ticks, ctOffset)
	}
	return nil
}

// EncodeAudio feeds one audio access unit spanning sampleCount samples
// at the track's sample rate.
func (m *Muxer) EncodeAudio(data []byte, sampleCount uint32) error {
	if err := m.initHeaderIfNeeded(); err != nil {
		return err
	}
	track := m.audioTrack
	if track == nil || !m.sendFirstRandomAccess {
		return nil
	}
	if !track.Codec.isAAC() && track.Codec != CodecOpus {
		return nil
	}
	track.Duration += uint64(sampleCount)
	return m.putAudioSample(track, data, sampleCount)
}

// Flush finalizes the output. In non-fragmented mode it backpatches the
// mdat size and emits the accumulated moov; in fragmented mode it is a
// no-op beyond ensuring the header (and, if any keyframe was seen, the
// moov) were emitted.
func (m *Muxer) Flush() error {
	if err := m.initHeaderIfNeeded(); err != nil {
		return err
	}
	if m.fragment || m.writeMoov {
		return nil
	}
	return m.flushNonFragmented()
}

func (m *Muxer) flushNonFragmented() error {
	sizeWriter := bitio.NewWriter(bitio.NewByteWriter(m.seeker))
	if _, err := m.seeker.Seek(int64(m.mdatSizePos), io.SeekStart); err != nil {
		return fmt.Errorf("mp4mux: seek to mdat size: %w", err)
	}
	if err := sizeWriter.WriteUint64(m.writePos - 32); err != nil {
		return fmt.Errorf("mp4mux: write mdat size: %w", err)
	}
	if _, err := m.seeker.Seek(int64(m.writePos), io.SeekStart); err != nil {
		return fmt.Errorf("mp4mux: seek to write position: %w", err)
	}

	moov := m.buildMoov()
	if err := moov.Marshal(m.w); err != nil {
		return fmt.Errorf("mp4mux: write moov: %w", err)
	}
	m.writePos += uint64(moov.Size())
	m.writeMoov = true
	return nil
}

func (m *Muxer) initHeaderIfNeeded() error {
	if m.initHeader {
		return nil
	}

	ftyp := mp4.Boxes{Box: ftypBox}
	if err := ftyp.Marshal(m.w); err != nil {
		return fmt.Errorf("mp4mux: write ftyp: %w", err)
	}
	m.writePos += uint64(ftyp.Size())

	if !m.fragment {
		if err := m.w.WriteUint32(1); err != nil {
			return fmt.Errorf("mp4mux: write mdat largesize marker: %w", err)
		}
		if _, err := m.w.Write([]byte{'m', 'd', 'a', 't'}); err != nil {
			return fmt.Errorf("mp4mux: write mdat type: %w", err)
		}
		m.mdatSizePos = m.writePos + 8
		if err := m.w.WriteUint64(0); err != nil {
			return fmt.Errorf("mp4mux: write mdat placeholder size: %w", err)
		}
		m.writePos += 16
	}

	m.initHeader = true
	return nil
}

func (m *Muxer) writeAVCFrame(track *Track, data []byte, durationTicks uint32, ctOffset int32) error {
	for _, nalu := range nal.Split(data) {
		kind, isIDR, skip := classifyAVCNALU(track, nalu)
		if skip {
			continue
		}
		if isIDR {
			m.sendFirstRandomAccess = true
		} else if !m.sendFirstRandomAccess {
			continue
		}
		if err := m.putVideoSample(track, nalu, durationTicks, ctOffset, kind); err != nil {
			return err
		}
	}
	return nil
}

func (m *Muxer) writeHEVCFrame(track *Track, data []byte, durationTicks uint32, ctOffset int32) error {
	for _, nalu := range nal.Split(data) {
		kind, skip := classifyHEVCNALU(track, nalu)
		if skip {
			continue
		}
		if kind == sampleRandomAccess {
			m.sendFirstRandomAccess = true
		} else if !m.sendFirstRandomAccess {
			continue
		}
		if err := m.putVideoSample(track, nalu, durationTicks, ctOffset, kind); err != nil {
			return err
		}
	}
	return nil
}

func (m *Muxer) putVideoSample(track *Track, nalu []byte, duration uint32, ctOffset int32, kind sampleKind) error {
	if m.fragment {
		return m.putFragmentSample(track, nalu, duration, ctOffset, kind, true)
	}
	return m.putNonFragmentVideoSample(track, nalu, duration, ctOffset, kind)
}

func (m *Muxer) putNonFragmentVideoSample(track *Track, nalu []byte, duration uint32, ctOffset int32, kind sampleKind) error {
	if kind == sampleContinuation {
		if last := track.lastSample(); last != nil {
			last.Size += uint32(len(nalu)) + 4
		}
	} else {
		track.Samples = append(track.Samples, SampleInfo{
			RandomAccess: kind == sampleRandomAccess,
			Offset:       m.writePos,
			Size:         uint32(len(nalu)) + 4,
			Delta:        duration,
			CTOffset:     ctOffset,
		})
	}
	if err := m.w.WriteUint32(uint32(len(nalu))); err != nil {
		return fmt.Errorf("mp4mux: write nal length: %w", err)
	}
	if _, err := m.w.Write(nalu); err != nil {
		return fmt.Errorf("mp4mux: write video sample: %w", err)
	}
	m.writePos += uint64(len(nalu)) + 4
	return nil
}

func (m *Muxer) putAudioSample(track *Track, data []byte, duration uint32) error {
	if m.fragment {
		return m.putFragmentSample(track, data, duration, 0, sampleRandomAccess, false)
	}
	track.Samples = append(track.Samples, SampleInfo{
		RandomAccess: true,
		Offset:       m.writePos,
		Size:         uint32(len(data)),
		Delta:        duration,
	})
	if _, err := m.w.Write(data); err != nil {
		return fmt.Errorf("mp4mux: write audio sample: %w", err)
	}
	m.writePos += uint64(len(data))
	return nil
}

// putFragmentSample emits one independent moof+mdat pair per surviving
// access unit. Fragmented mode never accumulates a sample table; the
// moov's stbl boxes describing this track stay empty.
func (m *Muxer) putFragmentSample(track *Track, data []byte, duration uint32, ctOffset int32, kind sampleKind, isVideo bool) error {
	if err := m.emitMoovIfNeeded(); err != nil {
		return err
	}
	m.fragmentID++

	moof := m.buildMoof(track, data, duration, ctOffset, kind, isVideo)

	var buf bytes.Buffer
	bw := bitio.NewWriter(bitio.NewByteWriter(&buf))
	if err := moof.Marshal(bw); err != nil {
		return fmt.Errorf("mp4mux: marshal moof: %w", err)
	}
	if _, err := m.sink.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("mp4mux: write moof: %w", err)
	}
	m.writePos += uint64(buf.Len())

	return m.writeFragmentMdat(data, isVideo)
}

func (m *Muxer) writeFragmentMdat(data []byte, isVideo bool) error {
	boxSize := uint32(len(data)) + 8
	if isVideo {
		boxSize += 4
	}
	if err := m.w.WriteUint32(boxSize); err != nil {
		return fmt.Errorf("mp4mux: write mdat size: %w", err)
	}
	if _, err := m.w.Write([]byte{'m', 'd', 'a', 't'}); err != nil {
		return fmt.Errorf("mp4mux: write mdat type: %w", err)
	}
	if isVideo {
		if err := m.w.WriteUint32(uint32(len(data))); err != nil {
			return fmt.Errorf("mp4mux: write nal length: %w", err)
		}
	}
	if _, err := m.w.Write(data); err != nil {
		return fmt.Errorf("mp4mux: write mdat payload: %w", err)
	}
	m.writePos += uint64(boxSize)
	return nil
}

func (m *Muxer) emitMoovIfNeeded() error {
	if m.writeMoov {
		return nil
	}
	moov := m.buildMoov()
	var buf bytes.Buffer
	bw := bitio.NewWriter(bitio.NewByteWriter(&buf))
	if err := moov.Marshal(bw); err != nil {
		return fmt.Errorf("mp4mux: marshal moov: %w", err)
	}
	if _, err := m.sink.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("mp4mux: write moov: %w", err)
	}
	m.writePos += uint64(buf.Len())
	m.writeMoov = true
	return nil
}

func flags24(v uint32) [3]byte {
	return [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

// buildMoof constructs one fragment's moof subtree and backpatches its
// trun.data_offset using the subtree's own precomputed size, rather than
// seeking: the size is known before marshaling because every box in
// internal/mp4 is self-sizing.
func (m *Muxer) buildMoof(track *Track, data []byte, duration uint32, ctOffset int32, kind sampleKind, isVideo bool) mp4.Boxes {
	sampleSize := uint32(len(data))
	if isVideo {
		sampleSize += 4
	}

	trun := &mp4.Trun{
		Entries: []mp4.TrunEntry{{
			SampleDuration:          duration,
			SampleSize:              sampleSize,
			SampleCompositionOffset: ctOffset,
		}},
	}

	var tfhd *mp4.Tfhd
	if isVideo {
		tfhd = &mp4.Tfhd{TrackID: track.ID, DefaultSampleFlags: 0x01010000}
		tfhd.Flags = flags24(mp4.TfhdDefaultBaseIsMoof | mp4.TfhdDefaultSampleFlagsPresent)
		if kind == sampleRandomAccess {
			trun.Flags = flags24(mp4.TrunDataOffsetPresent | mp4.TrunFirstSampleFlagsPresent |
				mp4.TrunSampleDurationPresent | mp4.TrunSampleSizePresent | mp4.TrunSampleCompositionTimeOffsetPresent)
			trun.FirstSampleFlags = 0x02000000
		} else {
			trun.Flags = flags24(mp4.TrunDataOffsetPresent | mp4.TrunSampleDurationPresent |
				mp4.TrunSampleSizePresent | mp4.TrunSampleCompositionTimeOffsetPresent)
		}
	} else {
		tfhd = &mp4.Tfhd{TrackID: track.ID, DefaultSampleDuration: duration}
		tfhd.Flags = flags24(mp4.TfhdDefaultBaseIsMoof | mp4.TfhdDefaultSampleDurationPresent)
		trun.Flags = flags24(mp4.TrunDataOffsetPresent | mp4.TrunSampleSizePresent)
	}

	moof := mp4.Boxes{
		Box: mp4.Moof(),
		Children: []mp4.Boxes{
			{Box: &mp4.Mfhd{SequenceNumber: m.fragmentID}},
			{
				Box: mp4.Traf(),
				Children: []mp4.Boxes{
					{Box: tfhd},
					{Box: trun},
				},
			},
		},
	}

	trun.DataOffset = int32(moof.Size()) + 8
	return moof
}

func (m *Muxer) buildMoov() mp4.Boxes {
	children := []mp4.Boxes{{Box: m.buildMvhd()}}
	if m.videoTrack != nil {
		children = append(children, m.buildTrak(m.videoTrack))
	}
	if m.audioTrack != nil {
		children = append(children, m.buildTrak(m.audioTrack))
	}
	if m.fragment {
		children = append(children, m.buildMvex())
	}
	return mp4.Boxes{Box: mp4.Moov(), Children: children}
}

// buildMvhd derives the movie duration from the video track's timescale
// and accumulated duration. When no video track was configured, the
// audio track's own duration is used instead. EncodeAudio accepts no
// sample before a video keyframe, so in a muxer without a video track
// that duration, and with it the movie duration, stays zero.
func (m *Muxer) buildMvhd() *mp4.Mvhd {
	const movieTimescale = 1000
	var durationTicks uint64
	switch {
	case m.videoTrack != nil && m.videoTrack.Timescale >= movieTimescale:
		durationTicks = m.duration / uint64(m.videoTrack.Timescale/movieTimescale)
	case m.audioTrack != nil && m.audioTrack.Timescale != 0:
		durationTicks = m.audioTrack.Duration * movieTimescale / uint64(m.audioTrack.Timescale)
	}

	mvhd := &mp4.Mvhd{
		Timescale:   movieTimescale,
		Rate:        0x00010000,
		Volume:      0x0100,
		NextTrackID: m.trackIDs,
	}
	if m.createTime != 0 {
		mvhd.Version = 1
		mvhd.CreationTimeV1 = m.createTime
		mvhd.ModificationTimeV1 = m.createTime
		mvhd.DurationV1 = durationTicks
	} else {
		mvhd.DurationV0 = uint32(durationTicks)
	}
	return mvhd
}

func (m *Muxer) buildTrak(track *Track) mp4.Boxes {
	return mp4.Boxes{
		Box: mp4.Trak(),
		Children: []mp4.Boxes{
			{Box: m.buildTkhd(track)},
			m.buildMdia(track),
		},
	}
}

func (m *Muxer) buildTkhd(track *Track) *mp4.Tkhd {
	var durMs uint64
	if track.Timescale >= 1000 {
		durMs = track.Duration / uint64(track.Timescale/1000)
	}
	tkhd := &mp4.Tkhd{
		FullBox:    mp4.FullBox{Flags: [3]byte{0, 0, 7}},
		TrackID:    track.ID,
		DurationV0: uint32(durMs),
		Volume:     0x0100,
	}
	if track.Type == TrackVideo {
		tkhd.Width = track.Width << 16
		tkhd.Height = track.Height << 16
	}
	return tkhd
}

func (m *Muxer) buildMdia(track *Track) mp4.Boxes {
	return mp4.Boxes{
		Box: mp4.Mdia(),
		Children: []mp4.Boxes{
			{Box: m.buildMdhd(track)},
			{Box: buildHdlr(track)},
			m.buildMinf(track),
		},
	}
}

func (m *Muxer) buildMdhd(track *Track) *mp4.Mdhd {
	return &mp4.Mdhd{
		Timescale:  track.Timescale,
		DurationV0: uint32(track.Duration),
		Language:   m.language,
	}
}

func buildHdlr(track *Track) *mp4.Hdlr {
	if track.Type == TrackVideo {
		return &mp4.Hdlr{HandlerType: [4]byte{'v', 'i', 'd', 'e'}, Name: "VideoHandler"}
	}
	return &mp4.Hdlr{HandlerType: [4]byte{'s', 'o', 'u', 'n'}, Name: "SoundHandler"}
}

func (m *Muxer) buildMinf(track *Track) mp4.Boxes {
	var mediaHeader mp4.Boxes
	if track.Type == TrackVideo {
		mediaHeader = mp4.Boxes{Box: &mp4.Vmhd{}}
	} else {
		mediaHeader = mp4.Boxes{Box: &mp4.Smhd{}}
	}
	dinf := mp4.Boxes{
		Box: mp4.Dinf(),
		Children: []mp4.Boxes{
			{
				Box:      &mp4.Dref{},
				Children: []mp4.Boxes{{Box: &mp4.URLBox{}}},
			},
		},
	}
	return mp4.Boxes{
		Box:      mp4.Minf(),
		Children: []mp4.Boxes{mediaHeader, dinf, m.buildStbl(track)},
	}
}

func (m *Muxer) buildStbl(track *Track) mp4.Boxes {
	children := []mp4.Boxes{
		m.buildStsd(track),
		{Box: buildStts(track)},
	}
	if ctts := buildCtts(track); ctts != nil {
		children = append(children, mp4.Boxes{Box: ctts})
	}
	children = append(children, mp4.Boxes{Box: buildStsc(track, m.fragment)})
	children = append(children, mp4.Boxes{Box: buildStsz(track)})
	if len(track.Samples) > 0 {
		children = append(children, mp4.Boxes{Box: buildChunkOffsetBox(track)})
	}
	if track.Type == TrackVideo && !m.fragment {
		children = append(children, mp4.Boxes{Box: buildStss(track)})
	}
	return mp4.Boxes{Box: mp4.Stbl(), Children: children}
}

// buildStsd returns the stsd subtree with its sample entry (avc1/hvc1/
// mp4a/opus) as a child box. entry_count stays 1 in the fixed stsd
// header regardless of whether a sample entry could be built for the
// track's codec.
func (m *Muxer) buildStsd(track *Track) mp4.Boxes {
	boxes := mp4.Boxes{Box: &mp4.Stsd{}}
	if entry := buildSampleEntry(track); entry != nil {
		boxes.Children = []mp4.Boxes{{Box: entry}}
	}
	return boxes
}

// buildSampleEntry returns nil for an unsupported codec: stsd's
// entry_count stays 1 but no sample entry box is emitted.
func buildSampleEntry(track *Track) mp4.ImmutableBox {
	if track.Type == TrackVideo {
		switch track.Codec {
		case CodecAVC:
			return &mp4.Avc1{
				Width:  uint16(track.Width),
				Height: uint16(track.Height),
				AvcC: &mp4.AvcC{
					Profile:              spsByte(track.SPS, 1),
					ProfileCompatibility: spsByte(track.SPS, 2),
					Level:                spsByte(track.SPS, 3),
					SPS:                  track.SPS,
					PPS:                  track.PPS,
				},
			}
		case CodecHEVC:
			return &mp4.Hvc1{
				Width:  uint16(track.Width),
				Height: uint16(track.Height),
				HvcC:   &mp4.HvcC{VPS: track.VPS, SPS: track.SPS, PPS: track.PPS},
			}
		}
		return nil
	}
	switch {
	case track.Codec.isAAC():
		return &mp4.Mp4a{
			ChannelCount: uint16(track.ChannelCount),
			SampleRate:   track.SampleRate,
			Esds:         &mp4.Esds{ChannelCount: track.ChannelCount, DSI: track.DSI},
		}
	case track.Codec == CodecOpus:
		return &mp4.Opus{
			ChannelCount: uint16(track.ChannelCount),
			SampleRate:   track.SampleRate,
			Dops:         &mp4.Dops{ChannelCount: uint16(track.ChannelCount), SampleRate: track.SampleRate},
		}
	}
	return nil
}

func spsByte(sps []byte, idx int) uint8 {
	if len(sps) > idx {
		return sps[idx]
	}
	return 0
}

func buildStts(track *Track) *mp4.Stts {
	var entries []mp4.SttsEntry
	for _, s := range track.Samples {
		if n := len(entries); n > 0 && entries[n-1].SampleDelta == s.Delta {
			entries[n-1].SampleCount++
			continue
		}
		entries = append(entries, mp4.SttsEntry{SampleCount: 1, SampleDelta: s.Delta})
	}
	return &mp4.Stts{Entries: entries}
}

// buildCtts returns nil when every sample's composition offset is zero,
// omitting the box entirely rather than emitting a single all-zero run.
func buildCtts(track *Track) *mp4.Ctts {
	hasOffset := false
	for _, s := range track.Samples {
		if s.CTOffset != 0 {
			hasOffset = true
			break
		}
	}
	if !hasOffset {
		return nil
	}
	var entries []mp4.CttsEntry
	for _, s := range track.Samples {
		if n := len(entries); n > 0 && entries[n-1].SampleOffset == s.CTOffset {
			entries[n-1].SampleCount++
			continue
		}
		entries = append(entries, mp4.CttsEntry{SampleCount: 1, SampleOffset: s.CTOffset})
	}
	return &mp4.Ctts{Entries: entries}
}

// buildStsc always emits either zero entries (fragmented mode, where no
// sample table is ever populated) or exactly one literal
// {1,1,1} entry: every sample is its own chunk, so one run covers all
// of them.
func buildStsc(track *Track, fragment bool) *mp4.Stsc {
	if fragment {
		return &mp4.Stsc{}
	}
	return &mp4.Stsc{Entries: []mp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1}}}
}

func buildStsz(track *Track) *mp4.Stsz {
	sizes := make([]uint32, len(track.Samples))
	for i, s := range track.Samples {
		sizes[i] = s.Size
	}
	return &mp4.Stsz{EntrySize: sizes}
}

func buildChunkOffsetBox(track *Track) mp4.ImmutableBox {
	last := track.Samples[len(track.Samples)-1]
	if last.Offset > 0xffffffff {
		offsets := make([]uint64, len(track.Samples))
		for i, s := range track.Samples {
			offsets[i] = s.Offset
		}
		return &mp4.Co64{ChunkOffset: offsets}
	}
	offsets := make([]uint32, len(track.Samples))
	for i, s := range track.Samples {
		offsets[i] = uint32(s.Offset)
	}
	return &mp4.Stco{ChunkOffset: offsets}
}

func buildStss(track *Track) *mp4.Stss {
	var nums []uint32
	for i, s := range track.Samples {
		if s.RandomAccess {
			nums = append(nums, uint32(i+1))
		}
	}
	return &mp4.Stss{SampleNumber: nums}
}

func (m *Muxer) buildMvex() mp4.Boxes {
	var children []mp4.Boxes
	if m.videoTrack != nil {
		children = append(children, mp4.Boxes{Box: &mp4.Trex{TrackID: m.videoTrack.ID}})
	}
	if m.audioTrack != nil {
		children = append(children, mp4.Boxes{Box: &mp4.Trex{TrackID: m.audioTrack.ID}})
	}
	return mp4.Boxes{Box: mp4.Mvex(), Children: children}
}
