package mp4

import "mp4mux/internal/mp4/bitio"

/************************* FullBox **************************/

// FullBox is the ISO-BMFF FullBox prefix: a version byte and 24 bits of flags.
type FullBox struct {
	Version uint8
	Flags   [3]byte
}

// GetFlags returns the 24-bit flags as a uint32.
func (b *FullBox) GetFlags() uint32 {
	return uint32(b.Flags[0])<<16 | uint32(b.Flags[1])<<8 | uint32(b.Flags[2])
}

// CheckFlag reports whether any bit of flag is set.
func (b *FullBox) CheckFlag(flag uint32) bool {
	return b.GetFlags()&flag != 0
}

// Size returns the marshaled size in bytes.
func (b *FullBox) Size() int { return 4 }

// Marshal writes the version byte and flags.
func (b *FullBox) Marshal(w *bitio.Writer) error {
	w.TryWriteByte(b.Version)
	w.TryWrite(b.Flags[:])
	return w.TryError
}

/*************************** container-only boxes ****************************/

// empty models a box whose body is entirely its children; Marshal is never
// called because Size is always 0.
type empty struct{ typ BoxType }

func (e empty) Type() BoxType               { return e.typ }
func (e empty) Size() int                   { return 0 }
func (e empty) Marshal(*bitio.Writer) error { return nil }

// Moov, Trak, Mdia, Minf, Stbl, Dinf, Mvex, Moof, Traf are pure containers.
func Moov() ImmutableBox { return empty{BoxType{'m', 'o', 'o', 'v'}} }
func Trak() ImmutableBox { return empty{BoxType{'t', 'r', 'a', 'k'}} }
func Mdia() ImmutableBox { return empty{BoxType{'m', 'd', 'i', 'a'}} }
func Minf() ImmutableBox { return empty{BoxType{'m', 'i', 'n', 'f'}} }
func Stbl() ImmutableBox { return empty{BoxType{'s', 't', 'b', 'l'}} }
func Dinf() ImmutableBox { return empty{BoxType{'d', 'i', 'n', 'f'}} }
func Mvex() ImmutableBox { return empty{BoxType{'m', 'v', 'e', 'x'}} }
func Moof() ImmutableBox { return empty{BoxType{'m', 'o', 'o', 'f'}} }
func Traf() ImmutableBox { return empty{BoxType{'t', 'r', 'a', 'f'}} }

/*************************** ftyp ****************************/

// Ftyp is the file type box.
type Ftyp struct {
	MajorBrand       [4]byte
	MinorVersion     uint32
	CompatibleBrands [][4]byte
}

func (*Ftyp) Type() BoxType { return BoxType{'f', 't', 'y', 'p'} }

func (b *Ftyp) Size() int { return 8 + len(b.CompatibleBrands)*4 }

func (b *Ftyp) Marshal(w *bitio.Writer) error {
	w.TryWrite(b.MajorBrand[:])
	w.TryWriteUint32(b.MinorVersion)
	for _, brand := range b.CompatibleBrands {
		w.TryWrite(brand[:])
	}
	return w.TryError
}

/*************************** mvhd ****************************/

// Mvhd is the movie header box.
type Mvhd struct {
	FullBox
	CreationTimeV0     uint32
	ModificationTimeV0 uint32
	CreationTimeV1     uint64
	ModificationTimeV1 uint64
	Timescale          uint32
	DurationV0         uint32
	DurationV1         uint64
	Rate               int32
	Volume             int16
	NextTrackID        uint32
}

func (*Mvhd) Type() BoxType { return BoxType{'m', 'v', 'h', 'd'} }

func (b *Mvhd) Size() int {
	if b.Version == 0 {
		return 100
	}
	return 112
}

func (b *Mvhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	if b.Version == 0 {
		w.TryWriteUint32(b.CreationTimeV0)
		w.TryWriteUint32(b.ModificationTimeV0)
		w.TryWriteUint32(b.Timescale)
		w.TryWriteUint32(b.DurationV0)
	} else {
		w.TryWriteUint64(b.CreationTimeV1)
		w.TryWriteUint64(b.ModificationTimeV1)
		w.TryWriteUint32(b.Timescale)
		w.TryWriteUint64(b.DurationV1)
	}
	w.TryWriteInt32(b.Rate)
	w.TryWriteUint16(uint16(b.Volume))
	w.TryWriteUint16(0) // reserved
	w.TryWriteUint32(0) // reserved
	w.TryWriteUint32(0) // reserved
	for _, v := range [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		w.TryWriteInt32(v)
	}
	for i := 0; i < 6; i++ {
		w.TryWriteUint32(0) // pre_defined
	}
	w.TryWriteUint32(b.NextTrackID)
	return w.TryError
}

/*************************** tkhd ****************************/

// Tkhd is the track header box.
type Tkhd struct {
	FullBox
	TrackID    uint32
	DurationV0 uint32
	DurationV1 uint64
	Volume     int16
	Width      uint32 // fixed-point 16.16
	Height     uint32 // fixed-point 16.16
}

func (*Tkhd) Type() BoxType { return BoxType{'t', 'k', 'h', 'd'} }

func (b *Tkhd) Size() int {
	if b.Version == 0 {
		return 84
	}
	return 96
}

func (b *Tkhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	if b.Version == 0 {
		w.TryWriteUint32(0) // creation_time
		w.TryWriteUint32(0) // modification_time
	} else {
		w.TryWriteUint64(0)
		w.TryWriteUint64(0)
	}
	w.TryWriteUint32(b.TrackID)
	w.TryWriteUint32(0) // reserved
	if b.Version == 0 {
		w.TryWriteUint32(b.DurationV0)
	} else {
		w.TryWriteUint64(b.DurationV1)
	}
	w.TryWriteUint32(0) // reserved
	w.TryWriteUint32(0) // reserved
	w.TryWriteUint16(0) // layer
	w.TryWriteUint16(0) // alternate_group
	w.TryWriteUint16(uint16(b.Volume))
	w.TryWriteUint16(0) // reserved
	for _, v := range [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		w.TryWriteInt32(v)
	}
	w.TryWriteUint32(b.Width)
	w.TryWriteUint32(b.Height)
	return w.TryError
}

/*************************** hdlr ****************************/

// Hdlr is the handler reference box.
type Hdlr struct {
	FullBox
	HandlerType [4]byte
	Name        string
}

func (*Hdlr) Type() BoxType { return BoxType{'h', 'd', 'l', 'r'} }

func (b *Hdlr) Size() int { return 25 + len(b.Name) }

func (b *Hdlr) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(0) // pre_defined
	w.TryWrite(b.HandlerType[:])
	w.TryWriteUint32(0) // reserved
	w.TryWriteUint32(0) // reserved
	w.TryWriteUint32(0) // reserved
	w.TryWrite([]byte(b.Name))
	w.TryWriteByte(0) // name is null-terminated
	return w.TryError
}

/*************************** mdhd ****************************/

// Mdhd is the media header box.
type Mdhd struct {
	FullBox
	Timescale  uint32
	DurationV0 uint32
	DurationV1 uint64
	Language   [3]byte // ISO-639-2/T, each letter masked to its low 5 bits
}

func (*Mdhd) Type() BoxType { return BoxType{'m', 'd', 'h', 'd'} }

func (b *Mdhd) Size() int {
	if b.Version == 0 {
		return 24
	}
	return 36
}

func (b *Mdhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	if b.Version == 0 {
		w.TryWriteUint32(0) // creation_time
		w.TryWriteUint32(0) // modification_time
		w.TryWriteUint32(b.Timescale)
		w.TryWriteUint32(b.DurationV0)
	} else {
		w.TryWriteUint64(0)
		w.TryWriteUint64(0)
		w.TryWriteUint32(b.Timescale)
		w.TryWriteUint64(b.DurationV1)
	}
	lang := uint16(b.Language[0]&0x1f)<<10 | uint16(b.Language[1]&0x1f)<<5 | uint16(b.Language[2]&0x1f)
	w.TryWriteUint16(lang)
	w.TryWriteUint16(0) // pre_defined
	return w.TryError
}

/*************************** vmhd / smhd ****************************/

// Vmhd is the video media header box.
type Vmhd struct{ FullBox }

func (*Vmhd) Type() BoxType { return BoxType{'v', 'm', 'h', 'd'} }
func (b *Vmhd) Size() int   { return 12 }
func (b *Vmhd) Marshal(w *bitio.Writer) error {
	b.Flags = [3]byte{0, 0, 1}
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint16(0) // graphicsmode
	w.TryWriteUint16(0) // opcolor
	w.TryWriteUint16(0)
	w.TryWriteUint16(0)
	return w.TryError
}

// Smhd is the sound media header box.
type Smhd struct{ FullBox }

func (*Smhd) Type() BoxType { return BoxType{'s', 'm', 'h', 'd'} }
func (b *Smhd) Size() int   { return 8 }
func (b *Smhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint16(0) // balance
	w.TryWriteUint16(0) // reserved
	return w.TryError
}

/*************************** dinf / dref / url ****************************/

// Dref is the data reference box.
type Dref struct{ FullBox }

func (*Dref) Type() BoxType { return BoxType{'d', 'r', 'e', 'f'} }
func (b *Dref) Size() int   { return 8 }
func (b *Dref) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(1) // entry_count
	return w.TryError
}

// URLBox is the self-contained "url " data entry, flagged as in-file.
type URLBox struct{ FullBox }

func (*URLBox) Type() BoxType { return BoxType{'u', 'r', 'l', ' '} }
func (b *URLBox) Size() int   { return 4 }
func (b *URLBox) Marshal(w *bitio.Writer) error {
	b.Flags = [3]byte{0, 0, 1} // self-contained: no location string follows
	return b.FullBox.Marshal(w)
}

/*************************** SampleEntry / avc1 / hvc1 ****************************/

func marshalSampleEntryHeader(w *bitio.Writer, width, height uint16) {
	for i := 0; i < 6; i++ {
		w.TryWriteByte(0) // reserved
	}
	w.TryWriteUint16(1) // data_reference_index
	w.TryWriteUint16(0) // pre_defined
	w.TryWriteUint16(0) // reserved
	for i := 0; i < 3; i++ {
		w.TryWriteUint32(0) // pre_defined
	}
	w.TryWriteUint16(width)
	w.TryWriteUint16(height)
	w.TryWriteUint32(0x00480000) // horizresolution
	w.TryWriteUint32(0x00480000) // vertresolution
	w.TryWriteUint32(0)          // reserved
	w.TryWriteUint16(1)          // frame_count
	for i := 0; i < 32; i++ {
		w.TryWriteByte(0) // compressorname
	}
	w.TryWriteUint16(0x0018) // depth
	w.TryWriteUint16(0xffff) // pre_defined = -1
}

// Avc1 is the AVC visual sample entry, wrapping avcC.
type Avc1 struct {
	Width, Height uint16
	AvcC          *AvcC
}

func (*Avc1) Type() BoxType { return BoxType{'a', 'v', 'c', '1'} }
func (b *Avc1) Size() int   { return 78 + 8 + b.AvcC.Size() }
func (b *Avc1) Marshal(w *bitio.Writer) error {
	marshalSampleEntryHeader(w, b.Width, b.Height)
	if w.TryError != nil {
		return w.TryError
	}
	boxes := Boxes{Box: b.AvcC}
	return boxes.Marshal(w)
}

// Hvc1 is the HEVC visual sample entry, wrapping hvcC.
type Hvc1 struct {
	Width, Height uint16
	HvcC          *HvcC
}

func (*Hvc1) Type() BoxType { return BoxType{'h', 'v', 'c', '1'} }
func (b *Hvc1) Size() int   { return 78 + 8 + b.HvcC.Size() }
func (b *Hvc1) Marshal(w *bitio.Writer) error {
	marshalSampleEntryHeader(w, b.Width, b.Height)
	if w.TryError != nil {
		return w.TryError
	}
	boxes := Boxes{Box: b.HvcC}
	return boxes.Marshal(w)
}

/*************************** avcC ****************************/

// AvcC is the AVC decoder configuration record. Exactly one SPS and at
// most one PPS are carried, matching this muxer's single-parameter-set
// model.
type AvcC struct {
	Profile              uint8
	ProfileCompatibility uint8
	Level                uint8
	SPS                  []byte
	PPS                  []byte
}

func (*AvcC) Type() BoxType { return BoxType{'a', 'v', 'c', 'C'} }

func (b *AvcC) Size() int {
	total := 7
	if b.SPS != nil {
		total += 2 + len(b.SPS)
	}
	if b.PPS != nil {
		total += 2 + len(b.PPS)
	}
	return total
}

func (b *AvcC) Marshal(w *bitio.Writer) error {
	w.TryWriteByte(1) // configurationVersion
	w.TryWriteByte(b.Profile)
	w.TryWriteByte(b.ProfileCompatibility)
	w.TryWriteByte(b.Level)
	w.TryWriteByte(0xff)     // reserved(6)=1s | lengthSizeMinusOne(2)=3 (4-byte NALU length)
	w.TryWriteByte(0xe0 | 1) // reserved(3)=1s | numOfSequenceParameterSets(5)=1
	if b.SPS != nil {
		w.TryWriteUint16(uint16(len(b.SPS)))
		w.TryWrite(b.SPS)
	}
	w.TryWriteByte(1) // numOfPictureParameterSets
	if b.PPS != nil {
		w.TryWriteUint16(uint16(len(b.PPS)))
		w.TryWrite(b.PPS)
	}
	return w.TryError
}

/*************************** hvcC ****************************/

// HvcC is the HEVC decoder configuration record.
type HvcC struct {
	VPS, SPS, PPS []byte
}

func (*HvcC) Type() BoxType { return BoxType{'h', 'v', 'c', 'C'} }

func (b *HvcC) Size() int {
	total := 23
	total += arraySize(b.VPS)
	total += arraySize(b.SPS)
	total += arraySize(b.PPS)
	return total
}

// arraySize is one parameter-set array's marshaled size: the
// array-header byte, the u16 NALU count, and (when present) the u16
// length plus the parameter-set bytes.
func arraySize(ps []byte) int {
	if ps == nil {
		return 3
	}
	return 5 + len(ps)
}

func (b *HvcC) Marshal(w *bitio.Writer) error {
	w.TryWriteByte(1)            // configurationVersion
	w.TryWriteByte(1)            // profile_space(2)|tier_flag(1)|profile_idc(5)
	w.TryWriteUint32(0x60000000) // profile_compatibility_flags
	w.TryWriteUint16(0)          // constraint_indicator_flags (upper 16 of 48 bits)
	w.TryWriteUint32(0)          // constraint_indicator_flags (lower 32 of 48 bits)
	w.TryWriteByte(0)            // level_idc
	w.TryWriteUint16(0xf000)     // min_spatial_segmentation_idc
	w.TryWriteByte(0xfc)         // parallelismType
	w.TryWriteByte(0xfc)         // chromaFormat
	w.TryWriteByte(0xf8)         // bitDepthLumaMinus8
	w.TryWriteByte(0xf8)         // bitDepthChromaMinus8
	w.TryWriteUint16(0)          // avgFrameRate
	w.TryWriteByte(0x03)         // constantFrameRate|numTemporalLayers|temporalIdNested|lengthSizeMinusOne
	w.TryWriteByte(3)            // numOfArrays
	b.marshalArray(w, 32, b.VPS)
	b.marshalArray(w, 33, b.SPS)
	b.marshalArray(w, 34, b.PPS)
	return w.TryError
}

func (b *HvcC) marshalArray(w *bitio.Writer, nalType uint8, ps []byte) {
	w.TryWriteByte((1 << 7) | (nalType & 0x3f))
	if ps == nil {
		w.TryWriteUint16(0) // numNalus = 0
		return
	}
	w.TryWriteUint16(1) // numNalus
	w.TryWriteUint16(uint16(len(ps)))
	w.TryWrite(ps)
}

/*************************** mp4a / esds ****************************/

// Mp4a is the MPEG-4 audio sample entry, wrapping esds.
type Mp4a struct {
	ChannelCount uint16
	SampleRate   uint32
	Esds         *Esds
}

func (*Mp4a) Type() BoxType { return BoxType{'m', 'p', '4', 'a'} }
func (b *Mp4a) Size() int   { return 28 + 8 + b.Esds.Size() }
func (b *Mp4a) Marshal(w *bitio.Writer) error {
	for i := 0; i < 6; i++ {
		w.TryWriteByte(0) // reserved
	}
	w.TryWriteUint16(1) // data_reference_index
	w.TryWriteUint32(0) // reserved (version/revision/vendor high bits folded)
	w.TryWriteUint32(0) // reserved
	w.TryWriteUint16(b.ChannelCount)
	w.TryWriteUint16(0x0010) // samplesize
	w.TryWriteUint16(0)      // pre_defined
	w.TryWriteUint16(0)      // reserved
	w.TryWriteUint32(b.SampleRate << 16)
	if w.TryError != nil {
		return w.TryError
	}
	boxes := Boxes{Box: b.Esds}
	return boxes.Marshal(w)
}

// ES descriptor tags, ISO/IEC 14496-1.
const (
	esDescrTag            = 0x03
	decoderConfigDescrTag = 0x04
	decSpecificInfoTag    = 0x05
	slConfigDescrTag      = 0x06
)

// Esds wraps an MPEG-4 ES descriptor around the audio decoder-specific
// info (here always the 2-byte AAC AudioSpecificConfig).
type Esds struct {
	ChannelCount uint32
	DSI          []byte
}

func (*Esds) Type() BoxType { return BoxType{'e', 's', 'd', 's'} }

func odLenSize(size int) int {
	n := 1
	for size > 0x7f {
		n++
		size -= 0x7f
	}
	return n
}

func (b *Esds) Size() int {
	dsiLen := len(b.DSI)
	dcdBytes := dsiLen + odLenSize(dsiLen) + 1 + (1 + 1 + 3 + 4 + 4)
	esBytes := dcdBytes + odLenSize(dcdBytes) + 7
	return 4 + 1 + odLenSize(esBytes) + esBytes
}

func writeODLen(w *bitio.Writer, size int) {
	for size > 0x7f {
		w.TryWriteByte(0xff)
		size -= 0x7f
	}
	w.TryWriteByte(byte(size))
}

func (b *Esds) Marshal(w *bitio.Writer) error {
	w.TryWriteUint32(0) // version & flags
	dsiLen := len(b.DSI)
	dcdBytes := dsiLen + odLenSize(dsiLen) + 1 + (1 + 1 + 3 + 4 + 4)
	esBytes := dcdBytes + odLenSize(dcdBytes) + 7

	w.TryWriteByte(esDescrTag)
	writeODLen(w, esBytes)
	w.TryWrite([]byte{0x00, 0x00, 0x00}) // ES_ID(16) + flags/stream_priority(8)

	w.TryWriteByte(decoderConfigDescrTag)
	writeODLen(w, dcdBytes)
	w.TryWriteByte(0x40)           // objectTypeIndication: MPEG-4 Audio
	w.TryWriteByte(5 << 2)         // streamType(6)=audio | upStream(1) | reserved(1)
	w.TryWriteByte(0)              // bufferSizeDB, high byte
	w.TryWriteUint16(uint16(b.ChannelCount * 6144 / 8))
	w.TryWriteUint32(0) // maxBitrate
	w.TryWriteUint32(0) // avgBitrate

	w.TryWriteByte(decSpecificInfoTag)
	writeODLen(w, dsiLen)
	w.TryWrite(b.DSI)

	// SLConfigDescriptor, predefined=2 (MP4)
	w.TryWriteByte(slConfigDescrTag)
	writeODLen(w, 1)
	w.TryWriteByte(2)
	return w.TryError
}

/*************************** opus / dops ****************************/

// Opus is the Opus audio sample entry, wrapping dops.
type Opus struct {
	ChannelCount uint16
	SampleRate   uint32
	Dops         *Dops
}

func (*Opus) Type() BoxType { return BoxType{'o', 'p', 'u', 's'} }
func (b *Opus) Size() int   { return 28 + 8 + b.Dops.Size() }
func (b *Opus) Marshal(w *bitio.Writer) error {
	for i := 0; i < 6; i++ {
		w.TryWriteByte(0) // reserved
	}
	w.TryWriteUint16(1) // data_reference_index
	w.TryWriteUint32(0)
	w.TryWriteUint32(0)
	w.TryWriteUint16(b.ChannelCount)
	w.TryWriteUint16(0x0010)
	w.TryWriteUint16(0)
	w.TryWriteUint16(0)
	w.TryWriteUint32(b.SampleRate << 16)
	if w.TryError != nil {
		return w.TryError
	}
	boxes := Boxes{Box: b.Dops}
	return boxes.Marshal(w)
}

// Dops is the Opus Specific Box.
type Dops struct {
	ChannelCount uint16
	SampleRate   uint32
}

func (*Dops) Type() BoxType { return BoxType{'d', 'O', 'p', 's'} }
func (b *Dops) Size() int   { return 12 }
func (b *Dops) Marshal(w *bitio.Writer) error {
	w.TryWriteByte(0) // version
	w.TryWriteUint16(b.ChannelCount)
	w.TryWriteUint16(0) // pre_skip
	w.TryWriteUint32(b.SampleRate)
	w.TryWriteUint16(0) // output_gain
	w.TryWriteByte(0)   // channel_mapping_family
	return w.TryError
}

/*************************** stsd ****************************/

// Stsd is the sample description box. Its one sample entry (avc1/hvc1/
// mp4a/opus) is carried as this box's sole Boxes child, not as a field
// here, since the entry is itself a self-sizing nested box.
type Stsd struct {
	FullBox
}

func (*Stsd) Type() BoxType { return BoxType{'s', 't', 's', 'd'} }
func (b *Stsd) Size() int   { return 8 }
func (b *Stsd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(1) // entry_count
	return w.TryError
}

/*************************** stts / ctts ****************************/

// SttsEntry is one run-length entry of the decoding time-to-sample box.
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Stts is the decoding time-to-sample box.
type Stts struct {
	FullBox
	Entries []SttsEntry
}

func (*Stts) Type() BoxType { return BoxType{'s', 't', 't', 's'} }
func (b *Stts) Size() int   { return 8 + len(b.Entries)*8 }
func (b *Stts) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		w.TryWriteUint32(e.SampleCount)
		w.TryWriteUint32(e.SampleDelta)
	}
	return w.TryError
}

// CttsEntry is one run-length entry of the composition offset box.
type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

// Ctts is the composition time-to-sample box. Always written version 1
// (signed offsets), since composition offsets in this module may be
// negative.
type Ctts struct {
	FullBox
	Entries []CttsEntry
}

func (*Ctts) Type() BoxType { return BoxType{'c', 't', 't', 's'} }
func (b *Ctts) Size() int   { return 8 + len(b.Entries)*8 }
func (b *Ctts) Marshal(w *bitio.Writer) error {
	b.Version = 1
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		w.TryWriteUint32(e.SampleCount)
		w.TryWriteInt32(e.SampleOffset)
	}
	return w.TryError
}

/*************************** stsc ****************************/

// StscEntry is one run of equal samples-per-chunk.
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// Stsc is the sample-to-chunk box.
type Stsc struct {
	FullBox
	Entries []StscEntry
}

func (*Stsc) Type() BoxType { return BoxType{'s', 't', 's', 'c'} }
func (b *Stsc) Size() int   { return 8 + len(b.Entries)*12 }
func (b *Stsc) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		w.TryWriteUint32(e.FirstChunk)
		w.TryWriteUint32(e.SamplesPerChunk)
		w.TryWriteUint32(e.SampleDescriptionIndex)
	}
	return w.TryError
}

/*************************** stsz ****************************/

// Stsz is the sample size box. Every sample has an explicit size (no
// uniform-size optimization).
type Stsz struct {
	FullBox
	EntrySize []uint32
}

func (*Stsz) Type() BoxType { return BoxType{'s', 't', 's', 'z'} }
func (b *Stsz) Size() int   { return 12 + len(b.EntrySize)*4 }
func (b *Stsz) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(0) // sample_size (0 means explicit per-sample sizes follow)
	w.TryWriteUint32(uint32(len(b.EntrySize)))
	for _, e := range b.EntrySize {
		w.TryWriteUint32(e)
	}
	return w.TryError
}

/*************************** stco / co64 ****************************/

// Stco is the 32-bit chunk offset box.
type Stco struct {
	FullBox
	ChunkOffset []uint32
}

func (*Stco) Type() BoxType { return BoxType{'s', 't', 'c', 'o'} }
func (b *Stco) Size() int   { return 8 + len(b.ChunkOffset)*4 }
func (b *Stco) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.ChunkOffset)))
	for _, o := range b.ChunkOffset {
		w.TryWriteUint32(o)
	}
	return w.TryError
}

// Co64 is the 64-bit chunk offset box, used once any offset exceeds 32 bits.
type Co64 struct {
	FullBox
	ChunkOffset []uint64
}

func (*Co64) Type() BoxType { return BoxType{'c', 'o', '6', '4'} }
func (b *Co64) Size() int   { return 8 + len(b.ChunkOffset)*8 }
func (b *Co64) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.ChunkOffset)))
	for _, o := range b.ChunkOffset {
		w.TryWriteUint64(o)
	}
	return w.TryError
}

/*************************** stss ****************************/

// Stss is the sync sample (random access) table: 1-based sample indices.
type Stss struct {
	FullBox
	SampleNumber []uint32
}

func (*Stss) Type() BoxType { return BoxType{'s', 't', 's', 's'} }
func (b *Stss) Size() int   { return 8 + len(b.SampleNumber)*4 }
func (b *Stss) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.SampleNumber)))
	for _, n := range b.SampleNumber {
		w.TryWriteUint32(n)
	}
	return w.TryError
}

/*************************** mvex / trex ****************************/

// Trex is the track extends box, default sample description for fragments.
type Trex struct {
	FullBox
	TrackID uint32
}

func (*Trex) Type() BoxType { return BoxType{'t', 'r', 'e', 'x'} }
func (b *Trex) Size() int   { return 24 }
func (b *Trex) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.TrackID)
	w.TryWriteUint32(1) // default_sample_description_index
	w.TryWriteUint32(0) // default_sample_duration
	w.TryWriteUint32(0) // default_sample_size
	w.TryWriteUint32(1) // default_sample_flags
	return w.TryError
}

/*************************** mfhd ****************************/

// Mfhd is the movie fragment header box.
type Mfhd struct {
	FullBox
	SequenceNumber uint32
}

func (*Mfhd) Type() BoxType { return BoxType{'m', 'f', 'h', 'd'} }
func (b *Mfhd) Size() int   { return 8 }
func (b *Mfhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.SequenceNumber)
	return w.TryError
}

/*************************** tfhd ****************************/

// tfhd flag bits.
const (
	TfhdBaseDataOffsetPresent         = 0x000001
	TfhdSampleDescriptionIndexPresent = 0x000002
	TfhdDefaultSampleDurationPresent  = 0x000008
	TfhdDefaultSampleFlagsPresent     = 0x000020
	TfhdDefaultBaseIsMoof             = 0x020000
)

// Tfhd is the track fragment header box.
type Tfhd struct {
	FullBox
	TrackID               uint32
	DefaultSampleDuration uint32
	DefaultSampleFlags    uint32
}

func (*Tfhd) Type() BoxType { return BoxType{'t', 'f', 'h', 'd'} }

func (b *Tfhd) Size() int {
	total := 4 + 4
	if b.CheckFlag(TfhdDefaultSampleDurationPresent) {
		total += 4
	}
	if b.CheckFlag(TfhdDefaultSampleFlagsPresent) {
		total += 4
	}
	return total
}

func (b *Tfhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.TrackID)
	if b.CheckFlag(TfhdDefaultSampleDurationPresent) {
		w.TryWriteUint32(b.DefaultSampleDuration)
	}
	if b.CheckFlag(TfhdDefaultSampleFlagsPresent) {
		w.TryWriteUint32(b.DefaultSampleFlags)
	}
	return w.TryError
}

/*************************** trun ****************************/

// trun flag bits.
const (
	TrunDataOffsetPresent                  = 0x000001
	TrunFirstSampleFlagsPresent            = 0x000004
	TrunSampleDurationPresent              = 0x000100
	TrunSampleSizePresent                  = 0x000200
	TrunSampleFlagsPresent                 = 0x000400
	TrunSampleCompositionTimeOffsetPresent = 0x000800
)

// TrunEntry is one sample's per-sample trun fields. This muxer always
// emits exactly one entry per trun (one sample per fragment).
type TrunEntry struct {
	SampleDuration          uint32
	SampleSize              uint32
	SampleCompositionOffset int32
}

// Trun is the track fragment run box.
type Trun struct {
	FullBox
	DataOffset       int32
	FirstSampleFlags uint32
	Entries          []TrunEntry
}

func (*Trun) Type() BoxType { return BoxType{'t', 'r', 'u', 'n'} }

func (b *Trun) Size() int {
	total := 8
	if b.CheckFlag(TrunDataOffsetPresent) {
		total += 4
	}
	if b.CheckFlag(TrunFirstSampleFlagsPresent) {
		total += 4
	}
	perEntry := 0
	if b.CheckFlag(TrunSampleDurationPresent) {
		perEntry += 4
	}
	if b.CheckFlag(TrunSampleSizePresent) {
		perEntry += 4
	}
	if b.CheckFlag(TrunSampleFlagsPresent) {
		perEntry += 4
	}
	if b.CheckFlag(TrunSampleCompositionTimeOffsetPresent) {
		perEntry += 4
	}
	return total + perEntry*len(b.Entries)
}

func (b *Trun) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.Entries)))
	if b.CheckFlag(TrunDataOffsetPresent) {
		w.TryWriteInt32(b.DataOffset)
	}
	if b.CheckFlag(TrunFirstSampleFlagsPresent) {
		w.TryWriteUint32(b.FirstSampleFlags)
	}
	for _, e := range b.Entries {
		if b.CheckFlag(TrunSampleDurationPresent) {
			w.TryWriteUint32(e.SampleDuration)
		}
		if b.CheckFlag(TrunSampleSizePresent) {
			w.TryWriteUint32(e.SampleSize)
		}
		if b.CheckFlag(TrunSampleFlagsPresent) {
			w.TryWriteUint32(0x01010000) // non-sync sample, no dependency info
		}
		if b.CheckFlag(TrunSampleCompositionTimeOffsetPresent) {
			w.TryWriteInt32(e.SampleCompositionOffset)
		}
	}
	return w.TryError
}
