package mp4mux

// HEVC NAL unit types relevant to muxing, ITU-T H.265 Table 7-1.
const (
	hevcNALTypeVPS = 32
	hevcNALTypeSPS = 33
	hevcNALTypePPS = 34

	hevcNALTypeRandomAccessMin = 16 // BLA_W_LP
	hevcNALTypeRandomAccessMax = 21 // CRA_NUT
)

// classifyHEVCNALU inspects one HEVC NAL unit against track, capturing
// VPS/SPS/PPS on first occurrence. skip reports that the NAL unit
// carries no classified sample, either because it is a parameter set or
// because the track's parameter sets have not all arrived yet.
//
// HEVC never produces sampleContinuation in this design: a multi-slice
// HEVC frame is not collapsed into one sample the way AVC continuation
// slices are.
func classifyHEVCNALU(track *Track, nalu []byte) (kind sampleKind, skip bool) {
	if len(nalu) == 0 {
		return sampleDefault, true
	}

	nalType := (nalu[0] & 0x7e) >> 1
	switch nalType {
	case hevcNALTypeVPS:
		if track.VPS == nil {
			track.VPS = cloneBytes(nalu)
		}
		return 0, true
	case hevcNALTypeSPS:
		if track.SPS == nil {
			track.SPS = cloneBytes(nalu)
		}
		return 0, true
	case hevcNALTypePPS:
		if track.PPS == nil {
			track.PPS = cloneBytes(nalu)
		}
		return 0, true
	}

	if !track.hasHEVCParams() {
		return 0, true
	}

	if nalType >= hevcNALTypeRandomAccessMin && nalType <= hevcNALTypeRandomAccessMax {
		return sampleRandomAccess, false
	}
	return sampleDefault, false
}
