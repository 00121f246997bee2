package mp4mux

import "mp4mux/internal/bitreader"

// sampleKind classifies one video access unit.
type sampleKind int

const (
	sampleDefault sampleKind = iota
	sampleRandomAccess
	sampleContinuation
)

// AVC NAL unit types relevant to muxing, ITU-T H.264 Table 7-1.
const (
	avcNALTypeSPS = 7
	avcNALTypePPS = 8
	avcNALTypeIDR = 5
)

// avcFirstMbInSliceMaxPrefix bounds the leading-zero-bit count
// classifyAVCNALU is willing to read while decoding first_mb_in_slice.
// 16 prefix bits cover slices tens of thousands of macroblocks into a
// frame. A tighter cap would report first_mb_in_slice as 0 for deeper
// slices, misclassifying continuation slices as new pictures.
const avcFirstMbInSliceMaxPrefix = 16

// classifyAVCNALU inspects one AVC NAL unit against track, capturing SPS
// and PPS on first occurrence (write-once: later parameter sets of the
// same type are silently ignored). skip reports that the NAL unit
// carries no classified sample, either because it is a parameter set
// or because the track's required parameter sets have not both arrived
// yet, in which case slice data is dropped rather than muxed. isIDR is
// set directly from the NAL type, independent of kind: an IDR NAL is
// always written and always opens the keyframe gate, even when its
// first_mb_in_slice bit makes kind come out as a continuation.
func classifyAVCNALU(track *Track, nalu []byte) (kind sampleKind, isIDR bool, skip bool) {
	if len(nalu) == 0 {
		// Consecutive start codes yield an empty NAL unit; the
		// classifier must tolerate it. Treat it as a continuation
		// of whatever sample is already pending.
		return sampleContinuation, false, false
	}

	nalType := nalu[0] & 0x1f
	switch nalType {
	case avcNALTypeSPS:
		if track.SPS == nil {
			track.SPS = cloneBytes(nalu)
		}
		return 0, false, true
	case avcNALTypePPS:
		if track.PPS == nil {
			track.PPS = cloneBytes(nalu)
		}
		return 0, false, true
	}

	if !track.hasAVCParams() {
		return 0, false, true
	}

	isIDR = nalType == avcNALTypeIDR

	br := bitreader.New(nalu[1:])
	firstMbInSlice := br.UEBits(avcFirstMbInSliceMaxPrefix)
	if firstMbInSlice != 0 {
		return sampleContinuation, isIDR, false
	}
	if isIDR {
		return sampleRandomAccess, true, false
	}
	return sampleDefault, false, false
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
