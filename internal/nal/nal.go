// Package nal splits an Annex-B byte stream into its constituent NAL
// units, recognizing both 3-byte (00 00 01) and 4-byte (00 00 00 01)
// start codes.
package nal

// Split returns the NAL units contained in an Annex-B buffer, each
// without its start code. A buffer lacking a leading start code is
// returned as a single NAL unit, unsplit, even if start codes appear
// later in the buffer. Consecutive start codes yield an empty slice for
// the NAL unit between them; callers must tolerate that.
//
// The resulting slices alias the input; Split never copies sample
// payloads.
func Split(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}

	first, ok := matchStartCode(data, 0)
	if !ok {
		return [][]byte{data}
	}

	var out [][]byte
	pos := first.offset + first.length
	for pos <= len(data) {
		next, found := nextStartCode(data, pos)
		if !found {
			out = append(out, data[pos:])
			break
		}
		out = append(out, data[pos:next.offset])
		pos = next.offset + next.length
	}
	return out
}

type startCode struct {
	offset int
	length int
}

// matchStartCode reports whether a start code begins at exactly offset.
func matchStartCode(data []byte, offset int) (startCode, bool) {
	if offset+4 <= len(data) &&
		data[offset] == 0 && data[offset+1] == 0 && data[offset+2] == 0 && data[offset+3] == 1 {
		return startCode{offset: offset, length: 4}, true
	}
	if offset+3 <= len(data) &&
		data[offset] == 0 && data[offset+1] == 0 && data[offset+2] == 1 {
		return startCode{offset: offset, length: 3}, true
	}
	return startCode{}, false
}

// nextStartCode finds the next start code at or after from.
func nextStartCode(data []byte, from int) (startCode, bool) {
	for i := from; i+2 < len(data); i++ {
		if sc, ok := matchStartCode(data, i); ok {
			return sc, true
		}
	}
	return startCode{}, false
}
