// Package uplink implements the ten-stage uplink pipeline: classify, locate
// candidate sessions, reconstruct the 32-bit frame counter, verify the MIC,
// decide accept/replay, decrypt, extract MAC commands and application
// payload, append history, emit events and dispatch to the MAC-command
// registry / join / relay handlers.
package uplink

import "github.com/lorawan-ns/network-server/band"

// maxFCntGapDefault is used when the region's band.Defaults() does not
// override it; 16384 mirrors the teacher's region table default.
const maxFCntGapDefault = 16384

// ValidateAndGetFullFCntUp reconstructs the full 32-bit uplink frame-counter
// from the 16 least-significant bits carried on the wire (FHDR.FCnt) and the
// session's last known full counter, rejecting counters further away than
// the region's allowed rollover gap (guards against a stale/replayed frame
// wrapping into a plausible-looking small counter).
func ValidateAndGetFullFCntUp(b band.Band, storedFCntUp uint32, wireFCnt uint32) (uint32, bool) {
	gap := uint32(uint16(wireFCnt) - uint16(storedFCntUp%65536))

	maxGap := uint32(maxFCntGapDefault)
	if b != nil {
		if d := b.GetDefaults().MaxFCntGap; d != 0 {
			maxGap = d
		}
	}

	if gap < maxGap {
		return storedFCntUp + gap, true
	}
	return 0, false
}
