// Package relay implements the LoRa Alliance relay adapter (§4.12): a relay
// end-device forwards frames for other devices over FPort 226, wrapping the
// inner PHYPayload in a ForwardUplinkReq (uplink) or ForwardDownlinkReq
// (downlink) application payload. The bit-packed metadata byte is marshaled
// the way mac_commands.go's ChMask/Redundancy bitfield codecs are: a fixed
// MarshalBinary/UnmarshalBinary pair over a small value type, no reflection.
package relay

import (
	"time"

	"github.com/pkg/errors"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/internal/storage"
)

// FPort is the application port relay traffic is carried on.
const FPort uint8 = 226

// snrOffset and rssiOffset are the metadata byte's signed-value encodings.
// SNR is carried as snr+20 (covers -20..+11 dB in 5 bits). RSSI is carried
// as rssiOffset-rssi (covers +15..-112 dBm in 7 bits), since relayed links
// are typically much weaker than snrOffset's symmetric encoding would allow.
const (
	snrOffset  = 20
	rssiOffset = 15
)

// aboveGHz24 is the frequency threshold above which the 3-byte frequency
// field is encoded in 200 Hz steps instead of 100 Hz (to cover the 2.4 GHz
// ISM band's wider channel spacing within the same 3 bytes).
const aboveGHz24 = 2400000000

// Metadata is the relay's ForwardUplinkReq metadata byte triplet: DR (4
// bits), SNR (5 bits, offset -20), RSSI (7 bits, offset -15) and WOR channel
// (2 bits), packed into 3 bytes with 6 reserved bits.
type Metadata struct {
	DR         uint8
	SNR        int8
	RSSI       int8
	WorChannel uint8
}

// MarshalBinary packs Metadata into its 3-byte wire form.
func (m Metadata) MarshalBinary() ([]byte, error) {
	if m.DR > 15 {
		return nil, errors.New("relay: max value of DR is 15")
	}
	if m.WorChannel > 3 {
		return nil, errors.New("relay: max value of WorChannel is 3")
	}

	snr := int(m.SNR) + snrOffset
	rssi := rssiOffset - int(m.RSSI)
	if snr < 0 || snr > 31 {
		return nil, errors.New("relay: snr out of encodable range")
	}
	if rssi < 0 || rssi > 127 {
		return nil, errors.New("relay: rssi out of encodable range")
	}

	b := make([]byte, 3)
	b[0] = (m.DR << 4) | (uint8(snr) >> 1)
	b[1] = (uint8(snr) << 7) | uint8(rssi)
	b[2] = m.WorChannel << 6
	return b, nil
}

// UnmarshalBinary decodes a 3-byte Metadata wire value.
func (m *Metadata) UnmarshalBinary(data []byte) error {
	if len(data) != 3 {
		return errors.New("relay: 3 bytes of data are expected")
	}

	m.DR = data[0] >> 4
	snr := ((data[0] & 0x0f) << 1) | (data[1] >> 7)
	rssi := data[1] & 0x7f
	m.SNR = int8(int(snr) - snrOffset)
	m.RSSI = int8(rssiOffset - int(rssi))
	m.WorChannel = data[2] >> 6

	return nil
}

// encodeFrequency packs a Hz frequency into the 3-byte wire step encoding.
func encodeFrequency(hz uint32) []byte {
	step := uint32(100)
	if hz >= aboveGHz24 {
		step = 200
	}
	v := hz / step
	return []byte{byte(v), byte(v >> 8), byte(v >> 16)}
}

// decodeFrequency reconstructs a Hz frequency from its 3-byte wire encoding.
// The encoding is ambiguous below 2.4 GHz vs above it only at the boundary;
// callers above 2.4 GHz must track that band out of band (relay deployments
// are single-band in practice).
func decodeFrequency(b []byte, above24 bool) uint32 {
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	step := uint32(100)
	if above24 {
		step = 200
	}
	return v * step
}

// ForwardUplinkReq is the FPort-226 application payload a relay sends
// uplink on behalf of a relayed end-device.
type ForwardUplinkReq struct {
	Metadata   Metadata
	Frequency  uint32 // Hz
	Above24GHz bool
	Payload    lorawan.PHYPayload
}

// MarshalBinary packs a ForwardUplinkReq: metadata(3) || freq(3) || inner PHYPayload.
func (r ForwardUplinkReq) MarshalBinary() ([]byte, error) {
	meta, err := r.Metadata.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal metadata error")
	}

	inner, err := r.Payload.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal inner phypayload error")
	}

	out := make([]byte, 0, len(meta)+3+len(inner))
	out = append(out, meta...)
	out = append(out, encodeFrequency(r.Frequency)...)
	out = append(out, inner...)
	return out, nil
}

// UnmarshalBinary decodes a ForwardUplinkReq wire payload.
func (r *ForwardUplinkReq) UnmarshalBinary(data []byte) error {
	if len(data) < 7 {
		return errors.New("relay: forwarduplinkreq payload too short")
	}

	if err := r.Metadata.UnmarshalBinary(data[0:3]); err != nil {
		return errors.Wrap(err, "unmarshal metadata error")
	}

	r.Frequency = decodeFrequency(data[3:6], r.Above24GHz)

	var inner lorawan.PHYPayload
	if err := inner.UnmarshalBinary(data[6:]); err != nil {
		return errors.Wrap(err, "unmarshal inner phypayload error")
	}
	r.Payload = inner

	return nil
}

// ForwardDownlinkReq is the FPort-226 application payload the network
// server sends downlink to wrap a frame destined for a relayed end-device.
type ForwardDownlinkReq struct {
	Payload lorawan.PHYPayload
}

// MarshalBinary packs a ForwardDownlinkReq as the raw inner PHYPayload
// bytes; the relay's own WOR schedule, not this wrapper, carries timing.
func (r ForwardDownlinkReq) MarshalBinary() ([]byte, error) {
	return r.Payload.MarshalBinary()
}

// UnmarshalBinary decodes a ForwardDownlinkReq.
func (r *ForwardDownlinkReq) UnmarshalBinary(data []byte) error {
	var inner lorawan.PHYPayload
	if err := inner.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "unmarshal inner phypayload error")
	}
	r.Payload = inner
	return nil
}

// RateLimiter enforces a relay's forwarding token bucket, refilling
// LimitReloadRate tokens/second up to LimitBucketSize capacity.
type RateLimiter struct {
	Now func() time.Time
}

// NewRateLimiter returns a RateLimiter using the real wall clock.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{Now: time.Now}
}

// Allow reports whether relay has a token available to forward one frame,
// consuming it from state and refilling state first for the elapsed time
// since its last refill.
func (rl *RateLimiter) Allow(state *storage.RelayState) bool {
	now := rl.Now()

	if state.LastRefill.IsZero() {
		state.Tokens = float64(state.LimitBucketSize)
		state.LastRefill = now
	} else if elapsed := now.Sub(state.LastRefill); elapsed > 0 {
		state.Tokens += elapsed.Seconds() * float64(state.LimitReloadRate)
		if max := float64(state.LimitBucketSize); state.Tokens > max {
			state.Tokens = max
		}
		state.LastRefill = now
	}

	if state.Tokens < 1 {
		return false
	}
	state.Tokens--
	return true
}
