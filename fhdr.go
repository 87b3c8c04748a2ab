package lorawan

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// DevAddr represents the device address. On the wire it is encoded
// little-endian; in text (and in the struct literal order used throughout
// this package) it is big-endian.
type DevAddr [4]byte

// nwkIDBitLen returns the number of NwkID bits carried by a DevAddr for the
// given NetID type (6, 6, 9, 11, 12, 13, 15 and 17 for types 0-7). For
// types 3-7 this is fewer bits than NetID.ID() holds; the DevAddr carries
// the least-significant bits of the NetID ID.
func nwkIDBitLen(typ int) int {
	switch typ {
	case 0, 1:
		return 6
	case 2:
		return 9
	default:
		return [...]int{11, 12, 13, 15, 17}[typ-3]
	}
}

// NetIDType returns the NetID type that was used to construct the address
// prefix of this DevAddr.
func (a DevAddr) NetIDType() int {
	switch {
	case a[0]&0x80 == 0x00:
		return 0
	case a[0]&0xc0 == 0x80:
		return 1
	case a[0]&0xe0 == 0xc0:
		return 2
	case a[0]&0xf0 == 0xe0:
		return 3
	case a[0]&0xf8 == 0xf0:
		return 4
	case a[0]&0xfc == 0xf8:
		return 5
	case a[0]&0xfe == 0xfc:
		return 6
	default:
		return 7
	}
}

// NwkID returns the NwkID bits of the DevAddr (the bits following the
// NetID-type prefix), sized as the minimal number of bytes needed.
func (a DevAddr) NwkID() []byte {
	typ := a.NetIDType()
	prefixLen := typ + 1
	bitLen := nwkIDBitLen(typ)

	val := binary.BigEndian.Uint32(a[:])
	shift := 32 - prefixLen - bitLen
	id := (val >> uint(shift)) & ((1 << uint(bitLen)) - 1)

	return uintToMinBytes(id, bitLen)
}

// uintToMinBytes returns the big-endian encoding of v in the minimal number
// of bytes needed to hold bitLen bits.
func uintToMinBytes(v uint32, bitLen int) []byte {
	bLen := bitLen / 8
	if bitLen%8 != 0 {
		bLen++
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b[4-bLen:]
}

// IsNetID returns if the DevAddr was prefixed with the given NetID.
func (a DevAddr) IsNetID(netID NetID) bool {
	if a.NetIDType() != netID.Type() {
		return false
	}

	prefixed := a
	prefixed.SetAddrPrefix(netID)
	nwkID := a.NwkID()
	id := prefixed.NwkID()

	if len(nwkID) != len(id) {
		return false
	}
	for i := range nwkID {
		if nwkID[i] != id[i] {
			return false
		}
	}
	return true
}

// SetAddrPrefix sets the address prefix for the given NetID, leaving the
// remaining (non-prefix, non-NwkID) bits of the DevAddr untouched.
func (a *DevAddr) SetAddrPrefix(netID NetID) {
	typ := netID.Type()
	prefixLen := typ + 1
	bitLen := nwkIDBitLen(typ)

	pattern := uint32((1<<uint(typ))-1) << 1

	id := netID.ID()
	var idVal uint32
	for _, b := range id {
		idVal = idVal<<8 | uint32(b)
	}
	idVal &= (1 << uint(bitLen)) - 1

	full := binary.BigEndian.Uint32(a[:])
	topBits := prefixLen + bitLen
	mask := uint32(0xFFFFFFFF)
	if topBits < 32 {
		mask = mask >> uint(topBits)
	} else {
		mask = 0
	}

	newTop := (pattern << uint(32-prefixLen)) | (idVal << uint(32-prefixLen-bitLen))
	full = (full & mask) | newTop

	binary.BigEndian.PutUint32(a[:], full)
}

// String implements fmt.Stringer.
func (a DevAddr) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a DevAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *DevAddr) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(a) {
		return fmt.Errorf("lorawan: exactly %d bytes are expected", len(a))
	}
	copy(a[:], b)
	return nil
}

// MarshalBinary marshals the object in binary form (little-endian, wire
// order).
func (a DevAddr) MarshalBinary() ([]byte, error) {
	b := make([]byte, len(a))
	for i, v := range a {
		b[len(a)-i-1] = v
	}
	return b, nil
}

// UnmarshalBinary decodes the object from binary form (little-endian, wire
// order).
func (a *DevAddr) UnmarshalBinary(data []byte) error {
	if len(data) != len(a) {
		return fmt.Errorf("lorawan: %d bytes of data are expected", len(a))
	}
	for i, v := range data {
		a[len(a)-i-1] = v
	}
	return nil
}

// Value implements driver.Valuer.
func (a DevAddr) Value() (driver.Value, error) {
	return a[:], nil
}

// Scan implements sql.Scanner.
func (a *DevAddr) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return errors.New("lorawan: []byte type expected")
	}
	if len(b) != len(a) {
		return fmt.Errorf("lorawan: []byte must have length %d", len(a))
	}
	copy(a[:], b)
	return nil
}

// FCtrl represents the frame control field. ClassB and FPending share the
// same wire bit: a device sets ClassB on uplink, a network server sets
// FPending on downlink; on decode both fields are populated from that bit
// since the direction is already known to the caller from context, not from
// the byte itself.
type FCtrl struct {
	ADR       bool
	ADRACKReq bool
	ACK       bool
	FPending  bool // downlink only
	ClassB    bool // uplink only
	fOptsLen  uint8
}

// MarshalBinary marshals the object in binary form.
func (c FCtrl) MarshalBinary() ([]byte, error) {
	if c.fOptsLen > 15 {
		return nil, errors.New("lorawan: max value of FOptsLen is 15")
	}

	b := c.fOptsLen & 0x0f
	if c.ADR {
		b |= 1 << 7
	}
	if c.ADRACKReq {
		b |= 1 << 6
	}
	if c.ACK {
		b |= 1 << 5
	}
	if c.FPending || c.ClassB {
		b |= 1 << 4
	}

	return []byte{b}, nil
}

// UnmarshalBinary decodes the object from binary form.
func (c *FCtrl) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return errors.New("lorawan: 1 byte of data is expected")
	}

	c.ADR = data[0]&(1<<7) != 0
	c.ADRACKReq = data[0]&(1<<6) != 0
	c.ACK = data[0]&(1<<5) != 0
	c.FPending = data[0]&(1<<4) != 0
	c.ClassB = data[0]&(1<<4) != 0
	c.fOptsLen = data[0] & 0x0f

	return nil
}

// FHDR represents the frame header.
type FHDR struct {
	DevAddr DevAddr
	FCtrl   FCtrl
	FCnt    uint32   // only the 16 LSB are transmitted on the wire
	FOpts   []Payload // max. number of allowed bytes is 15
}

// MarshalBinary marshals the object in binary form.
func (h FHDR) MarshalBinary() ([]byte, error) {
	devAddrB, err := h.DevAddr.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var foptsB []byte
	for _, o := range h.FOpts {
		b, err := o.MarshalBinary()
		if err != nil {
			return nil, err
		}
		foptsB = append(foptsB, b...)
	}
	if len(foptsB) > 15 {
		return nil, errors.New("lorawan: max number of FOpts bytes is 15")
	}

	fctrl := h.FCtrl
	fctrl.fOptsLen = uint8(len(foptsB))
	fctrlB, err := fctrl.MarshalBinary()
	if err != nil {
		return nil, err
	}

	fcntB := make([]byte, 2)
	binary.LittleEndian.PutUint16(fcntB, uint16(h.FCnt))

	out := append([]byte{}, devAddrB...)
	out = append(out, fctrlB...)
	out = append(out, fcntB...)
	out = append(out, foptsB...)

	return out, nil
}

// UnmarshalBinary decodes the object from binary form. Only the minimal
// number of bytes (7 + FOptsLen) is consumed; trailing bytes (FPort,
// FRMPayload) are left for the caller.
func (h *FHDR) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) < 7 {
		return errors.New("lorawan: at least 7 bytes needed to decode FHDR")
	}

	if err := h.DevAddr.UnmarshalBinary(data[0:4]); err != nil {
		return err
	}
	if err := h.FCtrl.UnmarshalBinary(data[4:5]); err != nil {
		return err
	}

	fOptsLen := int(h.FCtrl.fOptsLen)
	if len(data) < 7+fOptsLen {
		return errors.New("lorawan: not enough bytes to decode FHDR")
	}

	h.FCnt = uint32(binary.LittleEndian.Uint16(data[5:7]))

	if fOptsLen > 0 {
		b := make([]byte, fOptsLen)
		copy(b, data[7:7+fOptsLen])
		h.FOpts = []Payload{&DataPayload{Bytes: b}}
	} else {
		h.FOpts = nil
	}

	return nil
}
