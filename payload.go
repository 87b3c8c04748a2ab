package lorawan

import "encoding"

// Payload is the interface that every payload needs to implement. Unlike
// encoding.BinaryUnmarshaler, decoding needs to know the direction of the
// frame (uplink or downlink) since several MAC commands and the FOpts /
// FRMPayload encryption schemes are direction-dependent.
type Payload interface {
	encoding.BinaryMarshaler
	UnmarshalBinary(uplink bool, data []byte) error
	Clone() Payload
}

// DataPayload represents a slice of raw (application or already
// encoded/encrypted) bytes.
type DataPayload struct {
	Bytes []byte
}

// Clone returns a copy of the payload.
func (p DataPayload) Clone() Payload {
	return &p
}

// MarshalBinary marshals the object in binary form.
func (p DataPayload) MarshalBinary() ([]byte, error) {
	return p.Bytes, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *DataPayload) UnmarshalBinary(uplink bool, data []byte) error {
	p.Bytes = make([]byte, len(data))
	copy(p.Bytes, data)
	return nil
}
