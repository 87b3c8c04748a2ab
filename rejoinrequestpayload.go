package lorawan

import (
	"encoding/binary"
	"errors"
)

// RejoinRequestType02Payload represents the rejoin-request type 0 and 2
// payload.
type RejoinRequestType02Payload struct {
	RejoinType JoinType `json:"rejoinType"`
	NetID      NetID    `json:"netID"`
	DevEUI     EUI64    `json:"devEUI"`
	RJCount0   uint16   `json:"rjCount0"`
}

// Clone returns a copy of the payload.
func (p RejoinRequestType02Payload) Clone() Payload {
	return &p
}

// MarshalBinary marshals the object in binary form.
func (p RejoinRequestType02Payload) MarshalBinary() ([]byte, error) {
	if p.RejoinType != RejoinRequestType0 && p.RejoinType != RejoinRequestType2 {
		return nil, errors.New("lorawan: RejoinType must be 0 or 2")
	}

	out := []byte{byte(p.RejoinType)}

	b, err := p.NetID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	b, err = p.DevEUI.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	rjB := make([]byte, 2)
	binary.LittleEndian.PutUint16(rjB, p.RJCount0)
	out = append(out, rjB...)

	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RejoinRequestType02Payload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 14 {
		return errors.New("lorawan: 14 bytes of data are expected")
	}

	p.RejoinType = JoinType(data[0])
	if err := p.NetID.UnmarshalBinary(data[1:4]); err != nil {
		return err
	}
	if err := p.DevEUI.UnmarshalBinary(data[4:12]); err != nil {
		return err
	}
	p.RJCount0 = binary.LittleEndian.Uint16(data[12:14])

	return nil
}

// RejoinRequestType1Payload represents the rejoin-request type 1 payload.
type RejoinRequestType1Payload struct {
	RejoinType JoinType `json:"rejoinType"`
	JoinEUI    EUI64    `json:"joinEUI"`
	DevEUI     EUI64    `json:"devEUI"`
	RJCount1   uint16   `json:"rjCount1"`
}

// Clone returns a copy of the payload.
func (p RejoinRequestType1Payload) Clone() Payload {
	return &p
}

// MarshalBinary marshals the object in binary form.
func (p RejoinRequestType1Payload) MarshalBinary() ([]byte, error) {
	if p.RejoinType != RejoinRequestType1 {
		return nil, errors.New("lorawan: RejoinType must be 1")
	}

	out := []byte{byte(p.RejoinType)}

	b, err := p.JoinEUI.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	b, err = p.DevEUI.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, b...)

	rjB := make([]byte, 2)
	binary.LittleEndian.PutUint16(rjB, p.RJCount1)
	out = append(out, rjB...)

	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *RejoinRequestType1Payload) UnmarshalBinary(uplink bool, data []byte) error {
	if len(data) != 19 {
		return errors.New("lorawan: 19 bytes of data are expected")
	}

	p.RejoinType = JoinType(data[0])
	if err := p.JoinEUI.UnmarshalBinary(data[1:9]); err != nil {
		return err
	}
	if err := p.DevEUI.UnmarshalBinary(data[9:17]); err != nil {
		return err
	}
	p.RJCount1 = binary.LittleEndian.Uint16(data[17:19])

	return nil
}
