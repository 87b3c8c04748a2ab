package lorawan

import (
	"errors"
	"fmt"
)

// CFListType defines the format of the CFList payload carried in a
// join-accept.
type CFListType uint8

// Supported CFList types.
const (
	CFListChannel     CFListType = 0
	CFListChannelMask CFListType = 1
)

// CFListPayload is the interface that a CFList payload (matching a
// CFListType) must implement.
type CFListPayload interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// CFListChannelPayload contains a list of up to five additional channel
// frequencies (in Hz).
type CFListChannelPayload struct {
	Channels [5]uint32 `json:"channels"`
}

// MarshalBinary marshals the object in binary form.
func (p CFListChannelPayload) MarshalBinary() ([]byte, error) {
	var out []byte
	for _, ch := range p.Channels {
		if ch%100 != 0 {
			return nil, errors.New("lorawan: frequency must be a multiple of 100")
		}
		v := ch / 100
		out = append(out, byte(v), byte(v>>8), byte(v>>16))
	}
	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *CFListChannelPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 15 {
		return errors.New("lorawan: 15 bytes of data are expected")
	}
	for i := 0; i < 5; i++ {
		b := data[i*3 : i*3+3]
		v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		p.Channels[i] = v * 100
	}
	return nil
}

// CFListChannelMaskPayload contains a list of channel-masks, used to
// (de)activate predefined channels.
type CFListChannelMaskPayload struct {
	ChannelMasks []ChMask `json:"channelMasks"`
}

// MarshalBinary marshals the object in binary form.
func (p CFListChannelMaskPayload) MarshalBinary() ([]byte, error) {
	var out []byte
	for _, mask := range p.ChannelMasks {
		b, err := mask.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	if len(out) > 15 {
		return nil, errors.New("lorawan: max 15 bytes of channel-mask data are expected")
	}
	out = append(out, make([]byte, 15-len(out))...)
	return out, nil
}

// UnmarshalBinary decodes the object from binary form.
func (p *CFListChannelMaskPayload) UnmarshalBinary(data []byte) error {
	if len(data) != 15 {
		return errors.New("lorawan: 15 bytes of data are expected")
	}

	n := len(data) / 2 // trailing (odd) byte carries no additional mask
	masks := make([]ChMask, n)
	for i := 0; i < n; i++ {
		if err := masks[i].UnmarshalBinary(data[i*2 : i*2+2]); err != nil {
			return err
		}
	}

	// strip trailing all-zero channel-masks so that encode -> decode is
	// idempotent regardless of how many masks were originally set.
	for len(masks) > 0 {
		empty := true
		for _, set := range masks[len(masks)-1] {
			if set {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		masks = masks[:len(masks)-1]
	}

	p.ChannelMasks = masks
	return nil
}

// CFList represents the optional channel-frequency list carried in a
// join-accept.
type CFList struct {
	CFListType CFListType    `json:"cfListType"`
	Payload    CFListPayload `json:"payload"`
}

// MarshalBinary marshals the object in binary form.
func (c CFList) MarshalBinary() ([]byte, error) {
	if c.Payload == nil {
		return nil, errors.New("lorawan: Payload must not be nil")
	}

	b, err := c.Payload.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if len(b) != 15 {
		return nil, errors.New("lorawan: 15 bytes of payload data are expected")
	}

	return append(b, byte(c.CFListType)), nil
}

// UnmarshalBinary decodes the object from binary form.
func (c *CFList) UnmarshalBinary(data []byte) error {
	if len(data) != 16 {
		return errors.New("lorawan: 16 bytes of data are expected")
	}

	c.CFListType = CFListType(data[15])
	switch c.CFListType {
	case CFListChannel:
		c.Payload = &CFListChannelPayload{}
	case CFListChannelMask:
		c.Payload = &CFListChannelMaskPayload{}
	default:
		return fmt.Errorf("lorawan: unknown CFListType %d", c.CFListType)
	}

	return c.Payload.UnmarshalBinary(data[0:15])
}
