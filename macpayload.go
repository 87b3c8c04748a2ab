package lorawan

import "errors"

// MACPayload represents the MAC payload.
type MACPayload struct {
	FHDR       FHDR
	FPort      *uint8
	FRMPayload []Payload
}

// Clone returns a copy of the payload.
func (p MACPayload) Clone() Payload {
	return &p
}

// MarshalBinary marshals the object in binary form.
func (p MACPayload) MarshalBinary() ([]byte, error) {
	if p.FPort != nil && *p.FPort != 0 {
		for _, pl := range p.FRMPayload {
			if _, ok := pl.(*MACCommand); ok {
				return nil, errors.New("lorawan: a MAC command is only allowed when FPort=0")
			}
		}
	}

	if p.FPort == nil && len(p.FRMPayload) != 0 {
		return nil, errors.New("lorawan: FPort must be set when FRMPayload is not empty")
	}

	if p.FPort != nil && *p.FPort == 0 && len(p.FHDR.FOpts) != 0 {
		return nil, errors.New("lorawan: FPort must not be 0 when FOpts are set")
	}

	out, err := p.FHDR.MarshalBinary()
	if err != nil {
		return nil, err
	}

	if p.FPort != nil {
		out = append(out, *p.FPort)
	}

	plB, err := p.marshalPayload()
	if err != nil {
		return nil, err
	}
	out = append(out, plB...)

	return out, nil
}

// marshalPayload marshals the FRMPayload items (application bytes, or MAC
// commands when FPort=0) without the FHDR/FPort prefix.
func (p MACPayload) marshalPayload() ([]byte, error) {
	var b []byte
	for _, pl := range p.FRMPayload {
		pb, err := pl.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = append(b, pb...)
	}
	return b, nil
}

// UnmarshalBinary decodes the object from binary form. FRMPayload is always
// stored as a single raw DataPayload; callers decrypt (FPort>=1) or decode
// into MAC commands (FPort=0) explicitly afterwards.
func (p *MACPayload) UnmarshalBinary(uplink bool, data []byte) error {
	if err := p.FHDR.UnmarshalBinary(uplink, data); err != nil {
		return err
	}

	n := 7 + len(p.FHDR.FOpts)
	if len(p.FHDR.FOpts) == 1 {
		if dp, ok := p.FHDR.FOpts[0].(*DataPayload); ok {
			n = 7 + len(dp.Bytes)
		}
	}
	rest := data[n:]

	if len(rest) == 0 {
		p.FPort = nil
		p.FRMPayload = nil
		return nil
	}

	fPort := rest[0]
	p.FPort = &fPort

	if len(rest) > 1 {
		b := make([]byte, len(rest)-1)
		copy(b, rest[1:])
		p.FRMPayload = []Payload{&DataPayload{Bytes: b}}
	} else {
		p.FRMPayload = nil
	}

	return nil
}
