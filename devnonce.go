package lorawan

import (
	"encoding/binary"
	"errors"
)

// DevNonce represents the dev-nonce used for join-request / join-accept.
type DevNonce uint16

// MarshalBinary marshals the object in binary form (little-endian).
func (n DevNonce) MarshalBinary() ([]byte, error) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(n))
	return b, nil
}

// UnmarshalBinary decodes the object from binary form (little-endian).
func (n *DevNonce) UnmarshalBinary(data []byte) error {
	if len(data) != 2 {
		return errors.New("lorawan: 2 bytes of data are expected")
	}
	*n = DevNonce(binary.LittleEndian.Uint16(data))
	return nil
}
