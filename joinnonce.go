package lorawan

import "errors"

// JoinNonce represents the join-nonce (a 24 bit counter, incremented by the
// join-server for every generated join-accept).
type JoinNonce uint32

// MarshalBinary marshals the object in binary form (little-endian, 3 bytes).
func (n JoinNonce) MarshalBinary() ([]byte, error) {
	return []byte{
		byte(n),
		byte(n >> 8),
		byte(n >> 16),
	}, nil
}

// UnmarshalBinary decodes the object from binary form (little-endian, 3 bytes).
func (n *JoinNonce) UnmarshalBinary(data []byte) error {
	if len(data) != 3 {
		return errors.New("lorawan: 3 bytes of data are expected")
	}
	*n = JoinNonce(uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16)
	return nil
}

// JoinType indicates the type of join (or rejoin) request a downlink
// join-accept MIC / key derivation was computed for.
type JoinType byte

// Join and rejoin types.
const (
	JoinRequestType    JoinType = 0xff
	RejoinRequestType0 JoinType = 0x00
	RejoinRequestType1 JoinType = 0x01
	RejoinRequestType2 JoinType = 0x02
)
