package lorawan

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
)

// EUI64 represents a 64 bit EUI (e.g. AppEUI / JoinEUI / DevEUI).
type EUI64 [8]byte

// String implements fmt.Stringer.
func (e EUI64) String() string {
	return hex.EncodeToString(e[:])
}

// MarshalText implements encoding.TextMarshaler.
func (e EUI64) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EUI64) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(e) {
		return fmt.Errorf("lorawan: exactly %d bytes are expected", len(e))
	}
	copy(e[:], b)
	return nil
}

// MarshalBinary marshals the object in binary form (little-endian, wire order).
func (e EUI64) MarshalBinary() ([]byte, error) {
	b := make([]byte, len(e))
	for i, v := range e {
		b[len(e)-i-1] = v
	}
	return b, nil
}

// UnmarshalBinary decodes the object from binary form (little-endian, wire order).
func (e *EUI64) UnmarshalBinary(data []byte) error {
	if len(data) != len(e) {
		return fmt.Errorf("lorawan: %d bytes of data are expected", len(e))
	}
	for i, v := range data {
		e[len(e)-i-1] = v
	}
	return nil
}

// Value implements driver.Valuer.
func (e EUI64) Value() (driver.Value, error) {
	return e[:], nil
}

// Scan implements sql.Scanner.
func (e *EUI64) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return errors.New("lorawan: []byte type expected")
	}
	if len(b) != len(e) {
		return fmt.Errorf("lorawan: []byte must have length %d", len(e))
	}
	copy(e[:], b)
	return nil
}
