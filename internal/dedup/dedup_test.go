package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	assert := require.New(t)

	a := Fingerprint([]byte{0x40, 0x01, 0x02, 0x03, 0x04})
	b := Fingerprint([]byte{0x40, 0x01, 0x02, 0x03, 0x04})
	c := Fingerprint([]byte{0x40, 0x01, 0x02, 0x03, 0x05})

	assert.Equal(a, b, "identical payloads must fingerprint identically")
	assert.NotEqual(a, c, "different payloads must not collide")
	assert.Len(a, 16)
}
