package keys

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorawan-ns/network-server"
)

func TestDeriveSessionKeys10(t *testing.T) {
	assert := require.New(t)

	var nwkKey lorawan.AES128Key
	copy(nwkKey[:], []byte{0x2b, 0x7e, 0x15, 0x16, 0x28, 0xae, 0xd2, 0xa6, 0xab, 0xf7, 0x15, 0x88, 0x09, 0xcf, 0x4f, 0x3c})

	netID := lorawan.NetID{1, 2, 3}
	joinEUI := lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}

	k, err := DeriveSessionKeys(false, nwkKey, lorawan.AES128Key{}, netID, joinEUI, lorawan.JoinNonce(1), lorawan.DevNonce(1))
	assert.NoError(err)

	// 1.0: all three network keys collapse to NwkSKey (same derivation
	// input across FNwkSIntKey/SNwkSIntKey/NwkSEncKey per spec.md's key
	// table), AppSKey differs by its type byte.
	assert.Equal(k.FNwkSIntKey, k.SNwkSIntKey)
	assert.Equal(k.FNwkSIntKey, k.NwkSEncKey)
	assert.NotEqual(k.FNwkSIntKey, k.AppSKey)
}

func TestDeriveRootWorSKeyIsDeterministic(t *testing.T) {
	assert := require.New(t)

	var nwkKey lorawan.AES128Key
	copy(nwkKey[:], []byte{0x2b, 0x7e, 0x15, 0x16, 0x28, 0xae, 0xd2, 0xa6, 0xab, 0xf7, 0x15, 0x88, 0x09, 0xcf, 0x4f, 0x3c})
	devEUI := lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}

	k1, err := DeriveRootWorSKey(nwkKey, devEUI)
	assert.NoError(err)
	k2, err := DeriveRootWorSKey(nwkKey, devEUI)
	assert.NoError(err)
	assert.Equal(k1, k2)

	other := lorawan.EUI64{8, 7, 6, 5, 4, 3, 2, 1}
	k3, err := DeriveRootWorSKey(nwkKey, other)
	assert.NoError(err)
	assert.NotEqual(k1, k3)
}
