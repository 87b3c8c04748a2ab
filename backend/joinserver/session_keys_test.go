package joinserver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lorawan-ns/network-server"
)

func TestSessionKeys(t *testing.T) {
	assert := assert.New(t)

	var nwkKey lorawan.AES128Key
	copy(nwkKey[:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})

	var netID lorawan.NetID
	copy(netID[:], []byte{1, 2, 3})

	var joinEUI lorawan.EUI64
	copy(joinEUI[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	var joinNonce lorawan.JoinNonce = 1
	var devNonce lorawan.DevNonce = 1

	fNwkSIntKey, err := GetFNwkSIntKey(false, nwkKey, netID, joinEUI, joinNonce, devNonce)
	assert.NoError(err)

	sNwkSIntKey, err := GetSNwkSIntKey(false, nwkKey, netID, joinEUI, joinNonce, devNonce)
	assert.NoError(err)

	nwkSEncKey, err := GetNwkSEncKey(false, nwkKey, netID, joinEUI, joinNonce, devNonce)
	assert.NoError(err)

	// LoRaWAN 1.0 collapses all three network session keys onto the same
	// derivation (optNeg false, type 0x01).
	assert.Equal(fNwkSIntKey, sNwkSIntKey)
	assert.Equal(fNwkSIntKey, nwkSEncKey)

	appSKey, err := GetAppSKey(false, nwkKey, netID, joinEUI, joinNonce, devNonce)
	assert.NoError(err)
	assert.NotEqual(fNwkSIntKey, appSKey)

	sNwkSIntKey11, err := GetSNwkSIntKey(true, nwkKey, netID, joinEUI, joinNonce, devNonce)
	assert.NoError(err)
	nwkSEncKey11, err := GetNwkSEncKey(true, nwkKey, netID, joinEUI, joinNonce, devNonce)
	assert.NoError(err)

	// LoRaWAN 1.1 derives each network session key under a distinct type
	// byte, so they must not collapse onto each other.
	assert.NotEqual(sNwkSIntKey11, nwkSEncKey11)

	var devEUI lorawan.EUI64
	copy(devEUI[:], []byte{8, 7, 6, 5, 4, 3, 2, 1})

	jsIntKey, err := GetJSIntKey(nwkKey, devEUI)
	assert.NoError(err)

	jsEncKey, err := GetJSEncKey(nwkKey, devEUI)
	assert.NoError(err)

	assert.NotEqual(jsIntKey, jsEncKey)
}
