// Package keys is a façade over the session-key derivation already
// implemented in backend/joinserver/session_keys.go, plus the one key type
// that package has no concept of: the relay root WOR (Wake-on-Radio) key
// used by internal/relay to authenticate forwarded uplinks. Keeping this in
// its own package lets internal/join and internal/relay depend on key
// derivation without depending on the HTTP join-server package's handler
// types.
package keys

import (
	"crypto/aes"

	"github.com/pkg/errors"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/backend/joinserver"
)

// SessionKeys is the full 1.0/1.1 key set derived at join time.
type SessionKeys struct {
	FNwkSIntKey lorawan.AES128Key
	SNwkSIntKey lorawan.AES128Key
	NwkSEncKey  lorawan.AES128Key
	AppSKey     lorawan.AES128Key
}

// DeriveSessionKeys derives the full session key set from the device's
// NwkKey (and, for 1.1 app-key-separated activation, AppKey), following
// backend/joinserver/session_keys.go's getSKey typed-block construction.
func DeriveSessionKeys(optNeg bool, nwkKey, appKey lorawan.AES128Key, netID lorawan.NetID, joinEUI lorawan.EUI64, joinNonce lorawan.JoinNonce, devNonce lorawan.DevNonce) (SessionKeys, error) {
	var keys SessionKeys
	var err error

	keys.FNwkSIntKey, err = joinserver.GetFNwkSIntKey(optNeg, nwkKey, netID, joinEUI, joinNonce, devNonce)
	if err != nil {
		return keys, errors.Wrap(err, "derive fnwksintkey error")
	}

	if optNeg {
		keys.SNwkSIntKey, err = joinserver.GetSNwkSIntKey(optNeg, nwkKey, netID, joinEUI, joinNonce, devNonce)
		if err != nil {
			return keys, errors.Wrap(err, "derive snwksintkey error")
		}

		keys.NwkSEncKey, err = joinserver.GetNwkSEncKey(optNeg, nwkKey, netID, joinEUI, joinNonce, devNonce)
		if err != nil {
			return keys, errors.Wrap(err, "derive nwksenckey error")
		}
	} else {
		// LoRaWAN 1.0: FNwkSIntKey, SNwkSIntKey and NwkSEncKey all collapse
		// to the single NwkSKey.
		keys.SNwkSIntKey = keys.FNwkSIntKey
		keys.NwkSEncKey = keys.FNwkSIntKey
	}

	appKeyForAppSKey := nwkKey
	if optNeg {
		appKeyForAppSKey = appKey
	}
	keys.AppSKey, err = joinserver.GetAppSKey(optNeg, appKeyForAppSKey, netID, joinEUI, joinNonce, devNonce)
	if err != nil {
		return keys, errors.Wrap(err, "derive appskey error")
	}

	return keys, nil
}

// DeriveJSIntKey derives the 1.1 join-server integrity key used to MIC a
// JoinAccept when OptNeg is set.
func DeriveJSIntKey(nwkKey lorawan.AES128Key, devEUI lorawan.EUI64) (lorawan.AES128Key, error) {
	return joinserver.GetJSIntKey(nwkKey, devEUI)
}

// relayRootWORKeyType is the key-derivation typed byte for the relay root
// WOR key, chosen from the same unused-type-byte space as
// getJSKey's 0x05/0x06 (JSEncKey/JSIntKey).
const relayRootWORKeyType = 0x07

// DeriveRootWorSKey derives a relay's root Wake-on-Radio key from the
// relay device's NwkKey, following the single AES-ECB block idiom
// backend/joinserver/session_keys.go's getJSKey uses for JSIntKey/JSEncKey:
// a 16-byte block of {type, dev_eui, zero-pad} encrypted under the root key.
func DeriveRootWorSKey(nwkKey lorawan.AES128Key, devEUI lorawan.EUI64) (lorawan.AES128Key, error) {
	var key lorawan.AES128Key
	b := make([]byte, 16)
	b[0] = relayRootWORKeyType

	devB, err := devEUI.MarshalBinary()
	if err != nil {
		return key, errors.Wrap(err, "marshal deveui error")
	}
	copy(b[1:9], devB[:])

	block, err := aes.NewCipher(nwkKey[:])
	if err != nil {
		return key, errors.Wrap(err, "new cipher error")
	}
	block.Encrypt(key[:], b)

	return key, nil
}
