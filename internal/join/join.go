// Package join implements the OTAA activator: validating an over-the-air
// JoinRequest, checking the DevNonce has not been replayed, deriving
// session keys, composing the JoinAccept, and atomically replacing the
// device's session. Grounded on joriwind-loraserver/internal/uplink/join_request.go's
// "compose JoinAccept, derive keys, atomically replace session, flush
// queue" orchestration, generalized here to call the device's own root
// keys (via internal/keys, itself a façade over
// backend/joinserver/session_keys.go's derivation) directly instead of
// going through an HTTP join-server round trip.
package join

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/band"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
	"github.com/lorawan-ns/network-server/internal/keys"
	"github.com/lorawan-ns/network-server/internal/storage"
)

// DeviceKeys is the root key material for one device, looked up by DevEUI.
type DeviceKeys struct {
	DevEUI lorawan.EUI64
	NwkKey lorawan.AES128Key
	AppKey lorawan.AES128Key
}

// KeyStore resolves a device's root keys and hands out join-nonces.
type KeyStore interface {
	GetDeviceKeys(ctx context.Context, devEUI lorawan.EUI64) (DeviceKeys, error)
	NextJoinNonce(ctx context.Context, devEUI lorawan.EUI64) (lorawan.JoinNonce, error)
	IsDevNonceSeen(ctx context.Context, devEUI lorawan.EUI64, devNonce lorawan.DevNonce) (bool, error)
	RecordDevNonce(ctx context.Context, devEUI lorawan.EUI64, devNonce lorawan.DevNonce) error
}

// SessionStore is the subset of *storage.Store the activator needs.
type SessionStore interface {
	Save(ctx context.Context, session storage.DeviceSession) error
}

// Activator processes JoinRequest frames into new device sessions.
type Activator struct {
	NetID    lorawan.NetID
	JoinEUI  lorawan.EUI64
	Band     band.Band
	Keys     KeyStore
	Sessions SessionStore
}

// NewActivator builds an Activator for the given home network.
func NewActivator(netID lorawan.NetID, joinEUI lorawan.EUI64, b band.Band, keyStore KeyStore, sessions SessionStore) *Activator {
	return &Activator{NetID: netID, JoinEUI: joinEUI, Band: b, Keys: keyStore, Sessions: sessions}
}

// StorageKeyStore adapts *storage.Store to KeyStore. storage.Store's own
// GetDeviceKeys returns storage.DeviceKeys rather than this package's
// DeviceKeys (storage cannot import join: join already imports storage),
// so this adapter does the field-for-field conversion.
type StorageKeyStore struct {
	Store *storage.Store
}

// GetDeviceKeys implements KeyStore.
func (s StorageKeyStore) GetDeviceKeys(ctx context.Context, devEUI lorawan.EUI64) (DeviceKeys, error) {
	dk, err := s.Store.GetDeviceKeys(ctx, devEUI)
	if err != nil {
		return DeviceKeys{}, err
	}
	return DeviceKeys{DevEUI: dk.DevEUI, NwkKey: dk.NwkKey, AppKey: dk.AppKey}, nil
}

// NextJoinNonce implements KeyStore.
func (s StorageKeyStore) NextJoinNonce(ctx context.Context, devEUI lorawan.EUI64) (lorawan.JoinNonce, error) {
	return s.Store.NextJoinNonce(ctx, devEUI)
}

// IsDevNonceSeen implements KeyStore.
func (s StorageKeyStore) IsDevNonceSeen(ctx context.Context, devEUI lorawan.EUI64, devNonce lorawan.DevNonce) (bool, error) {
	return s.Store.IsDevNonceSeen(ctx, devEUI, devNonce)
}

// RecordDevNonce implements KeyStore.
func (s StorageKeyStore) RecordDevNonce(ctx context.Context, devEUI lorawan.EUI64, devNonce lorawan.DevNonce) error {
	return s.Store.RecordDevNonce(ctx, devEUI, devNonce)
}

// Options carries the RX/MAC-version parameters the caller chooses for one
// activation; the resulting JoinAccept (DLSettings/RXDelay) and the new
// device session both carry them.
type Options struct {
	OptNeg      bool
	RXDelay     uint8
	RX1DROffset uint8
}

// Activate validates phy (a JoinRequest PHYPayload), and if accepted:
// derives session keys, persists the new device session, records the
// DevNonce as used, and returns the JoinAccept PHYPayload to transmit.
// Replayed DevNonces and MIC failures are reported as errors without
// mutating any state.
func (a *Activator) Activate(ctx context.Context, phy lorawan.PHYPayload, opts Options) (*lorawan.PHYPayload, *storage.DeviceSession, error) {
	jrPL, ok := phy.MACPayload.(*lorawan.JoinRequestPayload)
	if !ok {
		return nil, nil, errors.Errorf("expected *lorawan.JoinRequestPayload, got %T", phy.MACPayload)
	}

	dk, err := a.Keys.GetDeviceKeys(ctx, jrPL.DevEUI)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get device keys error")
	}

	valid, err := phy.ValidateUplinkJoinMIC(dk.NwkKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "validate uplink join mic error")
	}
	if !valid {
		return nil, nil, nserrors.ErrInvalidMIC
	}

	seen, err := a.Keys.IsDevNonceSeen(ctx, jrPL.DevEUI, jrPL.DevNonce)
	if err != nil {
		return nil, nil, errors.Wrap(err, "check devnonce replay error")
	}
	if seen {
		return nil, nil, errors.Errorf("devnonce %d already used for deveui %s", jrPL.DevNonce, jrPL.DevEUI)
	}

	joinNonce, err := a.Keys.NextJoinNonce(ctx, jrPL.DevEUI)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get next join-nonce error")
	}

	devAddr, err := storage.GetRandomDevAddr(a.NetID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate devaddr error")
	}

	joinAccept, err := a.buildJoinAccept(dk, jrPL, joinNonce, devAddr, opts)
	if err != nil {
		return nil, nil, err
	}

	sessionKeys, err := keys.DeriveSessionKeys(opts.OptNeg, dk.NwkKey, dk.AppKey, a.NetID, a.JoinEUI, joinNonce, jrPL.DevNonce)
	if err != nil {
		return nil, nil, errors.Wrap(err, "derive session keys error")
	}

	macVersion := "1.0.3"
	if opts.OptNeg {
		macVersion = "1.1.0"
	}

	session := storage.DeviceSession{
		DevEUI:      jrPL.DevEUI,
		JoinEUI:     jrPL.JoinEUI,
		DevAddr:     devAddr,
		MACVersion:  macVersion,
		FNwkSIntKey: sessionKeys.FNwkSIntKey,
		SNwkSIntKey: sessionKeys.SNwkSIntKey,
		NwkSEncKey:  sessionKeys.NwkSEncKey,
		RXDelay:     opts.RXDelay,
		RX1DROffset: opts.RX1DROffset,
	}
	session.ResetToBootParameters(a.Band, 0, 0, 0, int(opts.RXDelay), int(opts.RX1DROffset),
		a.Band.GetDefaults().RX2DataRate, uint32(a.Band.GetDefaults().RX2Frequency))

	if err := a.Sessions.Save(ctx, session); err != nil {
		return nil, nil, errors.Wrap(err, "save device session error")
	}

	if err := a.Keys.RecordDevNonce(ctx, jrPL.DevEUI, jrPL.DevNonce); err != nil {
		return nil, nil, errors.Wrap(err, "record devnonce error")
	}

	log.WithFields(log.Fields{
		"dev_eui":  jrPL.DevEUI,
		"dev_addr": devAddr,
	}).Info("join: device activated")

	return joinAccept, &session, nil
}

func (a *Activator) buildJoinAccept(dk DeviceKeys, jrPL *lorawan.JoinRequestPayload, joinNonce lorawan.JoinNonce, devAddr lorawan.DevAddr, opts Options) (*lorawan.PHYPayload, error) {
	ja := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.JoinAccept,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.JoinAcceptPayload{
			JoinNonce: joinNonce,
			HomeNetID: a.NetID,
			DevAddr:   devAddr,
			DLSettings: lorawan.DLSettings{
				OptNeg:      opts.OptNeg,
				RX1DROffset: opts.RX1DROffset,
			},
			RXDelay: opts.RXDelay,
			CFList:  a.Band.GetCFList("1.0.3"),
		},
	}

	micKey := dk.NwkKey
	if opts.OptNeg {
		jsIntKey, err := keys.DeriveJSIntKey(dk.NwkKey, jrPL.DevEUI)
		if err != nil {
			return nil, errors.Wrap(err, "derive jsintkey error")
		}
		micKey = jsIntKey
	}

	if err := ja.SetDownlinkJoinMIC(lorawan.JoinRequestType, jrPL.JoinEUI, jrPL.DevNonce, micKey); err != nil {
		return nil, errors.Wrap(err, "set downlink join mic error")
	}

	if err := ja.EncryptJoinAcceptPayload(dk.NwkKey); err != nil {
		return nil, errors.Wrap(err, "encrypt join-accept error")
	}

	return &ja, nil
}
