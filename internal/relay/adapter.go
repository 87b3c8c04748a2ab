package relay

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
	"github.com/lorawan-ns/network-server/internal/storage"
)

// SessionStore resolves and persists the relay's own device session, which
// carries its RelayState (root WOR key, rate-limit bucket).
type SessionStore interface {
	Get(ctx context.Context, devEUI lorawan.EUI64) (storage.DeviceSession, error)
	Save(ctx context.Context, session storage.DeviceSession) error
}

// Adapter unwraps ForwardUplinkReq frames from relay devices and wraps
// frames destined for relayed end-devices in ForwardDownlinkReq, applying
// per-relay rate limiting on the uplink side.
type Adapter struct {
	Sessions SessionStore
	Limiter  *RateLimiter
}

// NewAdapter builds an Adapter with a real wall-clock rate limiter.
func NewAdapter(sessions SessionStore) *Adapter {
	return &Adapter{Sessions: sessions, Limiter: NewRateLimiter()}
}

// IsRelayed reports whether phy is an FPort-226 application frame carrying
// forwarded traffic rather than a direct end-device frame.
func IsRelayed(phy lorawan.PHYPayload) bool {
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok || mac.FPort == nil {
		return false
	}
	return *mac.FPort == FPort
}

// Unwrap decrypts and decodes a relay's FPort-226 uplink, enforces the
// relay's rate-limit bucket, and returns the inner PHYPayload for
// re-injection into the uplink pipeline along with the wor metadata the
// relay observed.
func (a *Adapter) Unwrap(ctx context.Context, relayDevEUI lorawan.EUI64, nwkSEncKey lorawan.AES128Key, phy lorawan.PHYPayload) (*lorawan.PHYPayload, Metadata, error) {
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return nil, Metadata{}, errors.New("relay: expected *lorawan.MACPayload")
	}

	if err := phy.DecryptFRMPayload(nwkSEncKey); err != nil {
		return nil, Metadata{}, errors.Wrap(err, "decrypt forwarduplinkreq payload error")
	}

	if len(mac.FRMPayload) != 1 {
		return nil, Metadata{}, errors.New("relay: expected exactly one frm-payload item")
	}
	dp, ok := mac.FRMPayload[0].(*lorawan.DataPayload)
	if !ok {
		return nil, Metadata{}, errors.New("relay: expected *lorawan.DataPayload")
	}

	session, err := a.Sessions.Get(ctx, relayDevEUI)
	if err != nil {
		return nil, Metadata{}, errors.Wrap(err, "get relay session error")
	}
	if !session.Relay.Enabled {
		return nil, Metadata{}, errors.New("relay: device is not configured as a relay")
	}

	if !a.Limiter.Allow(&session.Relay) {
		log.WithFields(log.Fields{"dev_eui": relayDevEUI}).Warn("relay: forward rate-limited")
		if err := a.Sessions.Save(ctx, session); err != nil {
			return nil, Metadata{}, errors.Wrap(err, "save relay session error")
		}
		return nil, Metadata{}, nserrors.ErrAborted
	}

	if err := a.Sessions.Save(ctx, session); err != nil {
		return nil, Metadata{}, errors.Wrap(err, "save relay session error")
	}

	var req ForwardUplinkReq
	if err := req.UnmarshalBinary(dp.Bytes); err != nil {
		return nil, Metadata{}, errors.Wrap(err, "unmarshal forwarduplinkreq error")
	}

	return &req.Payload, req.Metadata, nil
}

// Wrap encrypts and encodes inner as a ForwardDownlinkReq on FPort 226,
// addressed to the relay device's own DevAddr/FCntDown so the downlink
// planner can schedule it like any other application downlink.
func (a *Adapter) Wrap(nwkSEncKey lorawan.AES128Key, devAddr lorawan.DevAddr, fCntDown uint32, inner lorawan.PHYPayload) (*lorawan.PHYPayload, error) {
	req := ForwardDownlinkReq{Payload: inner}
	payload, err := req.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal forwarddownlinkreq error")
	}

	fPort := FPort
	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.UnconfirmedDataDown,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: devAddr,
				FCnt:    fCntDown,
			},
			FPort:      &fPort,
			FRMPayload: []lorawan.Payload{&lorawan.DataPayload{Bytes: payload}},
		},
	}

	if err := phy.EncryptFRMPayload(nwkSEncKey); err != nil {
		return nil, errors.Wrap(err, "encrypt forwarddownlinkreq payload error")
	}

	return &phy, nil
}
