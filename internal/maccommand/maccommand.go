// Package maccommand implements the MAC handler registry: one handler per
// CID, dynamically dispatched by the uplink pipeline's "extract" stage and
// queried again by the downlink planner to drain pending answers. This is
// the "dynamic dispatch via capability interfaces registered by id" pattern
// the design notes call for.
package maccommand

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/internal/storage"
)

// gpsEpoch is the GPS time origin (1980-01-06T00:00:00Z), used to compute
// DeviceTimeAnsPayload.TimeSinceGPSEpoch. Leap seconds are ignored, matching
// the teacher's own DeviceTimeAnsPayload encoding, which carries no leap
// second correction either.
var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// Handler processes one received MAC command (a *Req on uplink, or a *Ans
// paired with its pending request) against the device session, returning
// zero or more MAC commands to enqueue for the next downlink.
type Handler func(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error)

// Registry dispatches received MAC commands to their registered Handler by
// CID. An unregistered CID is logged and ignored rather than aborting the
// frame — one unknown/vendor MAC command must not drop the invoking frame.
type Registry struct {
	handlers map[lorawan.CID]Handler

	// RequiredSNRForDR resolves a DR index to the region's required SNR,
	// used to turn a LinkCheckReq's best observed SNR into a margin (§4.7,
	// scenario S4). Left nil in tests that don't exercise LinkCheckReq.
	RequiredSNRForDR func(dr int) float64
}

// NewRegistry returns a Registry pre-populated with the handlers for every
// CID spec.md §4.7 lists. Relay-control commands are deliberately absent:
// they travel over FPort 226 as application payload, not as MAC commands,
// and are handled by internal/relay instead.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[lorawan.CID]Handler)}

	r.Register(lorawan.LinkCheckReq, r.handleLinkCheckReq)
	r.Register(lorawan.LinkADRAns, handleLinkADRAns)
	r.Register(lorawan.DutyCycleAns, handleAckOnly)
	r.Register(lorawan.RXParamSetupAns, handleAckOnly)
	r.Register(lorawan.DevStatusAns, handleDevStatusAns)
	r.Register(lorawan.NewChannelAns, handleAckOnly)
	r.Register(lorawan.RXTimingSetupAns, handleAckOnly)
	r.Register(lorawan.TXParamSetupAns, handleAckOnly)
	r.Register(lorawan.DLChannelAns, handleAckOnly)
	r.Register(lorawan.ADRParamSetupAns, handleAckOnly)
	r.Register(lorawan.DeviceTimeReq, handleDeviceTimeReq)
	r.Register(lorawan.RejoinParamSetupAns, handleAckOnly)
	r.Register(lorawan.PingSlotInfoReq, handlePingSlotInfoReq)
	r.Register(lorawan.BeaconFreqAns, handleAckOnly)
	r.Register(lorawan.PingSlotChannelAns, handleAckOnly)
	r.Register(lorawan.RekeyInd, handleRekeyInd)

	return r
}

// Register binds a Handler to a CID, overwriting any previous registration
// — used by tests and by callers wiring a vendor-specific command.
func (r *Registry) Register(cid lorawan.CID, h Handler) {
	r.handlers[cid] = h
}

// Handle dispatches cmd to its registered handler. It returns
// (nil, nil) for an unregistered CID rather than an error.
func (r *Registry) Handle(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error) {
	h, ok := r.handlers[cmd.CID]
	if !ok {
		log.WithFields(log.Fields{"dev_eui": session.DevEUI, "cid": cmd.CID}).Warn("maccommand: no handler registered for cid")
		return nil, nil
	}

	out, err := h(ctx, session, cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "mac-command handler error (cid=%s)", cmd.CID)
	}
	return out, nil
}

func handleAckOnly(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error) {
	// the paired *Req was already applied to the session when it was sent
	// downlink; receiving the *Ans only confirms the device accepted it.
	return nil, nil
}

// handleLinkCheckReq answers with the margin between the best SNR observed
// on the triggering uplink and the required SNR for the device's current
// DR (spec.md §4.8 scenario S4: SNR=2.0, required SNR=-15 => margin=17).
func (r *Registry) handleLinkCheckReq(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error) {
	margin := uint8(0)
	if len(session.UplinkHistory) > 0 {
		snr := session.UplinkHistory[len(session.UplinkHistory)-1].MaxSNR
		required := 0.0
		if r.RequiredSNRForDR != nil {
			required = r.RequiredSNRForDR(session.DR)
		}
		m := snr - required
		if m > 0 {
			margin = uint8(m)
		}
	}

	return []lorawan.MACCommand{
		{
			CID: lorawan.LinkCheckAns,
			Payload: &lorawan.LinkCheckAnsPayload{
				Margin: margin,
				GwCnt:  uint8(len(session.UplinkHistory)),
			},
		},
	}, nil
}

func handleLinkADRAns(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error) {
	pl, ok := cmd.Payload.(*lorawan.LinkADRAnsPayload)
	if !ok {
		return nil, errors.New("expected *LinkADRAnsPayload")
	}
	if !pl.ChannelMaskACK || !pl.DataRateACK || !pl.PowerACK {
		log.WithFields(log.Fields{"dev_eui": session.DevEUI}).Warn("maccommand: device rejected LinkADRReq")
	}
	return nil, nil
}

func handleDevStatusAns(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error) {
	_, ok := cmd.Payload.(*lorawan.DevStatusAnsPayload)
	if !ok {
		return nil, errors.New("expected *DevStatusAnsPayload")
	}
	return nil, nil
}

func handleDeviceTimeReq(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error) {
	return []lorawan.MACCommand{
		{
			CID: lorawan.DeviceTimeAns,
			Payload: &lorawan.DeviceTimeAnsPayload{
				TimeSinceGPSEpoch: time.Since(gpsEpoch),
			},
		},
	}, nil
}

func handlePingSlotInfoReq(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error) {
	return []lorawan.MACCommand{{CID: lorawan.PingSlotInfoAns}}, nil
}

func handleRekeyInd(ctx context.Context, session *storage.DeviceSession, cmd lorawan.MACCommand) ([]lorawan.MACCommand, error) {
	pl, ok := cmd.Payload.(*lorawan.RekeyIndPayload)
	if !ok {
		return nil, errors.New("expected *RekeyIndPayload")
	}

	return []lorawan.MACCommand{
		{
			CID: lorawan.RekeyConf,
			Payload: &lorawan.RekeyConfPayload{
				ServLoRaWANVersion: pl.DevLoRaWANVersion,
			},
		},
	}, nil
}
