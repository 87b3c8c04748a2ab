// Package downlink implements the Class-A/B/C downlink planner: RX1/RX2
// selection, MAC-answer/FOpts packing, device-queue draining, the regional
// payload-size check, and encrypt+MIC+submit to the gateway bridge.
// Grounded on joriwind-loraserver/internal/downlink/data.go's
// SendDataDown/HandlePushDataDown flow, generalized from its NwkSKey-only
// 1.0 session model to the 1.0/1.1 FNwkSIntKey/SNwkSIntKey/NwkSEncKey split
// carried by storage.DeviceSession, and on band.Band's
// GetRX1DataRateIndex/GetRX1FrequencyForUplinkFrequency for the RX1 timing
// math.
package downlink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/airtime"
	"github.com/lorawan-ns/network-server/band"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
	"github.com/lorawan-ns/network-server/internal/storage"
	"github.com/lorawan-ns/network-server/sensitivity"
)

// lnaNoiseFigure is a typical gateway front-end noise figure (dB), used only
// for the link-budget estimate logAirtime reports alongside time on air.
const lnaNoiseFigure = 6.0

// rx2Delay is added to rx1Delay to obtain the RX2 slot's delay from the
// triggering uplink, per spec.md §4.9.
const rx2Delay = time.Second

// RXMeta is the per-gateway metadata the planner chooses between for RX1
// (same gateway as the uplink).
type RXMeta struct {
	GatewayID lorawan.EUI64
	Frequency int
	Channel   int
	RSSI      int
	LoRaSNR   float64
}

// Opportunity describes one candidate downlink transmission window.
type Opportunity struct {
	Window    storage.RXWindow
	GatewayID lorawan.EUI64
	Frequency int
	DR        int
	Delay     time.Duration
}

// Plan is the fully assembled downlink: the PHYPayload ready to hand to the
// gateway bridge, plus the opportunity it was built for.
type Plan struct {
	Opportunity Opportunity
	PHYPayload  lorawan.PHYPayload
	// ConsumedQueueItemID is set when the plan drains the head of the
	// device's application downlink queue; the caller marks it pending
	// (confirmed) or removes it (unconfirmed) after a successful submit.
	ConsumedQueueItemID interface{}
}

// Submitter hands a fully built Plan to the gateway plane. internal/gwbridge
// implements this over MQTT; tests use a fake.
type Submitter interface {
	Submit(ctx context.Context, plan Plan) error
}

// MACProvider drains pending/proactive MAC commands for a device, as
// produced by internal/maccommand's handlers, in the order they should be
// packed into FOpts/FPort 0.
type MACProvider interface {
	PendingMACCommands(ctx context.Context, devEUI lorawan.EUI64) ([]lorawan.MACCommand, error)
}

// QueueProvider exposes the device's application downlink queue.
type QueueProvider interface {
	PeekDownlinkQueue(ctx context.Context, devEUI lorawan.EUI64) (*storage.QueueItem, error)
}

// Planner builds Class-A downlink responses.
type Planner struct {
	Band  band.Band
	MAC   MACProvider
	Queue QueueProvider
}

// NewPlanner builds a Planner for the given region.
func NewPlanner(b band.Band, mac MACProvider, queue QueueProvider) *Planner {
	return &Planner{Band: b, MAC: mac, Queue: queue}
}

// rx1Opportunity computes the RX1 window for an uplink received on
// upFrequency/upDR from gatewayID.
func (p *Planner) rx1Opportunity(session *storage.DeviceSession, gatewayID lorawan.EUI64, upFrequency, upDR int) (Opportunity, error) {
	freq, err := p.Band.GetRX1FrequencyForUplinkFrequency(upFrequency)
	if err != nil {
		return Opportunity{}, errors.Wrap(err, "get rx1 frequency error")
	}

	dr, err := p.Band.GetRX1DataRateIndex(upDR, int(session.RX1DROffset))
	if err != nil {
		return Opportunity{}, errors.Wrap(err, "get rx1 data-rate index error")
	}

	return Opportunity{
		Window:    storage.RX1,
		GatewayID: gatewayID,
		Frequency: freq,
		DR:        dr,
		Delay:     time.Duration(session.RXDelay) * time.Second,
	}, nil
}

func (p *Planner) rx2Opportunity(session *storage.DeviceSession, gatewayID lorawan.EUI64) Opportunity {
	delay := time.Duration(session.RXDelay)*time.Second + rx2Delay
	return Opportunity{
		Window:    storage.RX2,
		GatewayID: gatewayID,
		Frequency: int(session.RX2Frequency),
		DR:        int(session.RX2DR),
		Delay:     delay,
	}
}

// choose picks RX1 when the payload fits within its regional max-payload
// size, falling back to RX2 otherwise; spec.md §4.9 prefers RX1 unless its
// DR exceeds device capability or the payload doesn't fit.
func (p *Planner) choose(rx1, rx2 Opportunity, payloadLen int, protocolVersion, regParamRevision string) (Opportunity, error) {
	if mp, err := p.Band.GetMaxPayloadSizeForDataRateIndex(protocolVersion, regParamRevision, rx1.DR); err == nil {
		if payloadLen <= mp.N {
			return rx1, nil
		}
	}

	if mp, err := p.Band.GetMaxPayloadSizeForDataRateIndex(protocolVersion, regParamRevision, rx2.DR); err == nil {
		if payloadLen <= mp.N {
			return rx2, nil
		}
	}

	return Opportunity{}, errors.New("payload does not fit in either rx1 or rx2")
}

// snrFloor returns the standard LoRaWAN demodulation floor for a spreading
// factor, the same per-SF constant table requiredSNRForDR in cmd/ applies to
// incoming LinkCheckReq margin math.
func snrFloor(sf int) float64 {
	switch sf {
	case 12:
		return -20
	case 11:
		return -17.5
	case 10:
		return -15
	case 9:
		return -12.5
	case 8:
		return -10
	default:
		return -7.5
	}
}

// logAirtime estimates and logs a plan's time on air and receive sensitivity
// at the gateway, purely for operator visibility; enforcing regional
// duty-cycle limits from it is future work.
func logAirtime(gatewayID lorawan.EUI64, dr int, b band.Band, phy lorawan.PHYPayload) {
	dataRate, err := b.GetDataRate(dr)
	if err != nil || dataRate.Modulation != band.LoRaModulation {
		return
	}

	raw, err := phy.MarshalBinary()
	if err != nil {
		return
	}

	lowDataRateOptimization := dataRate.SpreadFactor >= 11 && dataRate.Bandwidth <= 125
	d, err := airtime.CalculateLoRaAirtime(len(raw), dataRate.SpreadFactor, dataRate.Bandwidth*1000, 8, airtime.CodingRate45, true, lowDataRateOptimization)
	if err != nil {
		return
	}

	sens := sensitivity.CalculateSensitivity(dataRate.Bandwidth*1000, float32(lnaNoiseFigure), float32(snrFloor(dataRate.SpreadFactor)))

	log.WithFields(log.Fields{
		"gateway_id":  gatewayID,
		"dr":          dr,
		"airtime":     d,
		"sensitivity": sens,
	}).Debug("downlink: estimated time on air")
}

// PlanUplinkResponse builds the Class-A response to an accepted uplink.
// ack is set when the uplink was confirmed; bestGateway/upFrequency/upDR
// describe the triggering uplink's best-SNR reception.
func (p *Planner) PlanUplinkResponse(ctx context.Context, session *storage.DeviceSession, bestGateway lorawan.EUI64, upFrequency, upDR int, ack bool, protocolVersion, regParamRevision string) (*Plan, bool, error) {
	rx1, err := p.rx1Opportunity(session, bestGateway, upFrequency, upDR)
	if err != nil {
		return nil, false, err
	}
	rx2 := p.rx2Opportunity(session, bestGateway)

	macCommands, err := p.MAC.PendingMACCommands(ctx, session.DevEUI)
	if err != nil {
		return nil, false, errors.Wrap(err, "get pending mac-commands error")
	}

	queueItem, err := p.Queue.PeekDownlinkQueue(ctx, session.DevEUI)
	if err != nil && !errors.Is(err, nserrors.ErrNotFound) {
		return nil, false, errors.Wrap(err, "peek downlink queue error")
	}
	if errors.Is(err, nserrors.ErrNotFound) {
		queueItem = nil
	}

	if !ack && len(macCommands) == 0 && queueItem == nil {
		// nothing to send and the uplink did not need an ACK.
		return nil, false, nil
	}

	macVersion := session.GetMACVersion()

	fOptsLen := 0
	for _, c := range macCommands {
		b, merr := c.MarshalBinary()
		if merr != nil {
			return nil, false, errors.Wrap(merr, "marshal mac-command error")
		}
		fOptsLen += len(b)
	}

	macPL := &lorawan.MACPayload{
		FHDR: lorawan.FHDR{
			DevAddr: session.DevAddr,
			FCtrl: lorawan.FCtrl{
				ADR: session.ADR,
				ACK: ack,
			},
			FCnt: session.NFCntDown,
		},
	}

	useEncryptedFOpts := fOptsLen > 15
	if !useEncryptedFOpts {
		macPL.FHDR.FOpts = macCommands
	}

	var payloadLen int
	var consumed interface{}

	if useEncryptedFOpts {
		// FOpts does not fit; pack on FPort 0 instead, per §4.6.
		fPort := uint8(0)
		macPL.FPort = &fPort
		for i := range macCommands {
			macPL.FRMPayload = append(macPL.FRMPayload, &macCommands[i])
		}
		payloadLen = fOptsLen
	} else if queueItem != nil {
		fPort := queueItem.FPort
		macPL.FPort = &fPort
		macPL.FRMPayload = []lorawan.Payload{&lorawan.DataPayload{Bytes: queueItem.Data}}
		macPL.FHDR.FCnt = session.AFCntDown
		payloadLen = len(queueItem.Data)
		consumed = queueItem.ID
	}

	chosen, err := p.choose(rx1, rx2, payloadLen, protocolVersion, regParamRevision)
	if err != nil {
		log.WithFields(log.Fields{"dev_eui": session.DevEUI}).Warn("downlink: payload does not fit rx1 or rx2, dropping application payload")
		macPL.FPort = nil
		macPL.FRMPayload = nil
		consumed = nil
		chosen = rx1
	}

	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.UnconfirmedDataDown,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: macPL,
	}

	if useEncryptedFOpts {
		if err := phy.EncryptFOpts(session.NwkSEncKey); err != nil {
			return nil, false, errors.Wrap(err, "encrypt fopts error")
		}
	}
	if macPL.FPort != nil && *macPL.FPort == 0 {
		if err := phy.EncryptFRMPayload(session.NwkSEncKey); err != nil {
			return nil, false, errors.Wrap(err, "encrypt frmpayload error")
		}
	}

	if err := phy.SetDownlinkDataMIC(macVersion, session.ConfFCnt, session.SNwkSIntKey); err != nil {
		return nil, false, errors.Wrap(err, "set downlink mic error")
	}

	logAirtime(chosen.GatewayID, chosen.DR, p.Band, phy)

	return &Plan{
		Opportunity:         chosen,
		PHYPayload:          phy,
		ConsumedQueueItemID: consumed,
	}, true, nil
}

// PlanClassCDownlink builds an unsolicited Class-C transmission on session's
// continuous RX2 parameters, used by the scheduler's device-queue tick
// rather than in response to an uplink. There is no RX1 opportunity to
// choose between for Class-C: the device is assumed to listen on RX2's
// frequency/DR at all times.
func (p *Planner) PlanClassCDownlink(ctx context.Context, session *storage.DeviceSession, item storage.QueueItem) (*Plan, error) {
	macVersion := session.GetMACVersion()

	macCommands, err := p.MAC.PendingMACCommands(ctx, session.DevEUI)
	if err != nil {
		return nil, errors.Wrap(err, "get pending mac-commands error")
	}

	macPL := &lorawan.MACPayload{
		FHDR: lorawan.FHDR{
			DevAddr: session.DevAddr,
			FCtrl: lorawan.FCtrl{
				ADR: session.ADR,
			},
			FCnt: session.AFCntDown,
		},
	}

	fOptsLen := 0
	for _, c := range macCommands {
		b, merr := c.MarshalBinary()
		if merr != nil {
			return nil, errors.Wrap(merr, "marshal mac-command error")
		}
		fOptsLen += len(b)
	}
	if fOptsLen <= 15 {
		macPL.FHDR.FOpts = macCommands
	}

	fPort := item.FPort
	macPL.FPort = &fPort
	macPL.FRMPayload = []lorawan.Payload{&lorawan.DataPayload{Bytes: item.Data}}

	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.UnconfirmedDataDown,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: macPL,
	}
	if item.Confirmed {
		phy.MHDR.MType = lorawan.ConfirmedDataDown
	}

	if fOptsLen > 15 {
		if err := phy.EncryptFOpts(session.NwkSEncKey); err != nil {
			return nil, errors.Wrap(err, "encrypt fopts error")
		}
	}
	if err := phy.EncryptFRMPayload(session.NwkSEncKey); err != nil {
		return nil, errors.Wrap(err, "encrypt frmpayload error")
	}
	if err := phy.SetDownlinkDataMIC(macVersion, session.ConfFCnt, session.SNwkSIntKey); err != nil {
		return nil, errors.Wrap(err, "set downlink mic error")
	}

	logAirtime(session.LastGatewayID, int(session.RX2DR), p.Band, phy)

	return &Plan{
		Opportunity: Opportunity{
			Window:    storage.RX2,
			GatewayID: session.LastGatewayID,
			Frequency: session.RX2Frequency,
			DR:        int(session.RX2DR),
		},
		PHYPayload:          phy,
		ConsumedQueueItemID: item.ID,
	}, nil
}
