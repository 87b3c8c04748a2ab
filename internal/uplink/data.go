package uplink

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/band"
	"github.com/lorawan-ns/network-server/internal/adr"
	"github.com/lorawan-ns/network-server/internal/dedup"
	"github.com/lorawan-ns/network-server/internal/downlink"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
	"github.com/lorawan-ns/network-server/internal/join"
	"github.com/lorawan-ns/network-server/internal/maccommand"
	"github.com/lorawan-ns/network-server/internal/metrics"
	"github.com/lorawan-ns/network-server/internal/relay"
	"github.com/lorawan-ns/network-server/internal/storage"
)

// SessionStore is the subset of *storage.Store the uplink pipeline drives.
type SessionStore interface {
	GetDeviceSessionsForDevAddr(ctx context.Context, devAddr lorawan.DevAddr) ([]storage.DeviceSession, error)
	Save(ctx context.Context, s storage.DeviceSession) error
	Lock(ctx context.Context, devEUI lorawan.EUI64) error
	Unlock(ctx context.Context, devEUI lorawan.EUI64) error
	QueueMACCommand(ctx context.Context, devEUI lorawan.EUI64, cmd lorawan.MACCommand) error
}

// Submitter hands an assembled downlink Plan to the gateway plane.
type Submitter interface {
	Submit(ctx context.Context, plan downlink.Plan) error
}

// Pipeline wires C5 (dedup) output into C6's classify/locate/reconstruct/
// verify/decide/decrypt/extract/history/emit/dispatch stages, the C11 join
// activator, the C7 MAC registry, the C8 ADR engine, the C9 downlink
// planner and the C12 relay adapter. Grounded on
// joriwind-loraserver/internal/uplink/join_request.go's
// collect -> validate -> derive -> save -> respond shape, generalized to
// the full data-frame path with a []func(*context) error task list.
type Pipeline struct {
	Band      band.Band
	Sessions  SessionStore
	MAC       *maccommand.Registry
	ADR       *adr.Registry
	Planner   *downlink.Planner
	Join      *join.Activator
	Relay     *relay.Adapter
	Submitter Submitter

	ProtocolVersion    string
	RegParamsRevision  string
	RequiredSNRForDR   func(dr int) float64
	InstallationMargin float64
}

// dataContext carries one accepted data frame through the pipeline's task
// list, mirroring backend/joinserver's *context task-threading pattern.
type dataContext struct {
	ctx context.Context
	p   *Pipeline

	frame   dedup.Frame
	phy     lorawan.PHYPayload
	devAddr lorawan.DevAddr

	session    storage.DeviceSession
	fullFCntUp uint32
	ack        bool

	bestGateway lorawan.EUI64
	upFrequency int
	upDR        int
	maxSNR      float64
}

var dataTasks = []func(*dataContext) error{
	(*dataContext).unmarshalFrame,
	(*dataContext).locateSession,
	(*dataContext).lockSession,
	(*dataContext).decryptAndExtract,
	(*dataContext).runADR,
	(*dataContext).appendHistory,
	(*dataContext).saveSession,
	(*dataContext).respond,
}

// HandleDataFrame runs frame (already deduplicated by C5) through the full
// C6-C9 pipeline: MIC verification and FCnt reconstruction happen inside
// locateSession, so an unrecognized or replayed frame returns
// nserrors.ErrInvalidMIC / nserrors.ErrAlreadySeen without side effects.
func (p *Pipeline) HandleDataFrame(ctx context.Context, frame dedup.Frame) error {
	dc := &dataContext{ctx: ctx, p: p, frame: frame}

	for _, task := range dataTasks {
		if err := task(dc); err != nil {
			if dc.session.DevEUI != (lorawan.EUI64{}) {
				p.Sessions.Unlock(ctx, dc.session.DevEUI)
			}
			metrics.UplinksDropped.WithLabelValues(dropReason(err)).Inc()
			return err
		}
	}

	return p.Sessions.Unlock(ctx, dc.session.DevEUI)
}

func (dc *dataContext) unmarshalFrame() error {
	if err := dc.phy.UnmarshalBinary(dc.frame.PHYPayload); err != nil {
		return errors.Wrap(nserrors.ErrInvalidFrame, err.Error())
	}

	macPL, ok := dc.phy.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return errors.Wrap(nserrors.ErrInvalidFrame, "expected *lorawan.MACPayload")
	}
	dc.devAddr = macPL.FHDR.DevAddr
	dc.ack = dc.phy.MHDR.MType == lorawan.ConfirmedDataUp

	dc.bestGateway, dc.upFrequency, dc.upDR, dc.maxSNR = bestReception(dc.frame.RXInfoSet)

	return nil
}

// locateSession walks every session currently advertising devAddr,
// reconstructing each candidate's full FCnt and validating the MIC against
// it; the first candidate whose MIC validates wins, per §4.3/§4.6.
func (dc *dataContext) locateSession() error {
	candidates, err := dc.p.Sessions.GetDeviceSessionsForDevAddr(dc.ctx, dc.devAddr)
	if err != nil {
		return errors.Wrap(err, "get device-sessions for devaddr error")
	}

	macPL := dc.phy.MACPayload.(*lorawan.MACPayload)
	txCh, _ := dc.p.Band.GetUplinkChannelIndex(dc.upFrequency, true)

	for _, candidate := range candidates {
		fullFCnt, ok := ValidateAndGetFullFCntUp(dc.p.Band, candidate.FCntUp, macPL.FHDR.FCnt)
		if !ok && !candidate.SkipFCntValidation {
			continue
		}
		if !ok {
			fullFCnt = macPL.FHDR.FCnt
		}

		valid, err := dc.phy.ValidateUplinkDataMIC(candidate.GetMACVersion(), candidate.ConfFCnt, uint8(dc.upDR), uint8(txCh), candidate.FNwkSIntKey, candidate.SNwkSIntKey)
		if err != nil || !valid {
			continue
		}

		if fullFCnt < candidate.FCntUp && !candidate.SkipFCntValidation {
			return nserrors.ErrAlreadySeen
		}

		dc.session = candidate
		dc.fullFCntUp = fullFCnt
		return nil
	}

	return nserrors.ErrInvalidMIC
}

func (dc *dataContext) lockSession() error {
	return dc.p.Sessions.Lock(dc.ctx, dc.session.DevEUI)
}

// decryptAndExtract decodes FOpts/FPort-0 MAC commands and dispatches each
// to the MAC handler registry, queuing any produced answers for the next
// downlink. Application payload (FPort >= 1) is left encrypted: AppSKey is
// held by the application server, not the network server.
func (dc *dataContext) decryptAndExtract() error {
	macPL := dc.phy.MACPayload.(*lorawan.MACPayload)

	if dc.session.GetMACVersion() == lorawan.LoRaWAN1_1 && len(macPL.FHDR.FOpts) > 0 {
		if err := dc.phy.DecryptFOpts(dc.session.NwkSEncKey); err != nil {
			return errors.Wrap(err, "decrypt fopts error")
		}
	}
	if err := dc.phy.DecodeFOptsToMACCommands(); err != nil {
		return errors.Wrap(err, "decode fopts error")
	}

	if macPL.FPort != nil && *macPL.FPort == 0 {
		if err := dc.phy.DecryptFRMPayload(dc.session.NwkSEncKey); err != nil {
			return errors.Wrap(err, "decrypt frmpayload error")
		}
	} else if relay.IsRelayed(dc.phy) && dc.p.Relay != nil {
		if err := dc.unwrapRelayedFrame(); err != nil {
			return err
		}
	}

	var commands []lorawan.MACCommand
	for _, pl := range macPL.FHDR.FOpts {
		if cmd, ok := pl.(*lorawan.MACCommand); ok {
			commands = append(commands, *cmd)
		}
	}
	if macPL.FPort != nil && *macPL.FPort == 0 {
		for _, pl := range macPL.FRMPayload {
			if cmd, ok := pl.(*lorawan.MACCommand); ok {
				commands = append(commands, *cmd)
			}
		}
	}

	for _, cmd := range commands {
		answers, err := dc.p.MAC.Handle(dc.ctx, &dc.session, cmd)
		if err != nil {
			log.WithFields(log.Fields{"dev_eui": dc.session.DevEUI, "cid": cmd.CID}).Warn("uplink: mac-command handler error")
			continue
		}
		for _, ans := range answers {
			if err := dc.p.Sessions.QueueMACCommand(dc.ctx, dc.session.DevEUI, ans); err != nil {
				return errors.Wrap(err, "queue mac-command error")
			}
		}
	}

	return nil
}

// unwrapRelayedFrame decodes a ForwardUplinkReq carried in an FPort-226
// application frame and re-dispatches the inner PHYPayload through the
// pipeline as if it had been received directly, reusing the relay's own
// RXInfoSet as the best available stand-in for the forwarded end-device's
// reception quality. The relay's own uplink still runs the remaining
// pipeline stages (history, ADR, response) for its own session.
func (dc *dataContext) unwrapRelayedFrame() error {
	inner, _, err := dc.p.Relay.Unwrap(dc.ctx, dc.session.DevEUI, dc.session.NwkSEncKey, dc.phy)
	if err != nil {
		if errors.Is(err, nserrors.ErrAborted) {
			log.WithField("dev_eui", dc.session.DevEUI).Warn("uplink: relay forward rate-limited")
			return nil
		}
		return errors.Wrap(err, "unwrap relayed frame error")
	}

	innerBytes, err := inner.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal relayed phypayload error")
	}

	metrics.RelayFramesForwarded.Inc()
	if err := dc.p.HandleFrame(dc.ctx, dedup.Frame{PHYPayload: innerBytes, RXInfoSet: dc.frame.RXInfoSet}, join.Options{RXDelay: 5}); err != nil {
		log.WithFields(log.Fields{"dev_eui": dc.session.DevEUI}).WithError(err).Warn("uplink: relayed frame processing error")
	}

	return nil
}

// runADR re-derives DR/TXPowerIndex/NbTrans when the frame's ADR bit is
// set, queuing a LinkADRReq when the engine's answer differs from the
// session's current parameters.
func (dc *dataContext) runADR() error {
	macPL := dc.phy.MACPayload.(*lorawan.MACPayload)
	if !macPL.FHDR.FCtrl.ADR || dc.p.ADR == nil {
		return nil
	}

	var requiredSNR float64
	if dc.p.RequiredSNRForDR != nil {
		requiredSNR = dc.p.RequiredSNRForDR(dc.session.DR)
	}

	macVersion := "1.0"
	if dc.session.GetMACVersion() == lorawan.LoRaWAN1_1 {
		macVersion = "1.1"
	}

	req := adr.Request{
		MACVersion:         macVersion,
		DR:                 dc.session.DR,
		TXPowerIndex:       dc.session.TXPowerIndex,
		NbTrans:            int(dc.session.NbTrans),
		MaxTXPowerIndex:    dc.session.MaxSupportedTXPowerIndex,
		MinTXPowerIndex:    dc.session.MinSupportedTXPowerIndex,
		MinDR:              0,
		MaxDR:              15,
		RequiredSNRForDR:   requiredSNR,
		InstallationMargin: dc.p.InstallationMargin,
	}
	for _, h := range dc.session.UplinkHistory {
		req.UplinkHistory = append(req.UplinkHistory, adr.UplinkHistoryEntry{FCnt: h.FCnt, MaxSNR: h.MaxSNR})
	}

	resp := dc.p.ADR.Run("default", req)
	if resp.DR == dc.session.DR && resp.TXPowerIndex == dc.session.TXPowerIndex && resp.NbTrans == int(dc.session.NbTrans) {
		return nil
	}

	dc.session.DR = resp.DR
	dc.session.TXPowerIndex = resp.TXPowerIndex
	dc.session.NbTrans = uint8(resp.NbTrans)

	chMask := lorawan.ChMask{}
	for i, ch := range dc.session.EnabledUplinkChannels {
		if i < len(chMask) {
			chMask[ch] = true
		}
	}

	return dc.p.Sessions.QueueMACCommand(dc.ctx, dc.session.DevEUI, lorawan.MACCommand{
		CID: lorawan.LinkADRReq,
		Payload: &lorawan.LinkADRReqPayload{
			DataRate:   uint8(resp.DR),
			TXPower:    uint8(resp.TXPowerIndex),
			ChMask:     chMask,
			Redundancy: lorawan.Redundancy{NbRep: uint8(resp.NbTrans)},
		},
	})
}

func (dc *dataContext) appendHistory() error {
	dc.session.AppendUplinkHistory(storage.UplinkHistory{
		FCnt:         dc.fullFCntUp,
		MaxSNR:       dc.maxSNR,
		TXPowerIndex: dc.session.TXPowerIndex,
		GatewayCount: len(dc.frame.RXInfoSet),
	})
	dc.session.FCntUp = dc.fullFCntUp
	dc.session.LastGatewayID = dc.bestGateway
	return nil
}

func (dc *dataContext) saveSession() error {
	return dc.p.Sessions.Save(dc.ctx, dc.session)
}

func (dc *dataContext) respond() error {
	plan, hasResponse, err := dc.p.Planner.PlanUplinkResponse(dc.ctx, &dc.session, dc.bestGateway, dc.upFrequency, dc.upDR, dc.ack, dc.p.ProtocolVersion, dc.p.RegParamsRevision)
	if err != nil {
		return errors.Wrap(err, "plan uplink response error")
	}
	if !hasResponse {
		return nil
	}

	metrics.DownlinksSent.WithLabelValues("uplink_response").Inc()
	return dc.p.Submitter.Submit(dc.ctx, *plan)
}

// dropReason maps a pipeline error to a low-cardinality metric label.
func dropReason(err error) string {
	switch {
	case errors.Is(err, nserrors.ErrInvalidMIC):
		return "invalid_mic"
	case errors.Is(err, nserrors.ErrAlreadySeen):
		return "replay"
	case errors.Is(err, nserrors.ErrInvalidFrame):
		return "invalid_frame"
	default:
		return "other"
	}
}

// bestReception picks the gateway with the highest SNR (RSSI as tiebreak)
// from a deduplicated frame's per-gateway metadata, per §4.9 step 2.
func bestReception(rxInfoSet []dedup.RXMeta) (gatewayID lorawan.EUI64, frequency, dr int, maxSNR float64) {
	var best *dedup.RXMeta
	for i := range rxInfoSet {
		m := &rxInfoSet[i]
		if best == nil || m.LoRaSNR > best.LoRaSNR || (m.LoRaSNR == best.LoRaSNR && m.RSSI > best.RSSI) {
			best = m
		}
		if m.LoRaSNR > maxSNR {
			maxSNR = m.LoRaSNR
		}
	}
	if best == nil {
		return lorawan.EUI64{}, 0, 0, 0
	}
	copy(gatewayID[:], best.GatewayID[:])
	return gatewayID, best.Frequency, best.DR, maxSNR
}

// HandleFrame classifies a deduplicated frame by its LoRaWAN message type
// and dispatches it to the join or data-frame pipeline. This is the single
// entrypoint the gateway bridge calls for directly-received frames, and the
// one unwrapRelayedFrame calls recursively for traffic a relay forwards on
// FPort 226, so a relayed JoinRequest gets the same treatment as a direct
// one.
func (p *Pipeline) HandleFrame(ctx context.Context, frame dedup.Frame, joinOpts join.Options) error {
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(frame.PHYPayload); err != nil {
		return errors.Wrap(nserrors.ErrInvalidFrame, err.Error())
	}

	metrics.UplinksReceived.WithLabelValues(phy.MHDR.MType.String()).Inc()

	switch phy.MHDR.MType {
	case lorawan.JoinRequest:
		return p.HandleJoinRequest(ctx, frame, joinOpts)
	case lorawan.UnconfirmedDataUp, lorawan.ConfirmedDataUp:
		return p.HandleDataFrame(ctx, frame)
	default:
		log.WithField("mtype", phy.MHDR.MType).Warn("uplink: unsupported mtype")
		return nil
	}
}

// HandleJoinRequest processes an OTAA JoinRequest frame through the C11
// activator and hands the resulting JoinAccept to the gateway plane on the
// best-SNR gateway from the triggering frame.
func (p *Pipeline) HandleJoinRequest(ctx context.Context, frame dedup.Frame, opts join.Options) error {
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(frame.PHYPayload); err != nil {
		return errors.Wrap(nserrors.ErrInvalidFrame, err.Error())
	}

	joinAccept, session, err := p.Join.Activate(ctx, phy, opts)
	if err != nil {
		return errors.Wrap(err, "activate error")
	}

	gatewayID, upFrequency, upDR, _ := bestReception(frame.RXInfoSet)

	plan, hasResponse, err := p.Planner.PlanUplinkResponse(ctx, session, gatewayID, upFrequency, upDR, false, p.ProtocolVersion, p.RegParamsRevision)
	if err != nil || !hasResponse {
		// join-accept scheduling uses the same RX1/RX2 opportunity math as a
		// data downlink; PlanUplinkResponse always returns hasResponse=true
		// when a payload is supplied, so this path is reached only on error.
		return errors.Wrap(err, "plan join-accept response error")
	}
	plan.PHYPayload = *joinAccept
	metrics.JoinAccepts.Inc()
	metrics.DownlinksSent.WithLabelValues("join_accept").Inc()

	return p.Submitter.Submit(ctx, *plan)
}
