// Package gwbridge talks to the gateway plane over MQTT: it subscribes to
// every gateway's event topic, feeding deduplicated uplinks to a caller-
// supplied dispatcher, and publishes scheduled downlinks to a gateway's
// command topic. It plays the role
// other_examples/19ac5a51_youcanplay-chirpstack-gateway-bridge's Backend
// plays for a UDP-connected Semtech forwarder, adapted from a dialed UDP
// socket to a broker publish/subscribe, since this server's gateways sit
// behind MQTT (github.com/eclipse/paho.mqtt.golang, carried in the
// teacher's own dependency stack) rather than being dialed directly.
//
// Gateway events are JSON rather than the wire-protobuf chirpstack-gateway-
// bridge normally uses: no example in the pack demonstrates constructing
// that protobuf schema from source (only go.mod manifests reference
// google.golang.org/protobuf), and hand-authoring .pb.go-equivalent code
// without running protoc would fabricate unverifiable wire compatibility.
package gwbridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/internal/dedup"
	"github.com/lorawan-ns/network-server/internal/downlink"
)

// UplinkEvent is the JSON document a gateway publishes on its event topic
// for every frame it receives within the dedup window.
type UplinkEvent struct {
	GatewayID  string  `json:"gatewayId"`
	PHYPayload []byte  `json:"phyPayload"`
	RSSI       int     `json:"rssi"`
	LoRaSNR    float64 `json:"loRaSNR"`
	Frequency  int     `json:"frequency"`
	DR         int     `json:"dr"`
}

// StatsEvent is the JSON document a gateway publishes periodically on its
// stats topic, mirroring the Semtech Stat packet's rxNb/rxOk counters.
type StatsEvent struct {
	GatewayID           string    `json:"gatewayId"`
	Time                time.Time `json:"time"`
	RXPacketsReceived   int       `json:"rxPacketsReceived"`
	RXPacketsReceivedOK int       `json:"rxPacketsReceivedOK"`
}

// DownlinkCommand is the JSON document published on a gateway's command
// topic to schedule one transmission.
type DownlinkCommand struct {
	PHYPayload []byte        `json:"phyPayload"`
	Frequency  int           `json:"frequency"`
	DR         int           `json:"dr"`
	Delay      time.Duration `json:"delay"`
}

// StatsHandler receives every gateway stats event the bridge observes.
type StatsHandler func(ctx context.Context, stats StatsEvent)

// Bridge subscribes to gateway event/stats topics and publishes scheduled
// downlinks, implementing downlink.Submitter over MQTT.
type Bridge struct {
	Client               mqtt.Client
	EventTopic           string
	StatsTopic           string
	CommandTopicTemplate string // e.g. "gateway/%s/command/down"

	Dedup   *dedup.Deduplicator
	OnFrame dedup.Callback
	Stats   StatsHandler
}

// New returns a Bridge ready to Start.
func New(client mqtt.Client, eventTopic, statsTopic, commandTopicTemplate string, d *dedup.Deduplicator, onFrame dedup.Callback, stats StatsHandler) *Bridge {
	return &Bridge{
		Client:               client,
		EventTopic:           eventTopic,
		StatsTopic:           statsTopic,
		CommandTopicTemplate: commandTopicTemplate,
		Dedup:                d,
		OnFrame:              onFrame,
		Stats:                stats,
	}
}

// Start subscribes to the event and stats topics. The broker connection
// itself (TLS, credentials, auto-reconnect) is configured on Client by the
// caller via mqtt.ClientOptions before New is called.
func (b *Bridge) Start() error {
	if token := b.Client.Subscribe(b.EventTopic, 0, b.handleUplinkEvent); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "subscribe event topic error")
	}
	if b.StatsTopic != "" {
		if token := b.Client.Subscribe(b.StatsTopic, 0, b.handleStatsEvent); token.Wait() && token.Error() != nil {
			return errors.Wrap(token.Error(), "subscribe stats topic error")
		}
	}
	return nil
}

func (b *Bridge) handleUplinkEvent(_ mqtt.Client, msg mqtt.Message) {
	ctx := context.Background()

	var evt UplinkEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		log.WithError(err).WithField("topic", msg.Topic()).Warn("gwbridge: invalid uplink event payload")
		return
	}

	gatewayID, err := decodeGatewayID(evt.GatewayID)
	if err != nil {
		log.WithError(err).WithField("gateway_id", evt.GatewayID).Warn("gwbridge: invalid gateway id")
		return
	}

	meta := dedup.RXMeta{
		GatewayID: gatewayID,
		RSSI:      evt.RSSI,
		LoRaSNR:   evt.LoRaSNR,
		Frequency: evt.Frequency,
		DR:        evt.DR,
	}

	if err := b.Dedup.Collect(ctx, evt.PHYPayload, meta, b.OnFrame); err != nil {
		log.WithError(err).Error("gwbridge: dedup collect error")
	}
}

func (b *Bridge) handleStatsEvent(_ mqtt.Client, msg mqtt.Message) {
	if b.Stats == nil {
		return
	}
	var evt StatsEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		log.WithError(err).WithField("topic", msg.Topic()).Warn("gwbridge: invalid stats event payload")
		return
	}
	b.Stats(context.Background(), evt)
}

// Submit publishes plan to the gateway selected by the planner's
// opportunity, implementing downlink.Submitter.
func (b *Bridge) Submit(ctx context.Context, plan downlink.Plan) error {
	phyBytes, err := plan.PHYPayload.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal phypayload error")
	}

	cmd := DownlinkCommand{
		PHYPayload: phyBytes,
		Frequency:  plan.Opportunity.Frequency,
		DR:         plan.Opportunity.DR,
		Delay:      plan.Opportunity.Delay,
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return errors.Wrap(err, "marshal downlink command error")
	}

	topic := fmt.Sprintf(b.CommandTopicTemplate, hex.EncodeToString(plan.Opportunity.GatewayID[:]))
	token := b.Client.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "publish downlink command error")
	}
	return nil
}

func decodeGatewayID(s string) (lorawan.EUI64, error) {
	var id lorawan.EUI64
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, errors.Wrap(err, "hex decode error")
	}
	if len(b) != len(id) {
		return id, errors.New("gwbridge: gateway id must be 8 bytes")
	}
	copy(id[:], b)
	return id, nil
}
