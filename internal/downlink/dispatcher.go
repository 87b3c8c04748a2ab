package downlink

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/gps"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
	"github.com/lorawan-ns/network-server/internal/metrics"
	"github.com/lorawan-ns/network-server/internal/storage"
)

// DispatchStore is the storage dependency of Dispatcher: device-queue scan
// plus the multicast-group tables, all backed by the relational mirror
// (pgx) since FIFO ordering must survive a redis eviction.
//
// Device sessions have no class field in this server's model (every
// activated device is treated as continuously listening on RX2, the
// Class-C assumption); a device-profile-driven Class-A/B/C distinction is
// future work, noted in DESIGN.md.
type DispatchStore interface {
	PendingQueueDevices(ctx context.Context) ([]lorawan.EUI64, error)
	Get(ctx context.Context, devEUI lorawan.EUI64) (storage.DeviceSession, error)
	Save(ctx context.Context, s storage.DeviceSession) error
	PeekDownlinkQueue(ctx context.Context, devEUI lorawan.EUI64) (*storage.QueueItem, error)
	RemoveDownlinkQueueItem(ctx context.Context, id uuid.UUID) error

	PendingMulticastGroups(ctx context.Context) ([]uuid.UUID, error)
	GetMulticastGroup(ctx context.Context, group uuid.UUID) (storage.MulticastGroup, error)
	MulticastGroupMembers(ctx context.Context, group uuid.UUID) ([]lorawan.EUI64, error)
	PeekMulticastQueue(ctx context.Context, group uuid.UUID) (*storage.MulticastQueueItem, error)
	RemoveMulticastQueueItem(ctx context.Context, id uuid.UUID) error
	IncrMulticastFCntDown(ctx context.Context, group uuid.UUID) (uint32, error)
}

// Dispatcher drains due Class-C device downlinks and multicast group
// downlinks on each scheduler tick, implementing internal/scheduler's
// DeviceDispatcher and MulticastDispatcher interfaces.
type Dispatcher struct {
	Store     DispatchStore
	Planner   *Planner
	Submitter Submitter
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(store DispatchStore, planner *Planner, submitter Submitter) *Dispatcher {
	return &Dispatcher{Store: store, Planner: planner, Submitter: submitter}
}

// DispatchDue sends the head of every non-empty device downlink queue.
func (d *Dispatcher) DispatchDue(ctx context.Context) error {
	devices, err := d.Store.PendingQueueDevices(ctx)
	if err != nil {
		return errors.Wrap(err, "list pending-queue devices error")
	}

	for _, devEUI := range devices {
		if err := d.dispatchDevice(ctx, devEUI); err != nil {
			log.WithError(err).WithField("dev_eui", devEUI).Error("downlink: dispatch device queue error")
		}
	}
	return nil
}

func (d *Dispatcher) dispatchDevice(ctx context.Context, devEUI lorawan.EUI64) error {
	item, err := d.Store.PeekDownlinkQueue(ctx, devEUI)
	if err != nil {
		if errors.Is(err, nserrors.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "peek downlink queue error")
	}
	if item.IsPending {
		return nil
	}

	session, err := d.Store.Get(ctx, devEUI)
	if err != nil {
		return errors.Wrap(err, "get device-session error")
	}
	if session.LastGatewayID == (lorawan.EUI64{}) {
		// device has never been heard from; no gateway to reach it through.
		return nil
	}

	plan, err := d.Planner.PlanClassCDownlink(ctx, &session, *item)
	if err != nil {
		return errors.Wrap(err, "plan class-c downlink error")
	}

	if err := d.Submitter.Submit(ctx, *plan); err != nil {
		return errors.Wrap(err, "submit downlink error")
	}
	metrics.DownlinksSent.WithLabelValues("class_c_queue").Inc()

	session.AFCntDown++
	if err := d.Store.Save(ctx, session); err != nil {
		return errors.Wrap(err, "save device-session error")
	}

	if item.Confirmed {
		return nil
	}
	return d.Store.RemoveDownlinkQueueItem(ctx, item.ID)
}

// DispatchDueMulticast sends the head of every non-empty multicast group
// queue to every member the group's membership table lists.
func (d *Dispatcher) DispatchDueMulticast(ctx context.Context) error {
	groups, err := d.Store.PendingMulticastGroups(ctx)
	if err != nil {
		return errors.Wrap(err, "list pending multicast groups error")
	}

	for _, group := range groups {
		if err := d.dispatchMulticastGroup(ctx, group); err != nil {
			log.WithError(err).WithField("multicast_group_id", group).Error("downlink: dispatch multicast queue error")
		}
	}
	return nil
}

func (d *Dispatcher) dispatchMulticastGroup(ctx context.Context, group uuid.UUID) error {
	item, err := d.Store.PeekMulticastQueue(ctx, group)
	if err != nil {
		if errors.Is(err, nserrors.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "peek multicast queue error")
	}

	mg, err := d.Store.GetMulticastGroup(ctx, group)
	if err != nil {
		return errors.Wrap(err, "get multicast-group error")
	}

	members, err := d.Store.MulticastGroupMembers(ctx, group)
	if err != nil {
		return errors.Wrap(err, "get multicast-group members error")
	}
	if len(members) == 0 {
		return d.Store.RemoveMulticastQueueItem(ctx, item.ID)
	}

	// any current member's session supplies the gateway to transmit
	// through; the group's own address/keys carry the cryptographic
	// identity every member shares.
	var gatewayID lorawan.EUI64
	for _, devEUI := range members {
		session, err := d.Store.Get(ctx, devEUI)
		if err == nil && session.LastGatewayID != (lorawan.EUI64{}) {
			gatewayID = session.LastGatewayID
			break
		}
	}
	if gatewayID == (lorawan.EUI64{}) {
		return errors.New("downlink: no reachable member for multicast group")
	}

	fCntDown, err := d.Store.IncrMulticastFCntDown(ctx, group)
	if err != nil {
		return errors.Wrap(err, "increment multicast fcntdown error")
	}

	if mg.PingSlotPeriod > 0 {
		// Class-B members derive their ping-slot offset from the beacon's
		// GPS timestamp; logged here so a ping-slot miss can be correlated
		// against the beacon epoch rather than wall-clock time.
		log.WithFields(log.Fields{
			"multicast_group_id": group,
			"gps_time":           gps.Time(time.Now()).TimeSinceGPSEpoch(),
			"ping_slot_period":   mg.PingSlotPeriod,
		}).Debug("downlink: scheduling class-b multicast ping slot")
	}

	fPort := item.FPort
	macPL := &lorawan.MACPayload{
		FHDR: lorawan.FHDR{
			DevAddr: mg.MCAddr,
			FCnt:    fCntDown,
		},
		FPort:      &fPort,
		FRMPayload: []lorawan.Payload{&lorawan.DataPayload{Bytes: item.Data}},
	}

	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.UnconfirmedDataDown,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: macPL,
	}
	if err := phy.EncryptFRMPayload(mg.McAppSKey); err != nil {
		return errors.Wrap(err, "encrypt frmpayload error")
	}
	if err := phy.SetDownlinkDataMIC(lorawan.LoRaWAN1_0, 0, mg.McNwkSKey); err != nil {
		return errors.Wrap(err, "set downlink mic error")
	}

	plan := Plan{
		Opportunity: Opportunity{
			Window:    storage.RX2,
			GatewayID: gatewayID,
			Frequency: mg.Frequency,
			DR:        mg.DR,
		},
		PHYPayload:          phy,
		ConsumedQueueItemID: item.ID,
	}

	if err := d.Submitter.Submit(ctx, plan); err != nil {
		return errors.Wrap(err, "submit multicast downlink error")
	}
	metrics.DownlinksSent.WithLabelValues("multicast").Inc()

	return d.Store.RemoveMulticastQueueItem(ctx, item.ID)
}
