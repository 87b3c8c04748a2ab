package downlink

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/band"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
	"github.com/lorawan-ns/network-server/internal/storage"
)

type fakeMACProvider struct {
	cmds []lorawan.MACCommand
}

func (f *fakeMACProvider) PendingMACCommands(ctx context.Context, devEUI lorawan.EUI64) ([]lorawan.MACCommand, error) {
	return f.cmds, nil
}

type fakeQueueProvider struct {
	item *storage.QueueItem
}

func (f *fakeQueueProvider) PeekDownlinkQueue(ctx context.Context, devEUI lorawan.EUI64) (*storage.QueueItem, error) {
	if f.item == nil {
		return nil, nserrors.ErrNotFound
	}
	return f.item, nil
}

func TestPlanUplinkResponseNoDataNoAck(t *testing.T) {
	Convey("Given a session with nothing pending and an unconfirmed uplink", t, func() {
		b, err := band.GetConfig(band.EU868, false, lorawan.DwellTimeNoLimit)
		So(err, ShouldBeNil)

		session := &storage.DeviceSession{}
		p := NewPlanner(b, &fakeMACProvider{}, &fakeQueueProvider{})

		Convey("When planning the response", func() {
			plan, send, err := p.PlanUplinkResponse(context.Background(), session, lorawan.EUI64{}, 868100000, 0, false, "1.0.3", "A")

			Convey("Then nothing is scheduled", func() {
				So(err, ShouldBeNil)
				So(send, ShouldBeFalse)
				So(plan, ShouldBeNil)
			})
		})
	})
}

func TestPlanUplinkResponseAckOnly(t *testing.T) {
	Convey("Given a confirmed uplink with nothing else pending", t, func() {
		b, err := band.GetConfig(band.EU868, false, lorawan.DwellTimeNoLimit)
		So(err, ShouldBeNil)

		session := &storage.DeviceSession{}
		p := NewPlanner(b, &fakeMACProvider{}, &fakeQueueProvider{})

		Convey("When planning the response", func() {
			plan, send, err := p.PlanUplinkResponse(context.Background(), session, lorawan.EUI64{}, 868100000, 0, true, "1.0.3", "A")

			Convey("Then a bare ACK frame is scheduled on RX1", func() {
				So(err, ShouldBeNil)
				So(send, ShouldBeTrue)
				So(plan, ShouldNotBeNil)
				So(plan.Opportunity.Window, ShouldEqual, storage.RX1)
			})
		})
	})
}
