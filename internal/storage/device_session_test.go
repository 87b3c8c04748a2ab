package storage

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/lorawan-ns/network-server"
)

func TestDeviceSessionUplinkHistory(t *testing.T) {
	Convey("Given an empty DeviceSession", t, func() {
		var s DeviceSession

		Convey("When appending 20 uplinks with fCnt 0..19", func() {
			for i := uint32(0); i < UplinkHistorySize; i++ {
				s.AppendUplinkHistory(UplinkHistory{FCnt: i})
			}

			Convey("Then GetPacketLossPercentage returns 0", func() {
				So(s.GetPacketLossPercentage(), ShouldEqual, 0)
			})

			Convey("When a re-transmission of the last fCnt is appended", func() {
				s.AppendUplinkHistory(UplinkHistory{FCnt: UplinkHistorySize - 1})

				Convey("Then it is ignored", func() {
					So(s.UplinkHistory, ShouldHaveLength, UplinkHistorySize)
				})
			})

			Convey("When a gap of 2 is appended and history rolls over", func() {
				s.AppendUplinkHistory(UplinkHistory{FCnt: UplinkHistorySize + 1})

				Convey("Then the history keeps only the last 20 entries", func() {
					So(s.UplinkHistory, ShouldHaveLength, UplinkHistorySize)
					So(s.UplinkHistory[UplinkHistorySize-1].FCnt, ShouldEqual, UplinkHistorySize+1)
				})

				Convey("Then GetPacketLossPercentage reflects the missed frame", func() {
					So(s.GetPacketLossPercentage(), ShouldEqual, float64(100)/float64(UplinkHistorySize))
				})
			})
		})
	})
}

func TestDeviceSessionGetMACVersion(t *testing.T) {
	Convey("Given a DeviceSession with MACVersion 1.1.0", t, func() {
		s := DeviceSession{MACVersion: "1.1.0"}

		Convey("Then GetMACVersion returns LoRaWAN1_1", func() {
			So(s.GetMACVersion(), ShouldEqual, lorawan.LoRaWAN1_1)
		})
	})

	Convey("Given a DeviceSession with MACVersion 1.0.3", t, func() {
		s := DeviceSession{MACVersion: "1.0.3"}

		Convey("Then GetMACVersion returns LoRaWAN1_0", func() {
			So(s.GetMACVersion(), ShouldEqual, lorawan.LoRaWAN1_0)
		})
	})
}
