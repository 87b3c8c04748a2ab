package uplink

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValidateAndGetFullFCntUp(t *testing.T) {
	Convey("Given a stored FCntUp of 65536 (rolled over once)", t, func() {
		stored := uint32(65536)

		Convey("When the wire FCnt is 1 (the next frame after rollover)", func() {
			full, ok := ValidateAndGetFullFCntUp(nil, stored, 1)

			Convey("Then it resolves to 65537", func() {
				So(ok, ShouldBeTrue)
				So(full, ShouldEqual, 65537)
			})
		})

		Convey("When the wire FCnt repeats 0 (replay of the rollover frame)", func() {
			full, ok := ValidateAndGetFullFCntUp(nil, stored, 0)

			Convey("Then it resolves to the same stored value, not an error", func() {
				So(ok, ShouldBeTrue)
				So(full, ShouldEqual, 65536)
			})
		})

		Convey("When the wire FCnt jumps beyond the default max gap", func() {
			_, ok := ValidateAndGetFullFCntUp(nil, stored, uint16Wrap(stored, maxFCntGapDefault+1))

			Convey("Then validation fails", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func uint16Wrap(stored uint32, gap uint32) uint32 {
	return uint32(uint16(stored) + uint16(gap))
}
