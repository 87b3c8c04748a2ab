package gwbridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeGatewayID(t *testing.T) {
	assert := assert.New(t)

	id, err := decodeGatewayID("0102030405060708")
	assert.NoError(err)
	assert.Equal(byte(0x01), id[0])
	assert.Equal(byte(0x08), id[7])
}

func TestDecodeGatewayIDRejectsWrongLength(t *testing.T) {
	_, err := decodeGatewayID("0102")
	assert.Error(t, err)
}

func TestDecodeGatewayIDRejectsInvalidHex(t *testing.T) {
	_, err := decodeGatewayID("not-hex-at-all!!")
	assert.Error(t, err)
}

func TestUplinkEventRoundTrip(t *testing.T) {
	assert := assert.New(t)

	evt := UplinkEvent{
		GatewayID:  "0102030405060708",
		PHYPayload: []byte{0x40, 0x01, 0x02, 0x03},
		RSSI:       -110,
		LoRaSNR:    5.5,
		Frequency:  868100000,
		DR:         5,
	}

	b, err := json.Marshal(evt)
	assert.NoError(err)

	var got UplinkEvent
	assert.NoError(json.Unmarshal(b, &got))
	assert.Equal(evt, got)
}

func TestDownlinkCommandRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cmd := DownlinkCommand{
		PHYPayload: []byte{0x60, 0x01, 0x02, 0x03},
		Frequency:  869525000,
		DR:         0,
	}

	b, err := json.Marshal(cmd)
	assert.NoError(err)

	var got DownlinkCommand
	assert.NoError(json.Unmarshal(b, &got))
	assert.Equal(cmd, got)
}
