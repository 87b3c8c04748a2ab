/*

Package lorawan provides the wire codec for LoRaWAN 1.0/1.1 messages: PHYPayload
framing, MAC commands, join messages and the MIC/encryption primitives used by
the network-server's uplink and downlink pipelines (internal/uplink,
internal/downlink, internal/join).

It implements the encoding.BinaryMarshaler and encoding.BinaryUnmarshaler
interfaces.

Usage examples can be found in godoc under the NewPayload function:
https://godoc.org/github.com/lorawan-ns/network-server#NewPayload

*/
package lorawan
