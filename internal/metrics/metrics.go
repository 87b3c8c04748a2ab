// Package metrics declares the network server's prometheus.Collector
// instruments as package-level vars registered against the default
// registry, the way the rdma_exporter collector in the reference pack
// declares its *prometheus.Desc/Counter fields up front rather than
// building them ad hoc at the call site.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	UplinksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "networkserver",
		Subsystem: "uplink",
		Name:      "frames_received_total",
		Help:      "Deduplicated uplink frames handed to the pipeline, by mtype.",
	}, []string{"mtype"})

	UplinksDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "networkserver",
		Subsystem: "uplink",
		Name:      "frames_dropped_total",
		Help:      "Uplink frames rejected by the pipeline, by reason.",
	}, []string{"reason"})

	JoinAccepts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "networkserver",
		Subsystem: "join",
		Name:      "accepts_total",
		Help:      "JoinRequest frames that resulted in a new device session.",
	})

	DownlinksSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "networkserver",
		Subsystem: "downlink",
		Name:      "frames_sent_total",
		Help:      "Downlink frames submitted to the gateway plane, by trigger.",
	}, []string{"trigger"})

	RelayFramesForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "networkserver",
		Subsystem: "relay",
		Name:      "frames_forwarded_total",
		Help:      "FPort-226 frames unwrapped and re-dispatched on behalf of a relayed end-device.",
	})
)

func init() {
	prometheus.MustRegister(UplinksReceived, UplinksDropped, JoinAccepts, DownlinksSent, RelayFramesForwarded)
}
