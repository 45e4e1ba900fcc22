package netsocket

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	connsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "netsocket",
		Name:      "connections_active",
		Help:      "Number of currently bound connections.",
	})
	bytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netsocket",
		Name:      "bytes_received_total",
		Help:      "Bytes read off the wire across all connections.",
	})
	bytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netsocket",
		Name:      "bytes_sent_total",
		Help:      "Bytes written to the wire across all connections.",
	})
	packetsDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netsocket",
		Name:      "packets_dispatched_total",
		Help:      "Packets decoded and handed to the dispatch callback.",
	})
	disconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "netsocket",
		Name:      "disconnects_total",
		Help:      "Disconnect notifications fired.",
	})
)

func init() {
	prometheus.MustRegister(
		connsActive,
		bytesReceived,
		bytesSent,
		packetsDispatched,
		disconnects,
	)
}
