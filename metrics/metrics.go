// Package metrics holds the Prometheus collectors of the auction server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nftauction_build_info",
			Help: "Build information of the NFT auction server",
		},
		[]string{"version", "commit", "date"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftauction_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"type", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nftauction_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"type"},
	)

	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftauction_connections_rejected_total",
			Help: "Total number of connections rejected before processing",
		},
		[]string{"reason"},
	)

	WorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nftauction_workers_busy",
			Help: "Number of connection workers currently processing a request",
		},
	)

	AuctionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nftauction_auctions_created_total",
			Help: "Total number of auctions created",
		},
	)

	BidsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftauction_bids_total",
			Help: "Total number of accepted bids",
		},
		[]string{"kind"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftauction_settlements_total",
			Help: "Total number of settled auctions",
		},
		[]string{"outcome"},
	)

	SettledVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftauction_settled_volume_base_units_total",
			Help: "Sum of winning bids in base units of the payment token",
		},
		[]string{"payment_token"},
	)

	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftauction_rollbacks_total",
			Help: "Total number of operations rolled back after a collaborator failure",
		},
		[]string{"operation", "status"},
	)
)
