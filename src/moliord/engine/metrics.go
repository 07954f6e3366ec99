package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	// QueueDepth reports the number of tasks currently waiting in the queue.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moliord",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Number of tasks currently queued for the Worker.",
	})

	// WorkerIterations counts completed Worker loop iterations, labeled by
	// the dispatched task's tag.
	WorkerIterations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moliord",
		Subsystem: "worker",
		Name:      "iterations_total",
		Help:      "Total number of Worker loop iterations by task tag.",
	}, []string{"task"})

	// WorkerPanics counts handler panics recovered by the Worker loop.
	WorkerPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moliord",
		Subsystem: "worker",
		Name:      "panics_total",
		Help:      "Total number of panics recovered from task handlers.",
	})

	// ChrootOccupancy reports the current chroot_build_count governor value.
	ChrootOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moliord",
		Subsystem: "chroot",
		Name:      "occupancy",
		Help:      "Number of buildenv constructions currently in flight.",
	})
)

// RegisterMetrics registers every engine metric with reg. Safe to call once
// at startup; registering twice against the same registry panics, matching
// client_golang's own contract.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(QueueDepth, WorkerIterations, WorkerPanics, ChrootOccupancy)
}
