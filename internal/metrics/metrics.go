package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	AioTotal          *prometheus.CounterVec
	AioInFlight       *prometheus.GaugeVec
	AioWorker         *prometheus.GaugeVec
	AioWorkerInFlight *prometheus.GaugeVec
	ApiTotal          *prometheus.CounterVec
	ApiInFlight       *prometheus.GaugeVec
	XhrTotal          *prometheus.CounterVec
	XhrInFlight       *prometheus.GaugeVec
	XhrDrains         prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		AioTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aio_total_submissions",
			Help: "total number of aio submissions",
		}, []string{"type", "status"}),
		AioInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aio_in_flight_submissions",
			Help: "number of in flight aio submissions",
		}, []string{"type"}),
		AioWorker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aio_worker_count",
			Help: "number of aio subsystem workers",
		}, []string{"type"}),
		AioWorkerInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aio_worker_in_flight_submissions",
			Help: "number of in flight aio submissions",
		}, []string{"type", "worker"}),
		ApiTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_total_requests",
			Help: "total number of api requests",
		}, []string{"type", "protocol", "status"}),
		ApiInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "api_in_flight_requests",
			Help: "number of in flight api requests",
		}, []string{"type", "protocol"}),
		XhrTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xhr_operations_total",
			Help: "total number of settled tracked operations",
		}, []string{"method", "status"}),
		XhrInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xhr_operations_in_flight",
			Help: "number of tracked operations not settled yet",
		}, []string{"method"}),
		XhrDrains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xhr_drains_total",
			Help: "number of times a watched target went idle",
		}),
	}

	metrics.Enable(reg)
	return metrics
}

func (m *Metrics) Enable(reg prometheus.Registerer) {
	reg.MustRegister(m.AioTotal)
	reg.MustRegister(m.AioInFlight)
	reg.MustRegister(m.AioWorker)
	reg.MustRegister(m.AioWorkerInFlight)
	reg.MustRegister(m.ApiTotal)
	reg.MustRegister(m.ApiInFlight)
	reg.MustRegister(m.XhrTotal)
	reg.MustRegister(m.XhrInFlight)
	reg.MustRegister(m.XhrDrains)
}

func (m *Metrics) Disable(reg prometheus.Registerer) {
	reg.Unregister(m.AioTotal)
	reg.Unregister(m.AioInFlight)
	reg.Unregister(m.AioWorker)
	reg.Unregister(m.AioWorkerInFlight)
	reg.Unregister(m.ApiTotal)
	reg.Unregister(m.ApiInFlight)
	reg.Unregister(m.XhrTotal)
	reg.Unregister(m.XhrInFlight)
	reg.Unregister(m.XhrDrains)
}
