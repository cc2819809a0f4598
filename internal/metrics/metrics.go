// Package metrics exposes the controller state as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/solder-station/internal/engine"
	"github.com/sweeney/solder-station/internal/logic"
	"github.com/sweeney/solder-station/internal/status"
)

// Source returns the current daemon state.
type Source func() status.Snapshot

// Metrics owns a registry with the station collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the station collectors. Gauges and engine counters are
// read from src at scrape time.
func New(src Source) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solder_state_transitions_total",
			Help: "State machine transitions by target state and reason.",
		}, []string{"to", "reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solder_http_requests_total",
			Help: "HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "solder_http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	gauge := func(name, help string, f func(status.Snapshot) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return f(src()) })
	}
	counter := func(name, help string, f func(engine.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(f(src().Engine)) })
	}

	m.registry.MustRegister(
		m.transitions,
		m.httpRequests,
		m.httpDuration,
		gauge("solder_set_temperature_celsius", "Target tip temperature.",
			func(s status.Snapshot) float64 { return float64(s.SetTemp) }),
		gauge("solder_tip_temperature_celsius", "Last measured tip temperature (999 on error).",
			func(s status.Snapshot) float64 { return float64(s.TipTemp) }),
		gauge("solder_ambient_temperature_celsius", "Ambient temperature (999 on error).",
			func(s status.Snapshot) float64 { return float64(s.Ambient) }),
		gauge("solder_heater_power_ratio", "Scheduled heater half-cycles over the maximum.",
			func(s status.Snapshot) float64 { return s.Power() }),
		gauge("solder_state", "Supervisory state (0 init, 1 tip change, 2 off, 3 on, 4 standby, 5 error).",
			func(s status.Snapshot) float64 { return float64(s.State) }),
		gauge("solder_tip_detected", "1 when the last tip check found a tip.",
			func(s status.Snapshot) float64 {
				if s.Tip == engine.TipDetected {
					return 1
				}
				return 0
			}),
		gauge("solder_mqtt_connected", "1 when the MQTT client holds a connection.",
			func(s status.Snapshot) float64 {
				if s.MQTTConnected {
					return 1
				}
				return 0
			}),
		counter("solder_half_cycles_total", "Mains half-cycles handled.",
			func(s engine.Stats) uint64 { return s.HalfCycles }),
		counter("solder_heater_half_cycles_total", "Half-cycles with the heater driven.",
			func(s engine.Stats) uint64 { return s.HeaterCycles }),
		counter("solder_adc_bursts_total", "Completed ADC sample bursts.",
			func(s engine.Stats) uint64 { return s.Bursts }),
		counter("solder_tip_checks_total", "Tip presence checks performed.",
			func(s engine.Stats) uint64 { return s.TipChecks }),
		counter("solder_dropped_events_total", "Hardware events dropped on a full queue.",
			func(s engine.Stats) uint64 { return s.Dropped }),
		counter("solder_stale_events_total", "Timer or burst events ignored as stale.",
			func(s engine.Stats) uint64 { return s.Stale }),
		counter("solder_recovered_bursts_total", "Bursts completed after their completion event was dropped.",
			func(s engine.Stats) uint64 { return s.Recovered }),
		counter("solder_line_errors_total", "GPIO line operations that failed.",
			func(s engine.Stats) uint64 { return s.LineErrors }),
		&faultCollector{src: src},
	)

	return m
}

// faultCollector reports the engine fault counters with a kind label.
type faultCollector struct {
	src Source
}

var faultDesc = prometheus.NewDesc("solder_faults_total",
	"Controller faults by kind.", []string{"kind"}, nil)

func (c *faultCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- faultDesc
}

func (c *faultCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src().Engine
	for _, f := range engine.Faults() {
		ch <- prometheus.MustNewConstMetric(faultDesc, prometheus.CounterValue,
			float64(stats.Faults[f]), f.String())
	}
}

// Transition counts a state machine transition.
func (m *Metrics) Transition(tr logic.Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(tr.To.Name(), tr.Reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler records request counts and durations for route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
