package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/railsignals/crossing-controller/model"
)

// CrossingMetrics bundles the Prometheus metrics of the crossing controller
// and implements the controller's MetricsRecorder interface, so the tick
// loop can drive gauge values directly.
type CrossingMetrics struct {
	gatherer prometheus.Gatherer

	Commands      *prometheus.CounterVec
	RejectedLines prometheus.Counter
	DroppedLines  prometheus.Counter
	FeedbackLines prometheus.Counter
	Ticks         prometheus.Counter
	TickDurations prometheus.Histogram

	ActuatorPositions *prometheus.GaugeVec
	LampStates        *prometheus.GaugeVec
	CrossingState     prometheus.Gauge
}

// NewCrossingMetrics registers the controller metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registration is idempotent: collectors already registered are reused.
func NewCrossingMetrics(reg prometheus.Registerer) (*CrossingMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	commands, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crossing_commands_total",
		Help: "Total number of accepted commands, labeled by command kind.",
	}, []string{"kind"}), "crossing_commands_total")
	if err != nil {
		return nil, err
	}

	rejected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crossing_lines_rejected_total",
		Help: "Total number of non-blank lines dropped as malformed or out of range.",
	}), "crossing_lines_rejected_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crossing_lines_dropped_total",
		Help: "Total number of lines dropped because the pending-line queue was full.",
	}), "crossing_lines_dropped_total")
	if err != nil {
		return nil, err
	}

	feedback, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crossing_feedback_lines_total",
		Help: "Total number of primary-position feedback lines emitted.",
	}), "crossing_feedback_lines_total")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crossing_ticks_total",
		Help: "Total number of controller ticks.",
	}), "crossing_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossing_tick_duration_seconds",
		Help:    "Wall time spent in one controller tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	}), "crossing_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	positions, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crossing_actuator_position_degrees",
		Help: "Current actuator position in degrees, labeled by actuator.",
	}, []string{"actuator"}), "crossing_actuator_position_degrees")
	if err != nil {
		return nil, err
	}

	lamps, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crossing_lamp_on",
		Help: "Whether a warning lamp is currently lit (0 or 1), labeled by lamp.",
	}, []string{"lamp"}), "crossing_lamp_on")
	if err != nil {
		return nil, err
	}

	state, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crossing_state",
		Help: "Coordinator state as an enum ordinal: 0 IDLE, 1 BLINK_PENDING_CLOSE, 2 CLOSED, 3 OPENING_DELAY.",
	}), "crossing_state")
	if err != nil {
		return nil, err
	}

	return &CrossingMetrics{
		gatherer:          gatherer,
		Commands:          commands,
		RejectedLines:     rejected,
		DroppedLines:      dropped,
		FeedbackLines:     feedback,
		Ticks:             ticks,
		TickDurations:     tickDurations,
		ActuatorPositions: positions,
		LampStates:        lamps,
		CrossingState:     state,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CrossingMetrics) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordCommand counts one accepted command of the given kind.
func (c *CrossingMetrics) RecordCommand(kind model.CommandKind) {
	if c == nil || c.Commands == nil {
		return
	}
	c.Commands.WithLabelValues(kind.String()).Inc()
}

// RecordRejectedLine counts one malformed or out-of-range line.
func (c *CrossingMetrics) RecordRejectedLine() {
	if c == nil || c.RejectedLines == nil {
		return
	}
	c.RejectedLines.Inc()
}

// RecordDroppedLine counts one line lost to queue overflow.
func (c *CrossingMetrics) RecordDroppedLine() {
	if c == nil || c.DroppedLines == nil {
		return
	}
	c.DroppedLines.Inc()
}

// RecordFeedback counts one emitted feedback line.
func (c *CrossingMetrics) RecordFeedback() {
	if c == nil || c.FeedbackLines == nil {
		return
	}
	c.FeedbackLines.Inc()
}

// RecordTick counts one controller tick.
func (c *CrossingMetrics) RecordTick() {
	if c == nil || c.Ticks == nil {
		return
	}
	c.Ticks.Inc()
}

// ObserveTickDuration records the wall time one tick took.
func (c *CrossingMetrics) ObserveTickDuration(d time.Duration) {
	if c == nil || c.TickDurations == nil {
		return
	}
	c.TickDurations.Observe(d.Seconds())
}

// SetActuatorPosition updates the position gauge for one actuator.
func (c *CrossingMetrics) SetActuatorPosition(actuator model.Actuator, angle model.Angle) {
	if c == nil || c.ActuatorPositions == nil {
		return
	}
	c.ActuatorPositions.WithLabelValues(actuator.String()).Set(float64(angle))
}

// SetLampState updates the on/off gauge for one lamp.
func (c *CrossingMetrics) SetLampState(lamp model.Lamp, on bool) {
	if c == nil || c.LampStates == nil {
		return
	}
	v := 0.0
	if on {
		v = 1.0
	}
	c.LampStates.WithLabelValues(lamp.String()).Set(v)
}

// SetCrossingState updates the coordinator state gauge.
func (c *CrossingMetrics) SetCrossingState(state model.CrossingState) {
	if c == nil || c.CrossingState == nil {
		return
	}
	c.CrossingState.Set(float64(state))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, histogram prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return histogram, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
