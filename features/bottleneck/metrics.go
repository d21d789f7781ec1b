package bottleneck

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "shennong"

// utterance outcomes recorded in the status label
const (
	statusOK      = "ok"
	statusNoVoice = "no_voice"
	statusError   = "error"
)

// Metrics records extraction outcomes. A nil *Metrics records nothing.
type Metrics struct {
	utterances *prometheus.CounterVec
	frames     prometheus.Counter
	audio      prometheus.Counter
	duration   prometheus.Histogram
}

// NewMetrics registers the extraction collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "utterances_total",
			Help:      "Processed utterances by outcome.",
		}, []string{"status"}),
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_total",
			Help:      "Bottleneck frames produced.",
		}),
		audio: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "audio_seconds_total",
			Help:      "Seconds of input audio processed successfully.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "processing_seconds",
			Help:      "Wall time of a single extraction.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *Metrics) observe(start time.Time, audioSeconds float64, frames int, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())

	var noVoice *NoVoiceDetectedError
	switch {
	case err == nil:
		m.utterances.WithLabelValues(statusOK).Inc()
		m.frames.Add(float64(frames))
		m.audio.Add(audioSeconds)
	case errors.As(err, &noVoice):
		m.utterances.WithLabelValues(statusNoVoice).Inc()
	default:
		m.utterances.WithLabelValues(statusError).Inc()
	}
}
