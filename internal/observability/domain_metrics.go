package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK            = "ok"
	OutcomeUpstreamError = "upstream_error"
	OutcomeError         = "error"
	OutcomePanic         = "panic"
)

var (
	translateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibridge_translate_requests_total",
			Help: "Total number of translator invocations by outcome.",
		},
		[]string{"outcome"},
	)
	translateDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aibridge_translate_duration_seconds",
			Help:    "Time spent waiting on the completion API.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	promptChars = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aibridge_prompt_chars",
			Help:    "Number of characters in accepted prompts.",
			Buckets: []float64{16, 32, 64, 128, 256, 512, 1024, 4096},
		},
	)
	translatorAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aibridge_translator_available",
			Help: "Whether the translator was constructed at startup (1) or not (0).",
		},
	)
	inflightTranslations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aibridge_inflight_translations",
			Help: "Translations currently waiting on the completion API.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		translateRequestsTotal,
		translateDurationSeconds,
		promptChars,
		translatorAvailable,
		inflightTranslations,
	)
}

func ObserveTranslation(outcome string, elapsed time.Duration) {
	translateRequestsTotal.WithLabelValues(outcome).Inc()
	translateDurationSeconds.Observe(elapsed.Seconds())
}

func ObservePromptChars(chars int) {
	if chars < 0 {
		chars = 0
	}
	promptChars.Observe(float64(chars))
}

func SetTranslatorAvailable(available bool) {
	if available {
		translatorAvailable.Set(1)
		return
	}
	translatorAvailable.Set(0)
}

// TrackInFlight marks one translation as running until the returned func
// is called.
func TrackInFlight() func() {
	inflightTranslations.Inc()
	return inflightTranslations.Dec
}
