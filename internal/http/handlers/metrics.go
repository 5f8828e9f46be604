package handlers

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
)

var (
	recordsIngestedTotal *prometheus.CounterVec
	queryDuration        *prometheus.HistogramVec
)

func InitPrometheusMetrics() {
	recordsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mesoserve",
			Name:      "records_ingested_total",
			Help:      "Total number of readings ingested per entity.",
		},
		[]string{"entity"},
	)
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mesoserve",
			Name:      "query_duration_seconds",
			Help:      "Histogram of aggregate query durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"entity", "endpoint"},
	)
	prometheus.MustRegister(recordsIngestedTotal, queryDuration)
}

func observeQuery(entityID, endpoint string, seconds float64) {
	if queryDuration != nil {
		queryDuration.WithLabelValues(entityID, endpoint).Observe(seconds)
	}
}

func countIngested(entityID string, n int) {
	if recordsIngestedTotal != nil {
		recordsIngestedTotal.WithLabelValues(entityID).Add(float64(n))
	}
}

// MetricsHandler serves the Prometheus exposition. An entity_id parameter
// narrows entity-labelled families to that entity's series.
func MetricsHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		entityID := string(ctx.QueryArgs().Peek("entity_id"))

		metricFamilies, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to gather metrics")
			return
		}

		filtered := metricFamilies
		if entityID != "" {
			filtered = filterByEntity(metricFamilies, entityID)
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range filtered {
			if err := encoder.Encode(mf); err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}

// filterByEntity keeps families without an entity label as-is and narrows
// labelled ones to the matching series.
func filterByEntity(families []*dto.MetricFamily, entityID string) []*dto.MetricFamily {
	filtered := make([]*dto.MetricFamily, 0, len(families))
	for _, mf := range families {
		hasEntityLabel := false
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "entity" {
					hasEntityLabel = true
					break
				}
			}
			if hasEntityLabel {
				break
			}
		}
		if !hasEntityLabel {
			filtered = append(filtered, mf)
			continue
		}

		var kept []*dto.Metric
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "entity" && l.GetValue() == entityID {
					kept = append(kept, m)
					break
				}
			}
		}
		if len(kept) == 0 {
			continue
		}
		filtered = append(filtered, &dto.MetricFamily{
			Name:   mf.Name,
			Help:   mf.Help,
			Type:   mf.Type,
			Metric: kept,
		})
	}
	return filtered
}
