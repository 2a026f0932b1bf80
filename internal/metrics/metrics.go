package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_pipeline_runs_total",
		Help: "Pipeline runs by outcome (complete, partial, failed)",
	}, []string{"outcome"})
	StageAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_stage_attempts_total",
		Help: "Stage attempts including retries",
	}, []string{"stage"})
	StageRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_stage_retries_total",
		Help: "Stage retries after a transient failure",
	}, []string{"stage"})
	MissedSlots = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_missed_slots_total",
		Help: "Calendar slots marked missed",
	}, []string{"tier"})
	PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forge_pipeline_duration_seconds",
		Help:    "Wall time of one pipeline run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

func init() {
	prometheus.MustRegister(PipelineRuns, StageAttempts, StageRetries, MissedSlots, PipelineDuration)
}

func ObservePipeline(outcome string, start time.Time) {
	PipelineRuns.WithLabelValues(outcome).Inc()
	PipelineDuration.Observe(time.Since(start).Seconds())
}

func IncStageAttempt(stage string) { StageAttempts.WithLabelValues(stage).Inc() }

func IncStageRetry(stage string) { StageRetries.WithLabelValues(stage).Inc() }

func IncMissedSlot(tier string) { MissedSlots.WithLabelValues(tier).Inc() }

// WriteSummary prints the forge_* series of the default registry, one per
// line. There is no HTTP exposition; the CLI prints this after a run.
func WriteSummary(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, "forge_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			series := name
			if len(labels) > 0 {
				series += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", series, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%.3fs", series, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
