package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(StageRetries.WithLabelValues("content"))
	IncStageRetry("content")
	IncStageRetry("content")
	assert.Equal(t, before+2, testutil.ToFloat64(StageRetries.WithLabelValues("content")))

	beforeMissed := testutil.ToFloat64(MissedSlots.WithLabelValues("mini"))
	IncMissedSlot("mini")
	assert.Equal(t, beforeMissed+1, testutil.ToFloat64(MissedSlots.WithLabelValues("mini")))
}

func TestWriteSummary(t *testing.T) {
	IncStageAttempt("image")
	ObservePipeline("complete", time.Now().Add(-2*time.Second))

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf))
	out := buf.String()
	assert.Contains(t, out, "forge_stage_attempts_total{stage=image}")
	assert.Contains(t, out, "forge_pipeline_runs_total{outcome=complete}")
	assert.Contains(t, out, "forge_pipeline_duration_seconds count=")
	assert.NotContains(t, out, "go_goroutines")
}
