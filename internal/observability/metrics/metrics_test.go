package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewBuildsInstruments(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	m.RecordMergeRun(ctx, "batch")
	m.RecordMergeRow(ctx, "sent")
	m.RecordMailSend(ctx, "graph", true)
	m.RecordRowDuration(ctx, 25*time.Millisecond)
	m.SubscriberConnected(ctx)
	m.SubscriberDisconnected(ctx)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordMergeRun(ctx, "batch")
		m.RecordMergeRow(ctx, "failed")
		m.RecordMailSend(ctx, "smtp", false)
		m.SubscriberConnected(ctx)
	})
}
