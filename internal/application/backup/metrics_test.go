package backup

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/telemetry"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestExecutor_RecordsRunMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProviderWithReader(telemetry.MetricsConfig{ServiceName: "backup-test"}, reader, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{Meter: mp.Meter("backup-test")})
	require.NoError(t, err)
	f.exec.SetBusinessMetrics(bm)

	req := staff(uuid.New())
	dto, err := f.svc.Create(ctx, req, CreateInput{})
	require.NoError(t, err)
	require.NoError(t, f.runLast(t))
	_, err = f.svc.Restore(ctx, req, dto.ID, true)
	require.NoError(t, err)
	require.NoError(t, f.runLast(t))
	done, err := f.svc.GetByID(ctx, req, dto.ID)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	histograms := map[string]metricdata.Histogram[float64]{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok {
				histograms[m.Name] = h
			}
		}
	}

	operations := map[string]uint64{}
	for _, dp := range histograms["taxcrm_backup_duration_seconds"].DataPoints {
		op, _ := dp.Attributes.Value(telemetry.AttrOperation)
		outcome, _ := dp.Attributes.Value(telemetry.AttrOutcome)
		assert.Equal(t, string(telemetry.OutcomeSuccess), outcome.AsString())
		operations[op.AsString()] += dp.Count
	}
	assert.Equal(t, map[string]uint64{"backup": 1, "restore": 1}, operations)

	for _, dp := range histograms["taxcrm_backup_size_bytes"].DataPoints {
		op, _ := dp.Attributes.Value(telemetry.AttrOperation)
		if op.AsString() == "backup" {
			assert.Equal(t, float64(done.SizeBytes), dp.Sum)
		}
	}
}
