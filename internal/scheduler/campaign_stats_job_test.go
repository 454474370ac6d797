package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/blues/fundgate/internal/metrics"
	"github.com/blues/fundgate/internal/repository"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats struct {
	stats *repository.CampaignStats
	err   error
	calls int
}

func (s *stubStats) GetStats(context.Context) (*repository.CampaignStats, error) {
	s.calls++
	return s.stats, s.err
}

func TestCampaignStatsJob_SetsGauges(t *testing.T) {
	source := &stubStats{stats: &repository.CampaignStats{
		TotalCampaigns:   6,
		ActiveCampaigns:  3,
		FundedCampaigns:  2,
		ExpiredCampaigns: 1,
		Raised:           map[string]decimal.Decimal{"native": decimal.RequireFromString("12.5")},
	}}
	job := NewCampaignStatsJob(source, 0)
	assert.Equal(t, "campaign_stats_refresher", job.GetName())

	job.Execute()
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CampaignsGauge.WithLabelValues("active")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CampaignsGauge.WithLabelValues("funded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CampaignsGauge.WithLabelValues("expired")))
	assert.Equal(t, 12.5, testutil.ToFloat64(metrics.RaisedGauge.WithLabelValues("native")))
}

func TestCampaignStatsJob_SourceError(t *testing.T) {
	source := &stubStats{err: errors.New("db down")}
	assert.NotPanics(t, NewCampaignStatsJob(source, 5).Execute)
}

func TestManager_RegistersJobs(t *testing.T) {
	manager, err := NewManager(NewCampaignStatsJob(&stubStats{stats: &repository.CampaignStats{}}, 3600))
	require.NoError(t, err)
	require.NoError(t, manager.Start())
	defer manager.Stop()

	assert.Equal(t, []string{"campaign_stats_refresher"}, manager.Jobs())
}
