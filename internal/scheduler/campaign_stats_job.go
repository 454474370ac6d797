package scheduler

import (
	"context"
	"time"

	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/metrics"
	"github.com/blues/fundgate/internal/model"
	"github.com/blues/fundgate/internal/repository"
	"github.com/go-co-op/gocron/v2"
)

// StatsSource 活动汇总来源
type StatsSource interface {
	GetStats(ctx context.Context) (*repository.CampaignStats, error)
}

// CampaignStatsJob 定时刷新活动状态和募资总额指标
type CampaignStatsJob struct {
	source   StatsSource
	interval time.Duration
	timeout  time.Duration
}

// NewCampaignStatsJob 创建活动统计任务，interval 单位秒
func NewCampaignStatsJob(source StatsSource, interval int) *CampaignStatsJob {
	if interval <= 0 {
		interval = 60
	}
	return &CampaignStatsJob{
		source:   source,
		interval: time.Duration(interval) * time.Second,
		timeout:  30 * time.Second,
	}
}

// GetName 获取任务名称
func (j *CampaignStatsJob) GetName() string {
	return "campaign_stats_refresher"
}

// GetSchedule 获取调度配置
func (j *CampaignStatsJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *CampaignStatsJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	stats, err := j.source.GetStats(ctx)
	if err != nil {
		logger.Error("Failed to load campaign stats: %v", err)
		return
	}

	metrics.CampaignsGauge.WithLabelValues(string(model.CampaignStatusActive)).Set(float64(stats.ActiveCampaigns))
	metrics.CampaignsGauge.WithLabelValues(string(model.CampaignStatusFunded)).Set(float64(stats.FundedCampaigns))
	metrics.CampaignsGauge.WithLabelValues(string(model.CampaignStatusExpired)).Set(float64(stats.ExpiredCampaigns))
	for currency, raised := range stats.Raised {
		f, _ := raised.Float64()
		metrics.RaisedGauge.WithLabelValues(currency).Set(f)
	}

	logger.Debug("Campaign stats refreshed: total=%d active=%d funded=%d expired=%d contributions=%d",
		stats.TotalCampaigns, stats.ActiveCampaigns, stats.FundedCampaigns, stats.ExpiredCampaigns, stats.TotalContributions)
}
