package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/blues/fundgate/internal/fingerprint"
	"github.com/blues/fundgate/internal/fraud"
	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/metrics"
	"github.com/blues/fundgate/internal/model"
	"github.com/blues/fundgate/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContributionLogic 贡献业务逻辑
type ContributionLogic struct {
	campaigns repository.CampaignRepository
	payments  repository.PaymentRepository
	detector  *fraud.Detector
	now       func() time.Time
}

// NewContributionLogic 创建贡献业务逻辑
func NewContributionLogic(campaigns repository.CampaignRepository, payments repository.PaymentRepository, detector *fraud.Detector) *ContributionLogic {
	return &ContributionLogic{
		campaigns: campaigns,
		payments:  payments,
		detector:  detector,
		now:       time.Now,
	}
}

// WithClock 注入时钟
func (l *ContributionLogic) WithClock(now func() time.Time) *ContributionLogic {
	l.now = now
	return l
}

// ContributeInput 贡献参数
type ContributeInput struct {
	CampaignId  int64
	Wallet      string
	Amount      decimal.Decimal
	Message     string
	IsAnonymous bool
	DeviceId    string
	Signal      fingerprint.Signal
}

// RecordSession 钱包连接时记录设备会话
func (l *ContributionLogic) RecordSession(ctx context.Context, deviceId, wallet string) error {
	w, err := walletParam("wallet", wallet)
	if err != nil {
		return err
	}
	l.detector.ForDevice(deviceId, nil).RecordSession(ctx, w)
	return nil
}

// ClearFraudData 清除设备上的反欺诈记录
func (l *ContributionLogic) ClearFraudData(ctx context.Context, deviceId string) {
	l.detector.ForDevice(deviceId, nil).ClearFraudData(ctx)
}

// CheckContribution 校验参数和活动状态后预检反欺诈结果，不创建支付，也不写入会话和尝试记录
func (l *ContributionLogic) CheckContribution(ctx context.Context, in ContributeInput) (*fraud.RiskAssessment, *model.CampaignModel, error) {
	return l.assess(ctx, in, false)
}

func (l *ContributionLogic) assess(ctx context.Context, in ContributeInput, record bool) (*fraud.RiskAssessment, *model.CampaignModel, error) {
	wallet, err := walletParam("wallet", in.Wallet)
	if err != nil {
		return nil, nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, nil, invalid("amount", "amount must be greater than 0")
	}

	campaign, err := l.contributable(ctx, in.CampaignId)
	if err != nil {
		return nil, nil, err
	}

	gate := l.detector.ForDevice(in.DeviceId, in.Signal)
	if !record {
		assessment := gate.Preview(ctx, campaign.Id, wallet, campaign.OwnerWallet)
		return &assessment, campaign, nil
	}

	assessment := gate.Evaluate(ctx, campaign.Id, wallet, campaign.OwnerWallet)
	metrics.FraudAssessmentsTotal.
		WithLabelValues(assessment.RiskLevel.String(), strconv.FormatBool(assessment.IsAllowed)).
		Inc()
	return &assessment, campaign, nil
}

// PrepareContribution 反欺诈通过后生成贡献支付标记。被拒绝时返回评估结果和 ErrFraudRejected。
func (l *ContributionLogic) PrepareContribution(ctx context.Context, in ContributeInput) (*model.PaymentModel, *fraud.RiskAssessment, error) {
	assessment, campaign, err := l.assess(ctx, in, true)
	if err != nil {
		return nil, nil, err
	}
	if !assessment.IsAllowed {
		return nil, assessment, fmt.Errorf("%w: %s", ErrFraudRejected, assessment.Reason)
	}
	wallet, _ := walletParam("wallet", in.Wallet)

	payload, _ := json.Marshal(model.ContributePayload{Message: in.Message, IsAnonymous: in.IsAnonymous})
	payment := &model.PaymentModel{
		Id:         uuid.NewString(),
		Kind:       model.PaymentKindContribute,
		Status:     model.PaymentStatusAwaiting,
		Wallet:     wallet,
		DeviceId:   in.DeviceId,
		CampaignId: campaign.Id,
		Amount:     in.Amount,
		Currency:   campaign.Currency,
		Recipient:  campaign.FundingWallet,
		Payload:    payload,
		RiskLevel:  assessment.RiskLevel.String(),
	}
	if err := l.payments.CreatePayment(ctx, payment); err != nil {
		return nil, assessment, err
	}
	return payment, assessment, nil
}

// ApplyContribution 链上确认后写入贡献。同一交易（不区分大小写）重复处理时直接返回当前活动。
func (l *ContributionLogic) ApplyContribution(ctx context.Context, payment *model.PaymentModel) (*model.CampaignModel, error) {
	txHash, err := paymentTxHash(payment)
	if err != nil {
		return nil, err
	}
	if _, err := l.campaigns.GetContributionByTxHash(ctx, txHash); err == nil {
		logger.Info("Contribution %s already applied", txHash)
		return l.campaignOrMapped(ctx, payment.CampaignId)
	}

	if _, err := l.contributable(ctx, payment.CampaignId); err != nil {
		return nil, err
	}

	var p model.ContributePayload
	if len(payment.Payload) > 0 {
		if err := json.Unmarshal(payment.Payload, &p); err != nil {
			return nil, invalid("payload", "malformed contribution parameters")
		}
	}

	campaign, err := l.campaigns.ApplyContribution(ctx, &model.ContributionModel{
		CampaignId:        payment.CampaignId,
		ContributorWallet: payment.Wallet,
		Amount:            payment.Amount,
		TxHash:            txHash,
		Message:           p.Message,
		IsAnonymous:       p.IsAnonymous,
		RiskLevel:         payment.RiskLevel,
	})
	if errors.Is(err, repository.ErrDuplicateTx) {
		return l.campaignOrMapped(ctx, payment.CampaignId)
	}
	if err != nil {
		return nil, mapRepoError(err)
	}

	metrics.ContributionsAppliedTotal.Inc()
	amount, _ := payment.Amount.Float64()
	metrics.ContributedAmountTotal.WithLabelValues(campaign.Currency).Add(amount)

	logger.Info("Contribution applied: campaign=%d wallet=%s amount=%s total=%s funded=%v",
		campaign.Id, payment.Wallet, payment.Amount, campaign.CurrentFunding, campaign.IsFunded)
	return campaign, nil
}

// ContributionView 对外展示的贡献
type ContributionView struct {
	Id          int64           `json:"id"`
	DisplayName string          `json:"display_name"`
	Amount      decimal.Decimal `json:"amount"`
	Message     string          `json:"message"`
	IsAnonymous bool            `json:"is_anonymous"`
	TxHash      string          `json:"tx_hash"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListContributions 获取活动的贡献列表
func (l *ContributionLogic) ListContributions(ctx context.Context, campaignId int64) ([]ContributionView, error) {
	if _, err := l.campaignOrMapped(ctx, campaignId); err != nil {
		return nil, err
	}
	contributions, err := l.campaigns.ListContributions(ctx, campaignId)
	if err != nil {
		return nil, err
	}

	views := make([]ContributionView, 0, len(contributions))
	for i := range contributions {
		c := &contributions[i]
		views = append(views, ContributionView{
			Id:          c.Id,
			DisplayName: c.DisplayName(),
			Amount:      c.Amount,
			Message:     c.Message,
			IsAnonymous: c.IsAnonymous,
			TxHash:      c.TxHash,
			CreatedAt:   c.CreatedAt,
		})
	}
	return views, nil
}

// ContributorSummary 按贡献者汇总
type ContributorSummary struct {
	DisplayName   string          `json:"display_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Count         int             `json:"count"`
	LatestMessage string          `json:"latest_message"`
	LatestAt      time.Time       `json:"latest_at"`
}

// ContributorSummaries 按钱包汇总贡献，匿名贡献单独归组，按总额降序
func (l *ContributionLogic) ContributorSummaries(ctx context.Context, campaignId int64) ([]ContributorSummary, error) {
	if _, err := l.campaignOrMapped(ctx, campaignId); err != nil {
		return nil, err
	}
	contributions, err := l.campaigns.ListContributions(ctx, campaignId)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*ContributorSummary)
	order := make([]string, 0)
	for i := range contributions {
		c := &contributions[i]
		key := c.ContributorWallet + "|" + strconv.FormatBool(c.IsAnonymous)
		s, ok := groups[key]
		if !ok {
			s = &ContributorSummary{DisplayName: c.DisplayName(), TotalAmount: decimal.Zero}
			groups[key] = s
			order = append(order, key)
		}
		s.TotalAmount = s.TotalAmount.Add(c.Amount)
		s.Count++
		if c.CreatedAt.After(s.LatestAt) || s.LatestAt.IsZero() {
			s.LatestAt = c.CreatedAt
			s.LatestMessage = c.Message
		}
	}

	summaries := make([]ContributorSummary, 0, len(order))
	for _, key := range order {
		summaries = append(summaries, *groups[key])
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TotalAmount.GreaterThan(summaries[j].TotalAmount)
	})
	return summaries, nil
}

// contributable 活动必须存在、进行中、未过期、未达成
func (l *ContributionLogic) contributable(ctx context.Context, id int64) (*model.CampaignModel, error) {
	campaign, err := l.campaignOrMapped(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case campaign.IsFunded:
		return nil, ErrCampaignFunded
	case campaign.IsExpired(l.now()):
		return nil, ErrCampaignExpired
	case !campaign.IsActive:
		return nil, ErrCampaignInactive
	}
	return campaign, nil
}

func (l *ContributionLogic) campaignOrMapped(ctx context.Context, id int64) (*model.CampaignModel, error) {
	campaign, err := l.campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return campaign, nil
}
