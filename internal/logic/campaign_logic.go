package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blues/fundgate/internal/chain"
	"github.com/blues/fundgate/internal/device"
	"github.com/blues/fundgate/internal/fingerprint"
	"github.com/blues/fundgate/internal/fraud"
	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/model"
	"github.com/blues/fundgate/internal/pricing"
	"github.com/blues/fundgate/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CampaignLogic 活动生命周期
type CampaignLogic struct {
	campaigns repository.CampaignRepository
	payments  repository.PaymentRepository
	pricing   *pricing.Calculator
	detector  *fraud.Detector
	treasury  string
	now       func() time.Time
}

// NewCampaignLogic 创建活动业务逻辑，treasury 为上架费和延期费收款地址
func NewCampaignLogic(
	campaigns repository.CampaignRepository,
	payments repository.PaymentRepository,
	calc *pricing.Calculator,
	detector *fraud.Detector,
	treasury string,
) *CampaignLogic {
	return &CampaignLogic{
		campaigns: campaigns,
		payments:  payments,
		pricing:   calc,
		detector:  detector,
		treasury:  treasury,
		now:       time.Now,
	}
}

// WithClock 注入时钟
func (l *CampaignLogic) WithClock(now func() time.Time) *CampaignLogic {
	l.now = now
	return l
}

// Now 当前时间
func (l *CampaignLogic) Now() time.Time {
	return l.now()
}

// CreateCampaignInput 创建活动参数
type CreateCampaignInput struct {
	OwnerWallet   string
	ProjectId     string
	FundingWallet string
	FundingGoal   decimal.Decimal
	Purpose       string
	Months        int
	Currency      string
	DeviceId      string
	Signal        fingerprint.Signal
}

// Quote 报价
type Quote struct {
	Months   int              `json:"months"`
	Cost     decimal.Decimal  `json:"cost"`
	Currency pricing.Currency `json:"currency"`
}

// PrepareCreation 校验创建参数并生成上架费支付标记，活动在上架费确认后创建
func (l *CampaignLogic) PrepareCreation(ctx context.Context, in CreateCampaignInput) (*model.PaymentModel, *Quote, error) {
	owner, err := walletParam("owner_wallet", in.OwnerWallet)
	if err != nil {
		return nil, nil, err
	}
	fundingWallet, err := walletParam("funding_wallet", in.FundingWallet)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(in.ProjectId) == "" {
		return nil, nil, invalid("project_id", "project is required")
	}
	if strings.TrimSpace(in.Purpose) == "" {
		return nil, nil, invalid("purpose", "purpose is required")
	}
	if !in.FundingGoal.IsPositive() {
		return nil, nil, invalid("funding_goal", "funding goal must be greater than 0")
	}
	if err := pricing.ValidateMonths(in.Months); err != nil {
		return nil, nil, invalid("months", err.Error())
	}
	currency, err := pricing.ParseCurrency(in.Currency)
	if err != nil {
		return nil, nil, invalid("currency", err.Error())
	}

	if err := l.ensureNoActiveCampaign(ctx, owner, 0); err != nil {
		return nil, nil, err
	}

	cost, err := l.pricing.Quote(in.Months, currency)
	if err != nil {
		return nil, nil, invalid("months", err.Error())
	}

	gate := l.detector.ForDevice(in.DeviceId, in.Signal)
	gate.RecordSession(ctx, owner)

	payload, err := json.Marshal(model.CreatePayload{
		ProjectId:     strings.TrimSpace(in.ProjectId),
		FundingWallet: fundingWallet,
		FundingGoal:   in.FundingGoal,
		Purpose:       strings.TrimSpace(in.Purpose),
		Months:        in.Months,
		Currency:      string(currency),
		Fingerprint:   gate.Fingerprint(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("编码活动参数失败: %w", err)
	}

	payment := &model.PaymentModel{
		Id:        uuid.NewString(),
		Kind:      model.PaymentKindCreate,
		Status:    model.PaymentStatusAwaiting,
		Wallet:    owner,
		DeviceId:  in.DeviceId,
		Amount:    cost,
		Currency:  string(currency),
		Recipient: l.treasury,
		Payload:   payload,
	}
	if err := l.payments.CreatePayment(ctx, payment); err != nil {
		return nil, nil, err
	}

	logger.Info("Campaign creation quoted: owner=%s months=%d cost=%s %s payment=%s",
		owner, in.Months, cost, currency, payment.Id)
	return payment, &Quote{Months: in.Months, Cost: cost, Currency: currency}, nil
}

// CreateCampaign 上架费确认后创建活动
func (l *CampaignLogic) CreateCampaign(ctx context.Context, payment *model.PaymentModel) (*model.CampaignModel, error) {
	txHash, err := paymentTxHash(payment)
	if err != nil {
		return nil, err
	}
	var p model.CreatePayload
	if err := json.Unmarshal(payment.Payload, &p); err != nil {
		return nil, invalid("payload", "malformed campaign parameters")
	}
	if err := pricing.ValidateMonths(p.Months); err != nil {
		return nil, invalid("months", err.Error())
	}

	existing, err := l.campaigns.FindActiveByOwner(ctx, payment.Wallet, l.now(), 0)
	switch {
	case err == nil && existing.ListingTxHash != "" && existing.ListingTxHash == txHash:
		// 同一笔上架费重复处理
		return existing, nil
	case err == nil:
		return nil, fmt.Errorf("%w: campaign %d", ErrActiveCampaignExists, existing.Id)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	now := l.now()
	campaign := &model.CampaignModel{
		ProjectId:      p.ProjectId,
		OwnerWallet:    payment.Wallet,
		FundingWallet:  p.FundingWallet,
		Purpose:        p.Purpose,
		FundingGoal:    p.FundingGoal,
		CurrentFunding: decimal.Zero,
		Currency:       p.Currency,
		Deadline:       now.AddDate(0, p.Months, 0),
		IsActive:       true,
		ListingTxHash:  txHash,
	}
	if err := l.campaigns.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}

	gate := l.detector.ForDevice(payment.DeviceId, nil)
	gate.RecordCampaignOwner(ctx, campaign.Id, campaign.OwnerWallet)
	gate.SetOwnerFingerprint(ctx, campaign.Id, p.Fingerprint)

	logger.Info("Campaign %d created for %s, deadline %s", campaign.Id, campaign.OwnerWallet, campaign.Deadline.Format(time.RFC3339))
	return campaign, nil
}

// ExtendCampaignInput 延期参数
type ExtendCampaignInput struct {
	CampaignId int64
	Wallet     string
	Months     int
	Currency   string
	DeviceId   string
}

// PrepareExtension 校验延期请求并生成延期费支付标记
func (l *CampaignLogic) PrepareExtension(ctx context.Context, in ExtendCampaignInput) (*model.PaymentModel, *Quote, error) {
	if err := pricing.ValidateMonths(in.Months); err != nil {
		return nil, nil, invalid("months", err.Error())
	}
	currency, err := pricing.ParseCurrency(in.Currency)
	if err != nil {
		return nil, nil, invalid("currency", err.Error())
	}
	wallet, err := walletParam("wallet", in.Wallet)
	if err != nil {
		return nil, nil, err
	}

	campaign, err := l.GetCampaign(ctx, in.CampaignId)
	if err != nil {
		return nil, nil, err
	}
	if campaign.OwnerWallet != wallet {
		return nil, nil, ErrNotOwner
	}
	if err := l.ensureNoActiveCampaign(ctx, wallet, campaign.Id); err != nil {
		return nil, nil, err
	}

	cost, err := l.pricing.Quote(in.Months, currency)
	if err != nil {
		return nil, nil, invalid("months", err.Error())
	}
	payload, _ := json.Marshal(model.ExtendPayload{Months: in.Months})

	payment := &model.PaymentModel{
		Id:         uuid.NewString(),
		Kind:       model.PaymentKindExtend,
		Status:     model.PaymentStatusAwaiting,
		Wallet:     wallet,
		DeviceId:   in.DeviceId,
		CampaignId: campaign.Id,
		Amount:     cost,
		Currency:   string(currency),
		Recipient:  l.treasury,
		Payload:    payload,
	}
	if err := l.payments.CreatePayment(ctx, payment); err != nil {
		return nil, nil, err
	}
	return payment, &Quote{Months: in.Months, Cost: cost, Currency: currency}, nil
}

// ExtendCampaign 延期费确认后顺延截止时间，按自然月计算，已过期的活动从现在起算并恢复进行中。
// 每笔延期费只生效一次，重复处理返回当前活动。
func (l *CampaignLogic) ExtendCampaign(ctx context.Context, payment *model.PaymentModel) (*model.CampaignModel, error) {
	txHash, err := paymentTxHash(payment)
	if err != nil {
		return nil, err
	}
	var p model.ExtendPayload
	if err := json.Unmarshal(payment.Payload, &p); err != nil {
		return nil, invalid("payload", "malformed extension parameters")
	}
	if err := pricing.ValidateMonths(p.Months); err != nil {
		return nil, invalid("months", err.Error())
	}
	campaign, err := l.GetCampaign(ctx, payment.CampaignId)
	if err != nil {
		return nil, err
	}

	_, err = l.campaigns.GetExtensionByTxHash(ctx, txHash)
	switch {
	case err == nil:
		logger.Info("Extension %s for campaign %d already applied", txHash, campaign.Id)
		return campaign, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	// 标记生成后创建者可能又上架了新活动
	if err := l.ensureNoActiveCampaign(ctx, campaign.OwnerWallet, campaign.Id); err != nil {
		return nil, err
	}

	now := l.now()
	extension := &model.ExtensionModel{
		CampaignId: campaign.Id,
		PaymentId:  payment.Id,
		TxHash:     txHash,
		Months:     p.Months,
	}
	extended, err := l.campaigns.ExtendCampaign(ctx, extension, func(c *model.CampaignModel) {
		base := c.Deadline
		if now.After(base) {
			base = now
		}
		c.Deadline = base.AddDate(0, p.Months, 0)
		c.IsActive = true
	})
	if errors.Is(err, repository.ErrDuplicateTx) {
		return l.GetCampaign(ctx, campaign.Id)
	}
	if err != nil {
		return nil, mapRepoError(err)
	}
	logger.Info("Campaign %d extended by %d months, new deadline %s", extended.Id, p.Months, extended.Deadline.Format(time.RFC3339))
	return extended, nil
}

// UpdateCampaignInput 创建者可修改的字段，nil 表示不修改
type UpdateCampaignInput struct {
	IsActive    *bool
	FundingGoal *decimal.Decimal
	Purpose     *string
}

// UpdateCampaign 创建者暂停/恢复活动或修改目标
func (l *CampaignLogic) UpdateCampaign(ctx context.Context, id int64, wallet string, in UpdateCampaignInput) (*model.CampaignModel, error) {
	campaign, err := l.ownedCampaign(ctx, id, wallet)
	if err != nil {
		return nil, err
	}

	if in.FundingGoal != nil {
		if !in.FundingGoal.IsPositive() {
			return nil, invalid("funding_goal", "funding goal must be greater than 0")
		}
		campaign.FundingGoal = *in.FundingGoal
	}
	if in.Purpose != nil {
		if strings.TrimSpace(*in.Purpose) == "" {
			return nil, invalid("purpose", "purpose is required")
		}
		campaign.Purpose = strings.TrimSpace(*in.Purpose)
	}
	if in.IsActive != nil {
		if *in.IsActive && !campaign.IsActive {
			if err := l.ensureNoActiveCampaign(ctx, campaign.OwnerWallet, campaign.Id); err != nil {
				return nil, err
			}
		}
		campaign.IsActive = *in.IsActive
	}

	if err := l.campaigns.SaveCampaign(ctx, campaign); err != nil {
		return nil, mapRepoError(err)
	}
	return campaign, nil
}

// DeleteCampaign 创建者删除活动
func (l *CampaignLogic) DeleteCampaign(ctx context.Context, id int64, wallet string) error {
	campaign, err := l.ownedCampaign(ctx, id, wallet)
	if err != nil {
		return err
	}
	if err := l.campaigns.DeleteCampaign(ctx, campaign.Id); err != nil {
		return mapRepoError(err)
	}
	logger.Info("Campaign %d deleted by owner", campaign.Id)
	return nil
}

// GetCampaign 获取活动
func (l *CampaignLogic) GetCampaign(ctx context.Context, id int64) (*model.CampaignModel, error) {
	campaign, err := l.campaigns.GetCampaign(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return campaign, nil
}

// ListActiveCampaigns 分页获取进行中的活动
func (l *CampaignLogic) ListActiveCampaigns(ctx context.Context, page, pageSize int) ([]model.CampaignModel, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return l.campaigns.ListActiveCampaigns(ctx, l.now(), pageSize, (page-1)*pageSize)
}

// ListCampaignsByOwner 获取创建者的活动
func (l *CampaignLogic) ListCampaignsByOwner(ctx context.Context, owner string) ([]model.CampaignModel, error) {
	wallet, err := walletParam("owner", owner)
	if err != nil {
		return nil, err
	}
	return l.campaigns.ListCampaignsByOwner(ctx, wallet)
}

// GetStats 活动汇总
func (l *CampaignLogic) GetStats(ctx context.Context) (*repository.CampaignStats, error) {
	return l.campaigns.Stats(ctx, l.now())
}

func (l *CampaignLogic) ownedCampaign(ctx context.Context, id int64, wallet string) (*model.CampaignModel, error) {
	w, err := walletParam("wallet", wallet)
	if err != nil {
		return nil, err
	}
	campaign, err := l.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerWallet != w {
		return nil, ErrNotOwner
	}
	return campaign, nil
}

// ensureNoActiveCampaign 每个钱包同时只能有一个进行中的活动
func (l *CampaignLogic) ensureNoActiveCampaign(ctx context.Context, owner string, excludeId int64) error {
	existing, err := l.campaigns.FindActiveByOwner(ctx, owner, l.now(), excludeId)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: campaign %d", ErrActiveCampaignExists, existing.Id)
}

// walletParam 校验并规范化钱包地址（小写）
func walletParam(field, wallet string) (string, error) {
	if strings.TrimSpace(wallet) == "" {
		return "", invalid(field, "wallet address is required")
	}
	if _, err := chain.CanonicalAddress(wallet); err != nil {
		return "", invalid(field, "invalid wallet address")
	}
	return device.NormalizeWallet(wallet), nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrCampaignNotFound
	case errors.Is(err, repository.ErrDuplicateTx):
		return ErrDuplicateTx
	}
	return err
}
