package repository

import (
	"context"
	"errors"
	"time"

	"github.com/blues/fundgate/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound    = errors.New("记录不存在")
	ErrDuplicateTx = errors.New("交易已处理")
)

// CampaignStats 活动汇总
type CampaignStats struct {
	TotalCampaigns     int64                      `json:"total_campaigns"`
	ActiveCampaigns    int64                      `json:"active_campaigns"`
	FundedCampaigns    int64                      `json:"funded_campaigns"`
	ExpiredCampaigns   int64                      `json:"expired_campaigns"`
	TotalContributions int64                      `json:"total_contributions"`
	Raised             map[string]decimal.Decimal `json:"raised"` // 按币种
}

// CampaignRepository 活动和贡献的持久化
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, campaign *model.CampaignModel) error
	GetCampaign(ctx context.Context, id int64) (*model.CampaignModel, error)
	// SaveCampaign 保存可修改字段，is_funded 由存储按已筹金额重算，保存后 campaign 为最新行
	SaveCampaign(ctx context.Context, campaign *model.CampaignModel) error
	DeleteCampaign(ctx context.Context, id int64) error
	ListActiveCampaigns(ctx context.Context, now time.Time, limit, offset int) ([]model.CampaignModel, int64, error)
	ListCampaignsByOwner(ctx context.Context, owner string) ([]model.CampaignModel, error)
	// FindActiveByOwner 查找创建者名下进行中且未过期的活动，excludeId 不参与查找
	FindActiveByOwner(ctx context.Context, owner string, now time.Time, excludeId int64) (*model.CampaignModel, error)

	// ApplyContribution 在一个事务中写入贡献并累加活动金额，返回更新后的活动
	ApplyContribution(ctx context.Context, contribution *model.ContributionModel) (*model.CampaignModel, error)
	ListContributions(ctx context.Context, campaignId int64) ([]model.ContributionModel, error)
	GetContributionByTxHash(ctx context.Context, txHash string) (*model.ContributionModel, error)

	// ExtendCampaign 在一个事务中锁定活动、调用 apply 修改截止时间并写入延期记录。
	// 同一交易已生效时返回 ErrDuplicateTx，活动不变。apply 中不能再访问存储。
	ExtendCampaign(ctx context.Context, extension *model.ExtensionModel, apply func(*model.CampaignModel)) (*model.CampaignModel, error)
	GetExtensionByTxHash(ctx context.Context, txHash string) (*model.ExtensionModel, error)

	Stats(ctx context.Context, now time.Time) (*CampaignStats, error)
}

// PaymentRepository 待确认支付的持久化
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *model.PaymentModel) error
	GetPayment(ctx context.Context, id string) (*model.PaymentModel, error)
	GetPaymentByTxHash(ctx context.Context, txHash string) (*model.PaymentModel, error)
	SavePayment(ctx context.Context, payment *model.PaymentModel) error
	ListPaymentsByWallet(ctx context.Context, wallet string) ([]model.PaymentModel, error)
	// ListPendingPayments 已提交交易、等待确认的支付，按提交时间排序
	ListPendingPayments(ctx context.Context, limit int) ([]model.PaymentModel, error)
	// ListAwaitingPayments 创建早于 before 仍未提交交易的支付
	ListAwaitingPayments(ctx context.Context, before time.Time, limit int) ([]model.PaymentModel, error)
}
