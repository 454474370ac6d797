package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/fundgate/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 基于 gorm 的持久化实现
type Store struct {
	db *gorm.DB
}

var (
	_ CampaignRepository = (*Store)(nil)
	_ PaymentRepository  = (*Store)(nil)
)

// NewStore 创建 gorm 存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateCampaign 创建活动
func (s *Store) CreateCampaign(ctx context.Context, campaign *model.CampaignModel) error {
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return fmt.Errorf("创建活动失败: %w", err)
	}
	return nil
}

// GetCampaign 获取活动
func (s *Store) GetCampaign(ctx context.Context, id int64) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	if err := s.db.WithContext(ctx).First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取活动失败: %w", err)
	}
	return &campaign, nil
}

// SaveCampaign 保存创建者可修改的字段。金额由 ApplyContribution 维护，
// is_funded 在同一条 UPDATE 中按库内金额重算，保存后回读最新行。
func (s *Store) SaveCampaign(ctx context.Context, campaign *model.CampaignModel) error {
	res := s.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("id = ?", campaign.Id).
		Updates(map[string]interface{}{
			"funding_goal":   campaign.FundingGoal,
			"deadline":       campaign.Deadline,
			"is_active":      campaign.IsActive,
			"purpose":        campaign.Purpose,
			"funding_wallet": campaign.FundingWallet,
			"is_funded":      gorm.Expr("current_funding >= ?", campaign.FundingGoal),
		})
	if res.Error != nil {
		return fmt.Errorf("更新活动失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	if err := s.db.WithContext(ctx).First(campaign, campaign.Id).Error; err != nil {
		return fmt.Errorf("获取活动失败: %w", err)
	}
	return nil
}

// DeleteCampaign 软删除活动
func (s *Store) DeleteCampaign(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.CampaignModel{}, id)
	if res.Error != nil {
		return fmt.Errorf("删除活动失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveCampaigns 分页获取进行中的活动
func (s *Store) ListActiveCampaigns(ctx context.Context, now time.Time, limit, offset int) ([]model.CampaignModel, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("is_active = ? AND deadline > ?", true, now)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计活动失败: %w", err)
	}

	var campaigns []model.CampaignModel
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&campaigns).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动列表失败: %w", err)
	}
	return campaigns, total, nil
}

// ListCampaignsByOwner 获取创建者的全部活动
func (s *Store) ListCampaignsByOwner(ctx context.Context, owner string) ([]model.CampaignModel, error) {
	var campaigns []model.CampaignModel
	if err := s.db.WithContext(ctx).
		Where("owner_wallet = ?", owner).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("获取活动列表失败: %w", err)
	}
	return campaigns, nil
}

// FindActiveByOwner 查找创建者进行中的活动
func (s *Store) FindActiveByOwner(ctx context.Context, owner string, now time.Time, excludeId int64) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	err := s.db.WithContext(ctx).
		Where("owner_wallet = ? AND is_active = ? AND deadline > ? AND id <> ?", owner, true, now, excludeId).
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询进行中活动失败: %w", err)
	}
	return &campaign, nil
}

// ApplyContribution 写入贡献记录并原子累加活动金额
func (s *Store) ApplyContribution(ctx context.Context, contribution *model.ContributionModel) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(contribution).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateTx
			}
			return fmt.Errorf("创建贡献记录失败: %w", err)
		}

		// 并发确认时由数据库串行化累加，避免丢失更新
		res := tx.Model(&model.CampaignModel{}).
			Where("id = ?", contribution.CampaignId).
			Updates(map[string]interface{}{
				"current_funding":    gorm.Expr("current_funding + ?", contribution.Amount),
				"contribution_count": gorm.Expr("contribution_count + 1"),
				"is_funded":          gorm.Expr("current_funding + ? >= funding_goal", contribution.Amount),
			})
		if res.Error != nil {
			return fmt.Errorf("更新活动金额失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.First(&campaign, contribution.CampaignId).Error
	})
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// ListContributions 获取活动的贡献记录
func (s *Store) ListContributions(ctx context.Context, campaignId int64) ([]model.ContributionModel, error) {
	var contributions []model.ContributionModel
	if err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignId).
		Order("created_at DESC").
		Find(&contributions).Error; err != nil {
		return nil, fmt.Errorf("获取贡献记录失败: %w", err)
	}
	return contributions, nil
}

// GetContributionByTxHash 按交易哈希获取贡献
func (s *Store) GetContributionByTxHash(ctx context.Context, txHash string) (*model.ContributionModel, error) {
	var contribution model.ContributionModel
	if err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&contribution).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取贡献记录失败: %w", err)
	}
	return &contribution, nil
}

// ExtendCampaign 锁定活动行后顺延截止时间并写入延期记录，交易哈希唯一索引保证只生效一次
func (s *Store) ExtendCampaign(ctx context.Context, extension *model.ExtensionModel, apply func(*model.CampaignModel)) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&campaign, extension.CampaignId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("获取活动失败: %w", err)
		}

		apply(&campaign)
		extension.Deadline = campaign.Deadline
		if err := tx.Create(extension).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateTx
			}
			return fmt.Errorf("创建延期记录失败: %w", err)
		}

		if err := tx.Model(&campaign).Select("deadline", "is_active").Updates(&campaign).Error; err != nil {
			return fmt.Errorf("顺延活动失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetExtensionByTxHash 按交易哈希获取已生效的延期
func (s *Store) GetExtensionByTxHash(ctx context.Context, txHash string) (*model.ExtensionModel, error) {
	var extension model.ExtensionModel
	if err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&extension).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取延期记录失败: %w", err)
	}
	return &extension, nil
}

// Stats 活动汇总
func (s *Store) Stats(ctx context.Context, now time.Time) (*CampaignStats, error) {
	var counts struct {
		Total   int64
		Active  int64
		Funded  int64
		Expired int64
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_active AND deadline > ? AND NOT is_funded) AS active,
			COUNT(*) FILTER (WHERE is_funded) AS funded,
			COUNT(*) FILTER (WHERE deadline <= ? AND NOT is_funded) AS expired
		FROM campaign
		WHERE deleted_at IS NULL
	`, now, now).Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("获取活动统计失败: %w", err)
	}

	var raised []struct {
		Currency string
		Total    decimal.Decimal
	}
	if err := s.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Select("currency, COALESCE(SUM(current_funding), 0) AS total").
		Group("currency").
		Scan(&raised).Error; err != nil {
		return nil, fmt.Errorf("获取筹款统计失败: %w", err)
	}

	var contributions int64
	if err := s.db.WithContext(ctx).Model(&model.ContributionModel{}).Count(&contributions).Error; err != nil {
		return nil, fmt.Errorf("统计贡献失败: %w", err)
	}

	stats := &CampaignStats{
		TotalCampaigns:     counts.Total,
		ActiveCampaigns:    counts.Active,
		FundedCampaigns:    counts.Funded,
		ExpiredCampaigns:   counts.Expired,
		TotalContributions: contributions,
		Raised:             make(map[string]decimal.Decimal),
	}
	for _, r := range raised {
		stats.Raised[r.Currency] = r.Total
	}
	return stats, nil
}
