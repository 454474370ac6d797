package model

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CampaignModel 众筹活动
type CampaignModel struct {
	Id        int64          `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	ProjectId     string `json:"project_id" gorm:"not null;index"`
	OwnerWallet   string `json:"owner_wallet" gorm:"not null;index"`
	FundingWallet string `json:"funding_wallet" gorm:"not null"`
	Purpose       string `json:"purpose" gorm:"type:text"`

	// 众筹信息
	FundingGoal       decimal.Decimal `json:"funding_goal" gorm:"type:numeric(38,18);not null"`
	CurrentFunding    decimal.Decimal `json:"current_funding" gorm:"type:numeric(38,18);not null;default:0"`
	ContributionCount int64           `json:"contribution_count" gorm:"not null;default:0"`
	Currency          string          `json:"currency" gorm:"not null;default:'native'"`

	Deadline time.Time `json:"deadline" gorm:"not null;index"`
	IsActive bool      `json:"is_active" gorm:"not null;default:true"`
	IsFunded bool      `json:"is_funded" gorm:"not null;default:false"`

	// 上架费交易
	ListingTxHash string `json:"listing_tx_hash" gorm:"index"`
}

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}

// CampaignStatus 活动状态，由字段和当前时间推导，不落库
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"   // 进行中
	CampaignStatusFunded   CampaignStatus = "funded"   // 已达成
	CampaignStatusExpired  CampaignStatus = "expired"  // 已过期
	CampaignStatusInactive CampaignStatus = "inactive" // 创建者暂停
	CampaignStatusDeleted  CampaignStatus = "deleted"  // 已删除
)

// IsExpired now 晚于截止时间即过期
func (c *CampaignModel) IsExpired(now time.Time) bool {
	return now.After(c.Deadline)
}

// IsActiveAt 进行中且未过期
func (c *CampaignModel) IsActiveAt(now time.Time) bool {
	return c.IsActive && !c.IsExpired(now)
}

// RecomputeFunded 根据当前金额刷新 IsFunded
func (c *CampaignModel) RecomputeFunded() {
	c.IsFunded = c.FundingGoal.IsPositive() && c.CurrentFunding.GreaterThanOrEqual(c.FundingGoal)
}

// ProgressPercentage 进度百分比，范围 [0,100]，目标金额不大于 0 时为 0
func (c *CampaignModel) ProgressPercentage() float64 {
	return Progress(c.CurrentFunding, c.FundingGoal)
}

// Progress 计算 current/goal 的百分比
func Progress(current, goal decimal.Decimal) float64 {
	if !goal.IsPositive() || !current.IsPositive() {
		return 0
	}
	pct, _ := current.Div(goal).Mul(decimal.NewFromInt(100)).Float64()
	return math.Min(pct, 100)
}

// Status 当前状态
func (c *CampaignModel) Status(now time.Time) CampaignStatus {
	switch {
	case c.DeletedAt.Valid:
		return CampaignStatusDeleted
	case c.IsFunded:
		return CampaignStatusFunded
	case c.IsExpired(now):
		return CampaignStatusExpired
	case !c.IsActive:
		return CampaignStatusInactive
	default:
		return CampaignStatusActive
	}
}

const day = 24 * time.Hour

// DeadlineText 剩余时间描述，如 "3 days left"
func (c *CampaignModel) DeadlineText(now time.Time) string {
	diff := c.Deadline.Sub(now)
	days := int(math.Ceil(float64(diff) / float64(day)))
	switch {
	case days < 0:
		return "Expired"
	case days == 0:
		return "Expires today"
	case days <= 7:
		return plural(days, "day") + " left"
	case days <= 30:
		return plural(days/7, "week") + " left"
	case days <= 365:
		return plural(days/30, "month") + " left"
	default:
		return plural(days/365, "year") + " left"
	}
}

// ExpiredText 已过期多久，如 "Expired 2 weeks ago"
func (c *CampaignModel) ExpiredText(now time.Time) string {
	days := int(now.Sub(c.Deadline) / day)
	switch {
	case days <= 0:
		return "Expired today"
	case days <= 7:
		return "Expired " + plural(days, "day") + " ago"
	case days <= 30:
		return "Expired " + plural(days/7, "week") + " ago"
	case days <= 365:
		return "Expired " + plural(days/30, "month") + " ago"
	default:
		return "Expired " + plural(days/365, "year") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
