package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnonymousName 匿名贡献者显示名
const AnonymousName = "Anonymous"

// ContributionModel 贡献记录，只在反欺诈通过且链上确认后写入
type ContributionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	CampaignId        int64           `json:"campaign_id" gorm:"not null;index"`
	ContributorWallet string          `json:"contributor_wallet" gorm:"not null;index"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	TxHash            string          `json:"tx_hash" gorm:"not null;uniqueIndex"`
	Message           string          `json:"message" gorm:"type:text"`
	IsAnonymous       bool            `json:"is_anonymous" gorm:"not null;default:false"`
	RiskLevel         string          `json:"risk_level" gorm:"not null;default:'low'"`
}

// TableName 自定义表名
func (ContributionModel) TableName() string {
	return "contribution"
}

// DisplayName 匿名时显示 Anonymous，否则显示缩略钱包地址
func (c *ContributionModel) DisplayName() string {
	if c.IsAnonymous {
		return AnonymousName
	}
	return ShortWallet(c.ContributorWallet)
}

// ShortWallet 缩略钱包地址：前 8 位...后 6 位
func ShortWallet(wallet string) string {
	if len(wallet) <= 14 {
		return wallet
	}
	return wallet[:8] + "..." + wallet[len(wallet)-6:]
}
