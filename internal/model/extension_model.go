package model

import "time"

// ExtensionModel 已生效的延期，每笔延期费交易只记录一次
type ExtensionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	CampaignId int64     `json:"campaign_id" gorm:"not null;index"`
	PaymentId  string    `json:"payment_id" gorm:"not null;index"`
	TxHash     string    `json:"tx_hash" gorm:"not null;uniqueIndex"`
	Months     int       `json:"months" gorm:"not null"`
	Deadline   time.Time `json:"deadline"` // 延期后的截止时间
}

// TableName 自定义表名
func (ExtensionModel) TableName() string {
	return "campaign_extension"
}
