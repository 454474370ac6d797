package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentKind 待确认支付类型
type PaymentKind string

const (
	PaymentKindCreate     PaymentKind = "create"     // 上架费
	PaymentKindExtend     PaymentKind = "extend"     // 延期费
	PaymentKindContribute PaymentKind = "contribute" // 贡献
)

// PaymentStatus 待确认支付状态
type PaymentStatus string

const (
	PaymentStatusAwaiting  PaymentStatus = "awaiting_payment" // 等待客户端提交交易
	PaymentStatusPending   PaymentStatus = "pending"          // 交易已提交，等待确认
	PaymentStatusConfirmed PaymentStatus = "confirmed"        // 已确认并处理
	PaymentStatusFailed    PaymentStatus = "failed"           // 失败
	PaymentStatusExpired   PaymentStatus = "expired"          // 超时
)

// PaymentModel 待确认支付标记。页面刷新后可凭它重新挂上正在监控的交易，避免重复付款。
type PaymentModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Kind       PaymentKind   `json:"kind" gorm:"not null;index"`
	Status     PaymentStatus `json:"status" gorm:"not null;index"`
	Wallet     string        `json:"wallet" gorm:"not null;index"`
	DeviceId   string        `json:"device_id" gorm:"index"`
	CampaignId int64         `json:"campaign_id" gorm:"index"`

	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	Currency  string          `json:"currency" gorm:"not null"`
	Recipient string          `json:"recipient" gorm:"not null"`
	// TxHash 为空时不参与唯一约束
	TxHash *string `json:"tx_hash,omitempty" gorm:"uniqueIndex"`

	Payload   datatypes.JSON `json:"payload,omitempty"`
	RiskLevel string         `json:"risk_level"`

	FailureReason string `json:"failure_reason,omitempty"`
	// Released 超过软超时，前端可以退出处理中状态，后台仍继续监控
	Released bool `json:"released" gorm:"not null;default:false"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// TableName 自定义表名
func (PaymentModel) TableName() string {
	return "payment"
}

// IsTerminal 已结束的支付不再处理
func (p *PaymentModel) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusConfirmed, PaymentStatusFailed, PaymentStatusExpired:
		return true
	}
	return false
}

// Hash 返回交易哈希，未提交时为空
func (p *PaymentModel) Hash() string {
	if p.TxHash == nil {
		return ""
	}
	return *p.TxHash
}

// CreatePayload 创建活动的参数，确认上架费后使用
type CreatePayload struct {
	ProjectId     string          `json:"project_id"`
	FundingWallet string          `json:"funding_wallet"`
	FundingGoal   decimal.Decimal `json:"funding_goal"`
	Purpose       string          `json:"purpose"`
	Months        int             `json:"months"`
	Currency      string          `json:"currency"`
	Fingerprint   string          `json:"fingerprint,omitempty"`
}

// ExtendPayload 延期参数
type ExtendPayload struct {
	Months int `json:"months"`
}

// ContributePayload 贡献参数
type ContributePayload struct {
	Message     string `json:"message"`
	IsAnonymous bool   `json:"is_anonymous"`
}
