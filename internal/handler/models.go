package handler

import (
	"time"

	"github.com/blues/fundgate/internal/fingerprint"
	"github.com/blues/fundgate/internal/fraud"
	"github.com/blues/fundgate/internal/logic"
	"github.com/blues/fundgate/internal/model"
	"github.com/shopspring/decimal"
)

// 请求头
const (
	HeaderWallet = "X-Wallet-Address"
	HeaderDevice = "X-Device-Token"
)

// ContextDeviceKey 设备标识在 gin.Context 中的键
const ContextDeviceKey = "device_id"

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// SessionRequest 钱包连接
type SessionRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

// CreateCampaignRequest 创建活动
type CreateCampaignRequest struct {
	ProjectId     string                    `json:"project_id" binding:"required"`
	FundingWallet string                    `json:"funding_wallet"`
	FundingGoal   decimal.Decimal           `json:"funding_goal"`
	Purpose       string                    `json:"purpose" binding:"required"`
	Months        int                       `json:"months"`
	Currency      string                    `json:"currency"`
	Fingerprint   *fingerprint.ClientReport `json:"fingerprint"`
}

// UpdateCampaignRequest 修改活动，只更新传入的字段
type UpdateCampaignRequest struct {
	IsActive    *bool            `json:"is_active"`
	FundingGoal *decimal.Decimal `json:"funding_goal"`
	Purpose     *string          `json:"purpose"`
}

// ExtendCampaignRequest 延期
type ExtendCampaignRequest struct {
	Months   int    `json:"months"`
	Currency string `json:"currency"`
}

// ContributeRequest 贡献
type ContributeRequest struct {
	Amount      decimal.Decimal           `json:"amount"`
	Message     string                    `json:"message"`
	IsAnonymous bool                      `json:"is_anonymous"`
	Fingerprint *fingerprint.ClientReport `json:"fingerprint"`
}

// AttachTransactionRequest 绑定交易哈希
type AttachTransactionRequest struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

// CampaignResponse 活动及其展示字段
type CampaignResponse struct {
	*model.CampaignModel
	Status       model.CampaignStatus `json:"status"`
	Progress     float64              `json:"progress"`
	DeadlineText string               `json:"deadline_text"`
}

// CampaignListResponse 活动列表
type CampaignListResponse struct {
	Campaigns  []CampaignResponse `json:"campaigns"`
	Pagination *Pagination        `json:"pagination,omitempty"`
}

// PaymentIntentResponse 待支付标记和报价
type PaymentIntentResponse struct {
	Payment *model.PaymentModel `json:"payment"`
	Quote   *logic.Quote        `json:"quote"`
}

// ContributionIntentResponse 贡献支付标记和反欺诈评估
type ContributionIntentResponse struct {
	Payment    *model.PaymentModel   `json:"payment,omitempty"`
	Assessment *fraud.RiskAssessment `json:"assessment"`
	Campaign   *CampaignResponse     `json:"campaign,omitempty"`
}

// newCampaignResponse 计算状态、进度和截止时间描述
func newCampaignResponse(c *model.CampaignModel, now time.Time) CampaignResponse {
	text := c.DeadlineText(now)
	if c.IsExpired(now) {
		text = c.ExpiredText(now)
	}
	return CampaignResponse{
		CampaignModel: c,
		Status:        c.Status(now),
		Progress:      c.ProgressPercentage(),
		DeadlineText:  text,
	}
}

func newCampaignResponses(campaigns []model.CampaignModel, now time.Time) []CampaignResponse {
	views := make([]CampaignResponse, 0, len(campaigns))
	for i := range campaigns {
		views = append(views, newCampaignResponse(&campaigns[i], now))
	}
	return views
}
