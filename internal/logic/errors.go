package logic

import (
	"errors"
	"fmt"
)

// ErrValidation 参数校验失败，在任何链上或数据库写入之前返回
var ErrValidation = errors.New("参数校验失败")

var (
	ErrCampaignNotFound     = errors.New("活动不存在")
	ErrActiveCampaignExists = errors.New("已有进行中的活动")
	ErrCampaignExpired      = errors.New("活动已过期")
	ErrCampaignFunded       = errors.New("活动已达成目标")
	ErrCampaignInactive     = errors.New("活动已暂停")
	ErrNotOwner             = errors.New("只有创建者可以执行此操作")
	ErrFraudRejected        = errors.New("贡献被反欺诈检测拒绝")
	ErrDuplicateTx          = errors.New("交易已处理")
	ErrPaymentNotFound      = errors.New("支付记录不存在")
	ErrPaymentClosed        = errors.New("支付已结束")
	ErrTxAlreadyAttached    = errors.New("支付已绑定其他交易")
)

// ValidationError 字段校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
