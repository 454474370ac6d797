package logic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/blues/fundgate/internal/chain"
	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/model"
	"github.com/blues/fundgate/internal/repository"
)

// PaymentLogic 待确认支付
type PaymentLogic struct {
	payments  repository.PaymentRepository
	campaigns repository.CampaignRepository
	now       func() time.Time
}

// NewPaymentLogic 创建支付业务逻辑
func NewPaymentLogic(payments repository.PaymentRepository, campaigns repository.CampaignRepository) *PaymentLogic {
	return &PaymentLogic{payments: payments, campaigns: campaigns, now: time.Now}
}

// WithClock 注入时钟
func (l *PaymentLogic) WithClock(now func() time.Time) *PaymentLogic {
	l.now = now
	return l
}

// AttachTransaction 客户端提交交易后绑定交易哈希。
// 哈希统一为小写后再查重和保存。重复绑定同一哈希直接返回原记录，页面刷新后可以继续等待同一笔交易。
func (l *PaymentLogic) AttachTransaction(ctx context.Context, id, wallet, txHash string) (*model.PaymentModel, error) {
	w, err := walletParam("wallet", wallet)
	if err != nil {
		return nil, err
	}
	txHash, err = chain.CanonicalTxHash(txHash)
	if err != nil {
		return nil, invalid("tx_hash", "invalid transaction hash")
	}

	payment, err := l.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Wallet != w {
		return nil, ErrNotOwner
	}

	if current := payment.Hash(); current != "" {
		if strings.EqualFold(current, txHash) {
			return payment, nil
		}
		return nil, ErrTxAlreadyAttached
	}
	if payment.IsTerminal() {
		return payment, ErrPaymentClosed
	}

	if _, err := l.campaigns.GetContributionByTxHash(ctx, txHash); err == nil {
		return nil, ErrDuplicateTx
	}
	if other, err := l.payments.GetPaymentByTxHash(ctx, txHash); err == nil && other.Id != payment.Id {
		return nil, ErrDuplicateTx
	}

	now := l.now()
	payment.TxHash = &txHash
	payment.Status = model.PaymentStatusPending
	payment.SubmittedAt = &now
	payment.Released = false
	if err := l.payments.SavePayment(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateTx) {
			return nil, ErrDuplicateTx
		}
		return nil, err
	}

	logger.Info("Payment %s (%s) submitted with tx %s", payment.Id, payment.Kind, txHash)
	return payment, nil
}

// GetPayment 获取支付
func (l *PaymentLogic) GetPayment(ctx context.Context, id string) (*model.PaymentModel, error) {
	payment, err := l.payments.GetPayment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	return payment, err
}

// ListPayments 获取钱包的支付记录
func (l *PaymentLogic) ListPayments(ctx context.Context, wallet string) ([]model.PaymentModel, error) {
	w, err := walletParam("wallet", wallet)
	if err != nil {
		return nil, err
	}
	return l.payments.ListPaymentsByWallet(ctx, w)
}

// paymentTxHash 支付绑定的交易哈希，统一为小写形式
func paymentTxHash(payment *model.PaymentModel) (string, error) {
	hash, err := chain.CanonicalTxHash(payment.Hash())
	if err != nil {
		return "", invalid("tx_hash", "valid transaction hash is required")
	}
	return hash, nil
}
