package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/fundgate/internal/model"
	"gorm.io/gorm"
)

// CreatePayment 创建待确认支付
func (s *Store) CreatePayment(ctx context.Context, payment *model.PaymentModel) error {
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateTx
		}
		return fmt.Errorf("创建支付记录失败: %w", err)
	}
	return nil
}

// GetPayment 获取支付
func (s *Store) GetPayment(ctx context.Context, id string) (*model.PaymentModel, error) {
	var payment model.PaymentModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取支付记录失败: %w", err)
	}
	return &payment, nil
}

// GetPaymentByTxHash 按交易哈希获取支付
func (s *Store) GetPaymentByTxHash(ctx context.Context, txHash string) (*model.PaymentModel, error) {
	var payment model.PaymentModel
	if err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取支付记录失败: %w", err)
	}
	return &payment, nil
}

// SavePayment 保存支付
func (s *Store) SavePayment(ctx context.Context, payment *model.PaymentModel) error {
	if err := s.db.WithContext(ctx).Save(payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateTx
		}
		return fmt.Errorf("更新支付记录失败: %w", err)
	}
	return nil
}

// ListPaymentsByWallet 获取钱包的全部支付
func (s *Store) ListPaymentsByWallet(ctx context.Context, wallet string) ([]model.PaymentModel, error) {
	var payments []model.PaymentModel
	if err := s.db.WithContext(ctx).
		Where("wallet = ?", wallet).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("获取支付记录失败: %w", err)
	}
	return payments, nil
}

// ListPendingPayments 获取等待确认的支付
func (s *Store) ListPendingPayments(ctx context.Context, limit int) ([]model.PaymentModel, error) {
	var payments []model.PaymentModel
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.PaymentStatusPending).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("获取待确认支付失败: %w", err)
	}
	return payments, nil
}

// ListAwaitingPayments 获取长时间未提交交易的支付
func (s *Store) ListAwaitingPayments(ctx context.Context, before time.Time, limit int) ([]model.PaymentModel, error) {
	var payments []model.PaymentModel
	if err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.PaymentStatusAwaiting, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("获取未提交支付失败: %w", err)
	}
	return payments, nil
}
