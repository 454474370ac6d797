package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blues/fundgate/internal/chain"
	"github.com/blues/fundgate/internal/config"
	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/metrics"
	"github.com/blues/fundgate/internal/model"
	"github.com/blues/fundgate/internal/payment"
	"github.com/blues/fundgate/internal/pricing"
	"github.com/blues/fundgate/internal/repository"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Chain 监控器依赖的链接口，*chain.Client 实现了它
type Chain interface {
	TransactionStatus(ctx context.Context, txHash string) (chain.TxStatus, error)
	VerifyPayment(ctx context.Context, txHash string, want chain.Expectation) (*chain.Transfer, error)
}

// PaymentMonitor 待确认支付监控器。
// 交易确认后校验付款内容并交给处理器，超过软超时释放前端等待，超过硬超时标记过期。
type PaymentMonitor struct {
	chain      Chain
	payments   repository.PaymentRepository
	processors *payment.ProcessorManager
	pool       *ants.Pool
	cfg        config.MonitorConfig
	now        func() time.Time

	ctx             context.Context
	cancel          context.CancelFunc
	mu              sync.Mutex
	retryCount      int           // 连续失败次数
	lastRetryTime   time.Time     // 上次失败时间
	backoffDuration time.Duration // 退避时间
}

// NewPaymentMonitor 创建支付监控器
func NewPaymentMonitor(
	c Chain,
	payments repository.PaymentRepository,
	processors *payment.ProcessorManager,
	cfg config.MonitorConfig,
) (*PaymentMonitor, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &PaymentMonitor{
		chain:      c,
		payments:   payments,
		processors: processors,
		pool:       pool,
		cfg:        cfg,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// WithClock 注入时钟
func (m *PaymentMonitor) WithClock(now func() time.Time) *PaymentMonitor {
	m.now = now
	return m
}

// Start 启动监控
func (m *PaymentMonitor) Start() {
	logger.Info("Starting payment monitor, interval %s, soft timeout %s, hard timeout %s",
		m.cfg.Interval, m.cfg.SoftTimeout, m.cfg.HardTimeout)
	go m.loop()
}

// Stop 停止监控
func (m *PaymentMonitor) Stop() {
	logger.Info("Stopping payment monitor")
	m.cancel()
	m.pool.Release()
}

func (m *PaymentMonitor) loop() {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			logger.Info("Payment monitor stopped")
			return
		case <-ticker.C:
			if m.inBackoff() {
				continue
			}
			if _, err := m.CheckOnce(m.ctx); err != nil {
				m.handleError(err)
				continue
			}
			m.resetBackoff()
		}
	}
}

// CheckOnce 检查一轮：先过期未提交交易的标记，再并发检查待确认的支付。返回检查的支付数。
func (m *PaymentMonitor) CheckOnce(ctx context.Context) (int, error) {
	if err := m.expireAwaiting(ctx); err != nil {
		return 0, err
	}

	pending, err := m.payments.ListPendingPayments(ctx, m.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending payments: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	logger.Debug("Checking %d pending payments", len(pending))

	var wg sync.WaitGroup
	for i := range pending {
		p := &pending[i]
		wg.Add(1)
		if err := m.pool.Submit(func() {
			defer wg.Done()
			m.check(ctx, p)
		}); err != nil {
			wg.Done()
			logger.Error("Failed to submit payment %s to pool: %v", p.Id, err)
		}
	}
	wg.Wait()
	return len(pending), nil
}

// check 检查单笔支付
func (m *PaymentMonitor) check(ctx context.Context, p *model.PaymentModel) {
	timer := prometheus.NewTimer(metrics.PaymentCheckDuration)
	defer timer.ObserveDuration()

	age := m.age(p)
	status, err := m.chain.TransactionStatus(ctx, p.Hash())
	if err != nil {
		logger.Warn("Failed to query transaction %s for payment %s: %v", p.Hash(), p.Id, err)
		m.timeouts(ctx, p, age)
		return
	}

	switch status {
	case chain.TxFailed:
		m.resolve(ctx, p, model.PaymentStatusFailed, "transaction failed on chain")
	case chain.TxPending, chain.TxConfirming:
		m.timeouts(ctx, p, age)
	case chain.TxConfirmed:
		m.confirm(ctx, p)
	}
}

// confirm 校验链上转账后交给处理器
func (m *PaymentMonitor) confirm(ctx context.Context, p *model.PaymentModel) {
	_, err := m.chain.VerifyPayment(ctx, p.Hash(), chain.Expectation{
		From:   p.Wallet,
		To:     p.Recipient,
		Amount: p.Amount,
		Stable: p.Currency == string(pricing.CurrencyStable),
	})
	if err != nil {
		if pe, ok := chain.AsPaymentError(err); ok {
			m.resolve(ctx, p, model.PaymentStatusFailed, pe.Error())
			return
		}
		logger.Warn("Failed to verify payment %s, will retry: %v", p.Id, err)
		return
	}

	if err := m.processors.Process(ctx, p); err != nil {
		if payment.IsPermanent(err) {
			m.resolve(ctx, p, model.PaymentStatusFailed, err.Error())
			return
		}
		logger.Error("Failed to process payment %s, will retry: %v", p.Id, err)
		return
	}
	m.resolve(ctx, p, model.PaymentStatusConfirmed, "")
}

// timeouts 未确认的交易：超过硬超时过期，超过软超时释放前端等待
func (m *PaymentMonitor) timeouts(ctx context.Context, p *model.PaymentModel, age time.Duration) {
	if m.cfg.HardTimeout > 0 && age > m.cfg.HardTimeout {
		m.resolve(ctx, p, model.PaymentStatusExpired, "transaction not confirmed in time")
		return
	}
	if m.cfg.SoftTimeout > 0 && age > m.cfg.SoftTimeout && !p.Released {
		p.Released = true
		if err := m.payments.SavePayment(ctx, p); err != nil {
			logger.Error("Failed to release payment %s: %v", p.Id, err)
			return
		}
		logger.Info("Payment %s still pending after %s, released to background", p.Id, age.Truncate(time.Second))
	}
}

// expireAwaiting 长时间没有提交交易的标记直接过期
func (m *PaymentMonitor) expireAwaiting(ctx context.Context) error {
	if m.cfg.HardTimeout <= 0 {
		return nil
	}
	stale, err := m.payments.ListAwaitingPayments(ctx, m.now().Add(-m.cfg.HardTimeout), m.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list awaiting payments: %w", err)
	}
	for i := range stale {
		m.resolve(ctx, &stale[i], model.PaymentStatusExpired, "no transaction submitted")
	}
	return nil
}

func (m *PaymentMonitor) resolve(ctx context.Context, p *model.PaymentModel, status model.PaymentStatus, reason string) {
	now := m.now()
	p.Status = status
	p.FailureReason = reason
	p.ResolvedAt = &now
	if err := m.payments.SavePayment(ctx, p); err != nil {
		logger.Error("Failed to save payment %s as %s: %v", p.Id, status, err)
		return
	}
	metrics.PaymentsResolvedTotal.WithLabelValues(string(p.Kind), string(status)).Inc()

	if status == model.PaymentStatusConfirmed {
		logger.Info("Payment %s (%s) confirmed, tx %s", p.Id, p.Kind, p.Hash())
	} else {
		logger.Warn("Payment %s (%s) %s: %s", p.Id, p.Kind, status, reason)
	}
}

func (m *PaymentMonitor) age(p *model.PaymentModel) time.Duration {
	since := p.CreatedAt
	if p.SubmittedAt != nil {
		since = *p.SubmittedAt
	}
	return m.now().Sub(since)
}

// handleError 记录失败并计算退避时间
func (m *PaymentMonitor) handleError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retryCount++
	m.lastRetryTime = m.now()
	if m.retryCount > 5 {
		m.backoffDuration = 5 * time.Minute
	} else {
		m.backoffDuration = time.Duration(m.retryCount) * 10 * time.Second
	}
	logger.Error("Payment monitor encountered error (retry %d, backoff %s): %v", m.retryCount, m.backoffDuration, err)
}

func (m *PaymentMonitor) inBackoff() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryCount > 0 && m.now().Sub(m.lastRetryTime) < m.backoffDuration
}

func (m *PaymentMonitor) resetBackoff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount = 0
	m.backoffDuration = 0
}

// GetStatus 监控状态
func (m *PaymentMonitor) GetStatus() map[string]interface{} {
	m.mu.Lock()
	retry, backoff := m.retryCount, m.backoffDuration
	m.mu.Unlock()

	return map[string]interface{}{
		"interval":     m.cfg.Interval.String(),
		"soft_timeout": m.cfg.SoftTimeout.String(),
		"hard_timeout": m.cfg.HardTimeout.String(),
		"retry_count":  retry,
		"backoff":      backoff.String(),
		"pool": map[string]interface{}{
			"running": m.pool.Running(),
			"free":    m.pool.Free(),
			"cap":     m.pool.Cap(),
		},
		"processors": m.processors.SupportedKinds(),
	}
}
