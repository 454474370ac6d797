package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/logic"
	"github.com/blues/fundgate/internal/model"
)

// ErrNoProcessor 没有对应类型的处理器
var ErrNoProcessor = errors.New("没有对应的支付处理器")

// Processor 已确认支付的处理器
type Processor interface {
	Process(ctx context.Context, payment *model.PaymentModel) error
	GetKind() model.PaymentKind
}

// ProcessorManager 按支付类型分发处理器
type ProcessorManager struct {
	mu         sync.RWMutex
	processors map[model.PaymentKind]Processor
}

// NewProcessorManager 创建处理器管理器并注册传入的处理器
func NewProcessorManager(processors ...Processor) *ProcessorManager {
	manager := &ProcessorManager{
		processors: make(map[model.PaymentKind]Processor),
	}
	for _, p := range processors {
		manager.RegisterProcessor(p)
	}

	logger.Info("ProcessorManager initialized with %d processors", len(manager.processors))
	return manager
}

// RegisterProcessor 注册处理器，同类型后注册的覆盖先注册的
func (pm *ProcessorManager) RegisterProcessor(processor Processor) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	kind := processor.GetKind()
	pm.processors[kind] = processor
	logger.Info("Registered processor for payment kind: %s", kind)
}

// GetProcessor 获取指定类型的处理器
func (pm *ProcessorManager) GetProcessor(kind model.PaymentKind) (Processor, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	processor, exists := pm.processors[kind]
	return processor, exists
}

// Process 处理一笔已在链上确认的支付
func (pm *ProcessorManager) Process(ctx context.Context, payment *model.PaymentModel) error {
	processor, exists := pm.GetProcessor(payment.Kind)
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoProcessor, payment.Kind)
	}
	return processor.Process(ctx, payment)
}

// SupportedKinds 已注册的支付类型
func (pm *ProcessorManager) SupportedKinds() []model.PaymentKind {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	kinds := make([]model.PaymentKind, 0, len(pm.processors))
	for kind := range pm.processors {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsPermanent 判断处理失败是否不可重试。
// 活动已达成、已过期、参数非法等情况重试也不会成功，支付直接标记为失败。
func IsPermanent(err error) bool {
	for _, target := range []error{
		ErrNoProcessor,
		logic.ErrValidation,
		logic.ErrCampaignNotFound,
		logic.ErrCampaignFunded,
		logic.ErrCampaignExpired,
		logic.ErrCampaignInactive,
		logic.ErrActiveCampaignExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
